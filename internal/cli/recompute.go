package cli

import (
	"context"
	"fmt"

	"async-quiz-service/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRecomputeCmd rebuilds published leaderboards from the attempt archive.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	var quizID string
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute leaderboards from archived attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecompute(cmd.Context(), *configPath, quizID)
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "recompute a single quiz (default: every quiz with attempts)")
	return cmd
}

func runRecompute(ctx context.Context, configPath, quizID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	service, conns, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conns.Close()

	agg := service.Aggregator()
	if quizID != "" {
		board, err := agg.Recompute(ctx, quizID)
		if err != nil {
			return err
		}
		logger.Info("leaderboard recomputed", zap.String("quiz_id", quizID), zap.Int("entries", len(board.Entries)))
		return nil
	}
	n, err := agg.RecomputeAll(ctx)
	logger.Info("leaderboard sweep finished", zap.Int("quizzes", n))
	return err
}
