package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"async-quiz-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	QuizID         string    `bun:"quiz_id,pk"`
	UID            string    `bun:"uid,pk"`
	Name           string    `bun:"name"`
	Score          int       `bun:"score"`
	CorrectCount   int       `bun:"correct_count"`
	AvgTimeMs      int64     `bun:"avg_time_ms"`
	TotalQuestions int       `bun:"total_questions"`
	FinishedAt     time.Time `bun:"finished_at"`
}

type attemptVersionRow struct {
	bun.BaseModel `bun:"table:quiz_attempt_versions"`

	QuizID  string `bun:"quiz_id,pk"`
	Version int64  `bun:"version"`
}

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// AttemptArchive stores finished-attempt snapshots in quiz_attempts. Each save
// bumps quiz_attempt_versions in the same transaction.
type AttemptArchive struct {
	db *bun.DB
}

func NewAttemptArchive(db *bun.DB) *AttemptArchive {
	return &AttemptArchive{db: db}
}

func (a *AttemptArchive) Save(ctx context.Context, s domain.AttemptSnapshot) (int64, error) {
	row := attemptRow{
		QuizID:         s.QuizID,
		UID:            s.UID,
		Name:           s.Name,
		Score:          s.Score,
		CorrectCount:   s.CorrectCount,
		AvgTimeMs:      s.AvgTimeMs,
		TotalQuestions: s.TotalQuestions,
		FinishedAt:     s.FinishedAt,
	}
	version := attemptVersionRow{QuizID: s.QuizID, Version: 1}

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).
			On("CONFLICT (quiz_id, uid) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("score = EXCLUDED.score").
			Set("correct_count = EXCLUDED.correct_count").
			Set("avg_time_ms = EXCLUDED.avg_time_ms").
			Set("total_questions = EXCLUDED.total_questions").
			Set("finished_at = EXCLUDED.finished_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if _, err := tx.NewInsert().Model(&version).
			On("CONFLICT (quiz_id) DO UPDATE").
			Set("version = quiz_attempt_versions.version + 1").
			Returning("version").
			Exec(ctx); err != nil {
			return fmt.Errorf("bump attempt version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version.Version, nil
}

func (a *AttemptArchive) List(ctx context.Context, quizID string) ([]domain.AttemptSnapshot, int64, error) {
	var (
		rows    []attemptRow
		version int64
	)
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := a.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Table("quiz_attempt_versions").Column("version").
			Where("quiz_id = ?", quizID).Scan(ctx, &version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read attempt version: %w", err)
		}
		return tx.NewSelect().Model(&rows).Where("quiz_id = ?", quizID).Order("uid ASC").Scan(ctx)
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.AttemptSnapshot, len(rows))
	for i, r := range rows {
		out[i] = domain.AttemptSnapshot{
			QuizID:         r.QuizID,
			UID:            r.UID,
			Name:           r.Name,
			Score:          r.Score,
			CorrectCount:   r.CorrectCount,
			AvgTimeMs:      r.AvgTimeMs,
			TotalQuestions: r.TotalQuestions,
			FinishedAt:     r.FinishedAt,
		}
	}
	return out, version, nil
}

func (a *AttemptArchive) QuizIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.db.NewSelect().Table("quiz_attempt_versions").Column("quiz_id").Order("quiz_id ASC").Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list archived quizzes: %w", err)
	}
	return ids, nil
}
