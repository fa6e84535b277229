package cli

import (
	"errors"
	"fmt"
	"time"

	"async-quiz-service/internal/config"
	transport "async-quiz-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewTokenCmd issues a signed bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <uid>",
		Short: "Issue a bearer token for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret (or JWT_SECRET) is required")
			}
			token, err := transport.NewAuthenticator(cfg.Auth.JWTSecret).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
