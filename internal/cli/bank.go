package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"quiz-room-service/internal/config"
	"quiz-room-service/internal/infra/memory"
	pgstore "quiz-room-service/internal/infra/postgres"
	redisinfra "quiz-room-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewBankCmd groups question bank maintenance commands.
func NewBankCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage question banks",
	}
	cmd.AddCommand(newBankImportCmd(opts))
	return cmd
}

func newBankImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a YAML or JSON bank and store it in Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			if cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			bank, err := memory.ParseBank(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()
			if err := pgstore.NewBankLoader(pool).SaveBank(ctx, bank); err != nil {
				return err
			}

			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				cache := redisinfra.NewBankRepository(client, pgstore.NewBankLoader(pool), config.TTLDuration(cfg.Quiz.TTL, 0))
				if err := cache.Invalidate(ctx, bank.ID); err != nil {
					slog.Warn("bank cache not invalidated", "bank", bank.ID, "error", err)
				}
			}
			slog.Info("bank imported", "bank", bank.ID, "questions", len(bank.Questions))
			return nil
		},
	}
}
