package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/infra/memory"
	pgstore "quiz-room-service/internal/infra/postgres"
	redisinfra "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			return runServer(cmd.Context(), cfg)
		},
	}
}

// backends holds whichever storage the config selects.
type backends struct {
	store    app.Store
	shuffles app.ShuffleRepository
	banks    app.BankRepository
	notifier app.Notifier
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}

	def, err := memory.DefaultBank()
	if err != nil {
		return nil, fmt.Errorf("default bank: %w", err)
	}
	loaders := memory.FallbackLoader{}
	if cfg.Quiz.BankFile != "" {
		loaders = append(loaders, memory.NewFileBankLoader(cfg.Quiz.BankFile))
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		loaders = append(loaders, pgstore.NewBankLoader(pool))
	}
	loaders = append(loaders, memory.NewStaticBankLoader(def))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	bankTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		b.banks = redisinfra.NewBankRepository(redisClient, loaders, bankTTL)
		b.notifier = redisinfra.NewNotifier(redisClient, log)
		b.shuffles = redisinfra.NewShuffleStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	} else {
		b.banks = memory.NewBankRepository(loaders, bankTTL)
		b.notifier = memory.NewBroker()
	}

	if pool != nil {
		pg := pgstore.NewStore(pool)
		b.store = pg
		// Postgres keeps the shuffles next to the answers unless Redis already does.
		if b.shuffles == nil {
			b.shuffles = pg
		}
	} else {
		mem := memory.NewStore()
		b.store = mem
		if b.shuffles == nil {
			b.shuffles = mem
		}
	}
	return b, nil
}

func runServer(ctx context.Context, cfg config.Config) error {
	log := slog.Default()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	secret := cfg.Auth.Secret
	if secret == "" {
		return errors.New("auth.secret not configured")
	}
	issuer := auth.NewIssuer(secret, config.TTLDuration(cfg.Auth.TokenTTL, 6*time.Hour))

	service := app.NewGameService(b.store, b.shuffles, b.banks, b.notifier, app.WithLogger(log))
	router := transport.NewRouter(
		transport.NewAPI(service, issuer, log),
		transport.NewWSHandler(service, issuer, log),
		transport.NewQRHandler(service, cfg.Server.PublicURL),
	)

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz service", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
