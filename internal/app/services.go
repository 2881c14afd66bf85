package app

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
	"github.com/odyssey-erp/odyssey-aging/internal/aging/export"
	"github.com/odyssey-erp/odyssey-aging/internal/ledger"
	"github.com/odyssey-erp/odyssey-aging/internal/observability"
	"github.com/odyssey-erp/odyssey-aging/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-aging/internal/platform/db"
	"github.com/odyssey-erp/odyssey-aging/jobs"
	"github.com/odyssey-erp/odyssey-aging/report"
)

// Services bundles the long-lived dependencies shared by the server, the
// worker and the CLI.
type Services struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Redis   *redis.Client
	// Inspector reads the job queues; nil without Redis.
	Inspector *asynq.Inspector
	Pool      *pgxpool.Pool
	Cache     *aging.Cache
	Aging     *aging.Service
	Loader    *ledger.Loader
	PDF       export.PDFRenderer
	Postgres  aging.LedgerSource
}

// OpenOptions selects which backing services Open connects to.
type OpenOptions struct {
	Cache    bool
	Postgres bool
}

// Open connects the optional backing services. An unreachable Redis disables
// caching with a warning; a configured but unreachable Postgres is an error.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger, opts OpenOptions) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Loader:  ledger.NewLoader(logger),
	}

	if opts.Cache {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		} else {
			s.Redis = client
			s.Cache = aging.NewCache(client, cfg.CacheTTL)
			s.Inspector = asynq.NewInspector(jobs.RedisOpt(client.Options()))
		}
	}

	if opts.Postgres && cfg.PostgresEnabled() {
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Pool = pool
		s.Postgres = ledger.NewPostgresSource(pool, cfg.Relation())
	}

	if cfg.GotenbergURL != "" {
		s.PDF = report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	}

	s.Aging = aging.NewService(s.Cache, s.Metrics, logger)
	return s, nil
}

// Close releases every connection opened by Open.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Inspector != nil {
		if err := s.Inspector.Close(); err != nil {
			s.Logger.Warn("inspector close", slog.Any("error", err))
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
