package jobs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TaskAgingLedgerRefresh refreshes the materialized view behind the Postgres
// ledger source and then invalidates cached reports.
const TaskAgingLedgerRefresh = "aging:ledger:refresh"

// Execer runs a statement; *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewLedgerRefreshTask constructs the refresh task.
func NewLedgerRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskAgingLedgerRefresh, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// RefreshLedgerView refreshes relation, which must be a materialized view with
// a unique index, and bumps the cache so reports pick up the new rows.
func RefreshLedgerView(ctx context.Context, db Execer, relation string, inv CacheInvalidator, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		return nil
	}
	ident := pgx.Identifier(strings.Split(relation, ".")).Sanitize()
	if _, err := db.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+ident); err != nil {
		logger.Error("refresh ledger view", slog.String("relation", relation), slog.Any("error", err))
		return err
	}
	if inv != nil {
		if err := inv.Invalidate(ctx); err != nil {
			logger.Warn("invalidate aging cache", slog.Any("error", err))
		}
	}
	logger.Info("refreshed ledger view", slog.String("job", TaskAgingLedgerRefresh), slog.String("relation", relation))
	return nil
}

// NewLedgerRefreshHandler returns the handler for TaskAgingLedgerRefresh.
func NewLedgerRefreshHandler(db Execer, relation string, inv CacheInvalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := defaultJobMetrics.Track("aging_ledger_refresh")
		return tracker.End(RefreshLedgerView(ctx, db, relation, inv, logger))
	}
}
