package aging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LedgerSource supplies the raw ledger for a report run.
type LedgerSource interface {
	LoadLedger(ctx context.Context) (Ledger, error)
}

// KeyedSource is a LedgerSource whose content can be identified for caching.
type KeyedSource interface {
	LedgerSource
	CacheKey() string
}

// Recorder receives report generation measurements.
type Recorder interface {
	ObserveReport(source string, rows int, duration time.Duration, err error)
}

// Service coordinates ledger loading, the aging pipeline and the cache layer.
type Service struct {
	cache   *Cache
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the optional cache and metrics recorder.
func NewService(cache *Cache, metrics Recorder, logger *slog.Logger) *Service {
	return &Service{
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Generate loads the ledger from source and produces the aging report.
func (s *Service) Generate(ctx context.Context, source LedgerSource, req Request) (Report, error) {
	start := time.Now()
	req = normaliseRequest(req)
	logger := s.log().With(slog.String("as_of", req.AsOf.Format(time.DateOnly)), slog.Int("accounts", req.Accounts.Len()))
	if req.Accounts.Len() == 0 {
		logger.Warn("generate aging report", slog.Any("error", ErrEmptySelection))
	}

	build := func(ctx context.Context) (Report, error) {
		ledger, err := source.LoadLedger(ctx)
		if err != nil {
			return Report{}, err
		}
		result, err := Build(ledger, req)
		if err != nil {
			return Report{}, err
		}
		return Report{
			ID:           uuid.New(),
			AsOf:         req.AsOf,
			GeneratedAt:  s.now(),
			Buckets:      req.Buckets,
			Accounts:     req.Accounts.Codes(),
			Rows:         result.Rows,
			Flagged:      result.Flagged,
			Unattributed: result.Unattributed,
			Sources:      ledger.Sources,
		}, nil
	}

	var sourceKey string
	if keyed, ok := source.(KeyedSource); ok {
		sourceKey = keyed.CacheKey()
	}
	report, hit, err := s.cache.Report(ctx, sourceKey, req, build)
	s.observe(sourceName(source), len(report.Rows), time.Since(start), err)
	if err != nil {
		logger.Error("generate aging report", slog.Any("error", err))
		return Report{}, err
	}

	for _, entry := range report.Flagged {
		logger.Warn("future-dated entry",
			slog.Int("row", entry.Seq+1),
			slog.String("vendor", entry.Vendor),
			slog.String("account_code", entry.AccountCode),
			slog.String("entry_date", entry.EntryDate.Format(time.DateOnly)))
	}
	if n := len(report.Unattributed); n > 0 {
		logger.Warn("entries without vendor excluded from rows", slog.Int("count", n))
	}
	logger.Info("generated aging report",
		slog.String("report_id", report.ID.String()),
		slog.Int("vendors", len(report.Rows)),
		slog.Int("flagged", len(report.Flagged)),
		slog.Bool("cached", hit),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

// Accounts lists the account catalogue of the source ledger.
func (s *Service) Accounts(ctx context.Context, source LedgerSource, mapping FieldMapping) ([]Account, error) {
	ledger, err := source.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	return Catalog(ledger, mapping)
}

// Invalidate retires every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *Service) observe(source string, rows int, d time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveReport(source, rows, d, err)
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func normaliseRequest(req Request) Request {
	if len(req.Buckets) == 0 {
		req.Buckets = DefaultBuckets()
	}
	if req.Policy == "" {
		req.Policy = PolicyFlag
	}
	if req.Accounts == nil {
		req.Accounts = NewAccountSelection()
	}
	req.AsOf = DateOnly(req.AsOf)
	return req
}

type namedSource interface {
	SourceName() string
}

func sourceName(source LedgerSource) string {
	if named, ok := source.(namedSource); ok {
		return named.SourceName()
	}
	return "unknown"
}
