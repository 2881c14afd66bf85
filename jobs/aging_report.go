package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
	"github.com/odyssey-erp/odyssey-aging/internal/aging/export"
	jobmetrics "github.com/odyssey-erp/odyssey-aging/internal/jobs"
	"github.com/odyssey-erp/odyssey-aging/internal/ledger"
	"github.com/odyssey-erp/odyssey-aging/internal/profile"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

var errPostgresDisabled = errors.New("aging report: postgres source not configured")

// ReportGenerator is the part of aging.Service the job needs.
type ReportGenerator interface {
	Generate(ctx context.Context, source aging.LedgerSource, req aging.Request) (aging.Report, error)
}

// AgingReportJob generates aging reports in the background and writes them to
// the output folder.
type AgingReportJob struct {
	Service  ReportGenerator
	Loader   *ledger.Loader
	PDF      export.PDFRenderer
	Postgres aging.LedgerSource
	// OutputDir is used when the profile names no output; when both are empty
	// the report lands in the source folder.
	OutputDir string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAgingReportJob wires dependencies for the report handler.
func NewAgingReportJob(service ReportGenerator, loader *ledger.Loader, pdf export.PDFRenderer, postgres aging.LedgerSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *AgingReportJob {
	return &AgingReportJob{
		Service:  service,
		Loader:   loader,
		PDF:      pdf,
		Postgres: postgres,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes aging report tasks. Input problems are permanent and skip
// retries; I/O and backend failures are retried by asynq.
func (j *AgingReportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("aging report: handler not configured")
	}
	var payload AgingReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("aging report: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track("aging_report")
	path, flagged, err := j.run(ctx, payload.Profile)
	err = tracker.End(err)
	j.metrics().AddFlagged("aging_report", flagged)

	logger := j.logger().With(slog.String("source", payload.Profile.Source), slog.String("folder", payload.Profile.Folder))
	if err != nil {
		logger.Error("generate aging report", slog.Any("error", err))
		if permanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Info("wrote aging report", slog.String("path", path), slog.Int("flagged", flagged))
	if w := t.ResultWriter(); w != nil {
		_, _ = w.Write([]byte(path))
	}
	return nil
}

func (j *AgingReportJob) run(ctx context.Context, p profile.Profile) (string, int, error) {
	now := j.now()
	if p.Source == "" {
		p.Source = profile.SourceFolder
	}
	if p.AsOf == "" {
		p.AsOf = now.Format(time.DateOnly)
	}

	var (
		source   aging.LedgerSource
		fallback aging.FieldMapping
	)
	switch p.Source {
	case profile.SourceFolder:
		source = ledger.NewFolderSource(p.Folder, j.Loader)
	case profile.SourcePostgres:
		if j.Postgres == nil {
			return "", 0, errPostgresDisabled
		}
		source, fallback = j.Postgres, ledger.PostgresMapping()
	default:
		return "", 0, fmt.Errorf("%w: source %q cannot run in the background", profile.ErrInvalidProfile, p.Source)
	}

	req, err := p.Request(fallback)
	if err != nil {
		return "", 0, err
	}
	format, err := export.ParseFormat(p.Format)
	if err != nil {
		return "", 0, err
	}
	report, err := j.Service.Generate(ctx, source, req)
	if err != nil {
		return "", 0, err
	}
	path := j.outputPath(p, format, now)
	if err := export.WriteFile(ctx, path, report, j.PDF); err != nil {
		return "", 0, err
	}
	return path, len(report.Flagged), nil
}

// outputPath resolves the destination: an explicit file keeps its name, an
// explicit directory gets the timestamped default name.
func (j *AgingReportJob) outputPath(p profile.Profile, format export.Format, now time.Time) string {
	if p.Output != "" && filepath.Ext(p.Output) != "" {
		return p.Output
	}
	dir := p.Output
	if dir == "" {
		dir = j.OutputDir
	}
	if dir == "" {
		dir = p.Folder
	}
	return filepath.Join(dir, export.DefaultFileName(now, format))
}

func permanent(err error) bool {
	for _, target := range []error{
		profile.ErrInvalidProfile,
		export.ErrUnknownFormat,
		export.ErrPDFUnavailable,
		aging.ErrFieldMapping,
		aging.ErrInvalidCell,
		aging.ErrFutureDatedEntry,
		aging.ErrInvalidBuckets,
		aging.ErrUnknownPolicy,
		ledger.ErrNoLedgerFiles,
		ledger.ErrRelationMissing,
		errPostgresDisabled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (j *AgingReportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAgingReportGenerate))
	}
	return slog.Default().With(slog.String("job", TaskAgingReportGenerate))
}

func (j *AgingReportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AgingReportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// CacheInvalidator bumps the report cache version.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// NewCacheInvalidateHandler returns the handler for TaskAgingCacheInvalidate.
func NewCacheInvalidateHandler(inv CacheInvalidator, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("aging_cache_invalidate")
		err := tracker.End(inv.Invalidate(ctx))
		if err != nil {
			logger.Warn("invalidate aging cache", slog.String("job", TaskAgingCacheInvalidate), slog.Any("error", err))
			return err
		}
		logger.Info("invalidated aging cache", slog.String("job", TaskAgingCacheInvalidate))
		return nil
	}
}
