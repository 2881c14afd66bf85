package aginghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
	"github.com/odyssey-erp/odyssey-aging/internal/aging/export"
	"github.com/odyssey-erp/odyssey-aging/internal/ledger"
	"github.com/odyssey-erp/odyssey-aging/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-aging/internal/profile"
)

const (
	defaultMaxUpload = 32 << 20
	requestTimeout   = 60 * time.Second
)

var errPostgresDisabled = errors.New("aging: postgres source not configured")

// ReportService is the aging contract used by the handler.
type ReportService interface {
	Generate(ctx context.Context, source aging.LedgerSource, req aging.Request) (aging.Report, error)
	Accounts(ctx context.Context, source aging.LedgerSource, mapping aging.FieldMapping) ([]aging.Account, error)
}

// Handler serves aging report generation over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	loader    *ledger.Loader
	pdf       export.PDFRenderer
	postgres  aging.LedgerSource
	maxUpload int64
	group     singleflight.Group
	now       func() time.Time
}

// NewHandler constructs the handler. pdf and postgres may be nil, in which case
// PDF output and the Postgres source are refused.
func NewHandler(logger *slog.Logger, service ReportService, loader *ledger.Loader, pdf export.PDFRenderer, postgres aging.LedgerSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = ledger.NewLoader(logger)
	}
	return &Handler{
		logger:    logger,
		service:   service,
		loader:    loader,
		pdf:       pdf,
		postgres:  postgres,
		maxUpload: defaultMaxUpload,
		now:       time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithMaxUpload caps the accepted request body size.
func (h *Handler) WithMaxUpload(n int64) {
	if n > 0 {
		h.maxUpload = n
	}
}

type document struct {
	data    []byte
	flagged int
}

type reportInput struct {
	profile profile.Profile
	uploads []ledger.Upload
	raw     []byte
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	in, err := h.readInput(w, r)
	if err != nil {
		h.respondError(w, "read report request", err)
		return
	}
	format, err := export.ParseFormat(firstNonEmpty(r.URL.Query().Get("format"), in.profile.Format))
	if err != nil {
		h.respondError(w, "parse format", err)
		return
	}
	source, fallback, err := h.source(ctx, in)
	if err != nil {
		h.respondError(w, "resolve source", err)
		return
	}
	req, err := in.profile.Request(fallback)
	if err != nil {
		h.respondError(w, "validate profile", err)
		return
	}

	flightKey := ""
	if keyed, ok := source.(aging.KeyedSource); ok && keyed.CacheKey() != "" {
		flightKey = strings.Join([]string{keyed.CacheKey(), string(format), string(in.raw)}, "|")
	}
	render := func(ctx context.Context) (document, error) {
		report, err := h.service.Generate(ctx, source, req)
		if err != nil {
			return document{}, err
		}
		var buf bytes.Buffer
		if err := export.Write(ctx, &buf, format, report, h.pdf); err != nil {
			return document{}, err
		}
		return document{data: buf.Bytes(), flagged: len(report.Flagged)}, nil
	}
	var doc document
	if flightKey == "" {
		doc, err = render(ctx)
	} else {
		doc, err = h.shared(ctx, flightKey, func(shared context.Context) (interface{}, error) {
			return render(shared)
		})
	}
	if err != nil {
		h.respondError(w, "generate report", err)
		return
	}

	filename := export.DefaultFileName(h.now(), format)
	w.Header().Set("Content-Type", format.ContentType())
	if format != export.FormatJSON {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	}
	w.Header().Set("X-Aging-Flagged", strconv.Itoa(doc.flagged))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.data); err != nil {
		h.logger.Warn("write report response", slog.Any("error", err))
	}
}

// shared runs fn once for concurrent callers with the same key. The build is
// detached from the caller that started it, so a disconnecting client does not
// fail the others; each caller still stops waiting when its own context ends.
func (h *Handler) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (document, error) {
	ch := h.group.DoChan(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
		defer cancel()
		return fn(buildCtx)
	})
	select {
	case <-ctx.Done():
		return document{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return document{}, res.Err
		}
		return res.Val.(document), nil
	}
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	in, err := h.readInput(w, r)
	if err != nil {
		h.respondError(w, "read accounts request", err)
		return
	}
	source, fallback, err := h.source(ctx, in)
	if err != nil {
		h.respondError(w, "resolve source", err)
		return
	}
	mapping := in.profile.FieldMapping()
	if mapping == nil {
		mapping = fallback
	}
	if mapping == nil {
		code, _ := strconv.Atoi(r.FormValue("account_code"))
		name, _ := strconv.Atoi(r.FormValue("account_name"))
		mapping = aging.FieldMapping{aging.FieldAccountCode: code, aging.FieldAccountName: name}
	}
	accounts, err := h.service.Accounts(ctx, source, mapping)
	if err != nil {
		h.respondError(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

type bucketView struct {
	aging.Bucket
	Label string `json:"label"`
}

func (h *Handler) handleBuckets(w http.ResponseWriter, r *http.Request) {
	buckets := aging.DefaultBuckets()
	out := make([]bucketView, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketView{Bucket: b, Label: b.Label()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"buckets": out, "columns": aging.Columns(buckets)})
}

// readInput accepts either a JSON profile body or a multipart form carrying a
// "profile" JSON field and one or more "ledger" files.
func (h *Handler) readInput(w http.ResponseWriter, r *http.Request) (reportInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var in reportInput
	switch mediaType {
	case "application/json":
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return in, err
		}
		in.raw = raw
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return in, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		in.raw = []byte(r.FormValue("profile"))
		for _, fh := range r.MultipartForm.File["ledger"] {
			f, err := fh.Open()
			if err != nil {
				return in, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return in, err
			}
			in.uploads = append(in.uploads, ledger.Upload{Name: fh.Filename, Data: data})
		}
	default:
		return in, fmt.Errorf("%w: unsupported content type %q", httpx.ErrValidation, mediaType)
	}
	if len(bytes.TrimSpace(in.raw)) > 0 {
		if err := json.Unmarshal(in.raw, &in.profile); err != nil {
			return in, fmt.Errorf("%w: profile: %v", httpx.ErrValidation, err)
		}
	}
	if in.profile.Source == "" || in.profile.Source == profile.SourceFolder {
		in.profile.Source = profile.SourceUpload
		in.profile.Folder = ""
	}
	return in, nil
}

func (h *Handler) source(ctx context.Context, in reportInput) (aging.LedgerSource, aging.FieldMapping, error) {
	if in.profile.Source == profile.SourcePostgres {
		if h.postgres == nil {
			return nil, nil, errPostgresDisabled
		}
		return h.postgres, ledger.PostgresMapping(), nil
	}
	if len(in.uploads) == 0 {
		return nil, nil, fmt.Errorf("%w: %w", httpx.ErrValidation, ledger.ErrNoLedgerFiles)
	}
	parsed, err := h.loader.ParseUploads(ctx, in.uploads)
	if err != nil {
		return nil, nil, err
	}
	static := aging.StaticSource{Ledger: parsed, Key: ledger.UploadKey(in.uploads), Name: "upload"}
	return static.Keyed(), nil, nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errPostgresDisabled), errors.Is(err, export.ErrPDFUnavailable), errors.Is(err, ledger.ErrRelationMissing):
		h.logger.Warn(op, slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrUnavailable, err))
		return
	case isClientError(err):
		h.logger.Info(op, slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrValidation, err))
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	var maxErr *http.MaxBytesError
	for _, target := range []error{
		httpx.ErrValidation,
		profile.ErrInvalidProfile,
		export.ErrUnknownFormat,
		aging.ErrFieldMapping,
		aging.ErrInvalidCell,
		aging.ErrFutureDatedEntry,
		aging.ErrInvalidBuckets,
		aging.ErrUnknownPolicy,
		aging.ErrReportDateRequired,
		ledger.ErrNoLedgerFiles,
		ledger.ErrUnsupportedFormat,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var fileErr *ledger.FileError
	return errors.As(err, &maxErr) || errors.As(err, &fileErr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
