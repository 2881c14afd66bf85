package aginghttp

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

const ledgerCSV = `Vendor,Date,Debit,Credit,Account,Code
Acme,2025-02-19,100,,Trade Payables,2100
Acme,2025-03-21,50,,Trade Payables,2100
Globex,2025-04-03,7,,Trade Payables,2100
Initech,2025-03-01,9,,Accrued,2050
`

const mappingJSON = `{"vendor_name":1,"entry_date":2,"debit_amount":3,"credit_amount":4,"account_name":5,"account_code":6}`

func newTestRouter(t *testing.T, limit RateLimit) (*chi.Mux, *Handler) {
	t.Helper()
	svc := aging.NewService(nil, nil, nil)
	h := NewHandler(nil, svc, nil, nil, nil)
	h.WithNow(func() time.Time { return time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC) })
	r := chi.NewRouter()
	h.MountRoutes(r, limit)
	return r, h
}

func multipartRequest(t *testing.T, path, profileJSON string, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if profileJSON != "" {
		require.NoError(t, writer.WriteField("profile", profileJSON))
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("ledger", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.RemoteAddr = "10.0.0.1:1234"
	return req
}

func TestReportCSVFromUpload(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})
	profile := `{"as_of":"2025-03-31","accounts":["2100"],"format":"csv","mapping":` + mappingJSON + `}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/aging/reports", profile, map[string]string{"ledger.csv": ledgerCSV}, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "aging_report_20250401093000.csv")
	require.Equal(t, "1", rec.Header().Get("X-Aging-Flagged"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "Acme", records[1][1])
	require.Equal(t, "150.00", records[1][len(records[1])-1])
	require.Equal(t, "Globex", records[2][1])
}

func TestReportJSONRejectPolicy(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})
	profile := `{"as_of":"2025-03-31","accounts":["2100"],"policy":"reject","mapping":` + mappingJSON + `}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/aging/reports?format=json", profile, map[string]string{"ledger.csv": ledgerCSV}, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Validation Failed")
}

func TestReportJSONFormat(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})
	profile := `{"as_of":"2025-03-31","accounts":["2050"],"mapping":` + mappingJSON + `}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/aging/reports?format=json", profile, map[string]string{"ledger.csv": ledgerCSV}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report aging.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Rows, 1)
	require.Equal(t, "Initech", report.Rows[0].Vendor)
	require.Equal(t, []string{"ledger.csv"}, report.Sources)
}

func TestReportValidationErrors(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})
	cases := map[string]*http.Request{
		"missing date":   multipartRequest(t, "/aging/reports", `{"mapping":`+mappingJSON+`}`, map[string]string{"l.csv": ledgerCSV}, nil),
		"no ledger":      multipartRequest(t, "/aging/reports", `{"as_of":"2025-03-31","mapping":`+mappingJSON+`}`, nil, nil),
		"bad mapping":    multipartRequest(t, "/aging/reports", `{"as_of":"2025-03-31","mapping":{"vendor_name":1,"entry_date":2,"debit_amount":3,"credit_amount":4,"account_name":5,"account_code":60}}`, map[string]string{"l.csv": ledgerCSV}, nil),
		"bad format":     multipartRequest(t, "/aging/reports?format=docx", `{"as_of":"2025-03-31","mapping":`+mappingJSON+`}`, map[string]string{"l.csv": ledgerCSV}, nil),
		"legacy upload":  multipartRequest(t, "/aging/reports", `{"as_of":"2025-03-31","mapping":`+mappingJSON+`}`, map[string]string{"old.xls": "x"}, nil),
		"malformed json": multipartRequest(t, "/aging/reports", `{"as_of":`, map[string]string{"l.csv": ledgerCSV}, nil),
	}
	for name, req := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, name+": "+rec.Body.String())
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/aging/reports", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportUnavailableBackends(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/aging/reports", strings.NewReader(`{"source":"postgres","as_of":"2025-03-31"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	profile := `{"as_of":"2025-03-31","accounts":["2100"],"format":"pdf","mapping":` + mappingJSON + `}`
	r.ServeHTTP(rec, multipartRequest(t, "/aging/reports", profile, map[string]string{"ledger.csv": ledgerCSV}, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportPostgresSource(t *testing.T) {
	ledger := aging.Ledger{
		Header: []string{"vendor_name", "entry_date", "debit_amount", "credit_amount", "account_name", "account_code"},
		Rows:   []aging.RawRow{{"Acme", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "10", "0", "AP", "2100"}},
	}
	h := NewHandler(nil, aging.NewService(nil, nil, nil), nil, nil, aging.StaticSource{Ledger: ledger, Name: "postgres"})
	r := chi.NewRouter()
	h.MountRoutes(r, RateLimit{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/aging/reports?format=csv", strings.NewReader(`{"source":"postgres","as_of":"2025-03-31","accounts":["2100"]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "Acme,2100,AP,10.00")
}

func TestAccountsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/aging/accounts", "", map[string]string{"ledger.csv": ledgerCSV},
		map[string]string{"account_code": "6", "account_name": "5"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Accounts []aging.Account `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []aging.Account{
		{Code: "2050", Name: "Accrued", Lines: 1},
		{Code: "2100", Name: "Trade Payables", Lines: 3},
	}, body.Accounts)
}

func TestBucketsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/aging/buckets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"Within 1 month"`)
	require.Contains(t, rec.Body.String(), `"Total Amount"`)
}

func TestReportRateLimited(t *testing.T) {
	r, _ := newTestRouter(t, RateLimit{Requests: 1, Window: time.Minute})
	profile := `{"as_of":"2025-03-31","accounts":["2100"],"format":"csv","mapping":` + mappingJSON + `}`
	first := httptest.NewRecorder()
	r.ServeHTTP(first, multipartRequest(t, "/aging/reports", profile, map[string]string{"ledger.csv": ledgerCSV}, nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, multipartRequest(t, "/aging/reports", profile, map[string]string{"ledger.csv": ledgerCSV}, nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

type blockingService struct {
	*aging.Service
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	calls   int
	ctxErrs []error
}

func (b *blockingService) Generate(ctx context.Context, source aging.LedgerSource, req aging.Request) (aging.Report, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	<-b.release
	b.mu.Lock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return aging.Report{}, err
	}
	return b.Service.Generate(ctx, source, req)
}

func TestReportSharedBuildSurvivesFirstCallerCancel(t *testing.T) {
	svc := &blockingService{
		Service: aging.NewService(nil, nil, nil),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := NewHandler(nil, svc, nil, nil, nil)
	r := chi.NewRouter()
	h.MountRoutes(r, RateLimit{})
	profile := `{"as_of":"2025-03-31","accounts":["2100"],"format":"csv","mapping":` + mappingJSON + `}`
	files := map[string]string{"ledger.csv": ledgerCSV}

	ctx, cancel := context.WithCancel(context.Background())
	firstReq := multipartRequest(t, "/aging/reports", profile, files, nil).WithContext(ctx)
	secondReq := multipartRequest(t, "/aging/reports", profile, files, nil)

	first := httptest.NewRecorder()
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		r.ServeHTTP(first, firstReq)
	}()
	<-svc.started

	second := httptest.NewRecorder()
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		r.ServeHTTP(second, secondReq)
	}()

	cancel()
	<-firstDone
	time.Sleep(50 * time.Millisecond)
	close(svc.release)
	<-secondDone

	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	require.Contains(t, second.Body.String(), "Acme")
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, err := range svc.ctxErrs {
		require.NoError(t, err)
	}
}
