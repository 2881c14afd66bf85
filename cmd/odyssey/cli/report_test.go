package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
	"github.com/odyssey-erp/odyssey-aging/internal/profile"
	"github.com/odyssey-erp/odyssey-aging/jobs"
)

const ledgerCSV = `Vendor,Date,Debit,Credit,Account,Code
Acme,2025-02-19,100,,Trade Payables,2100
Acme,2025-03-21,50,,Trade Payables,2100
Globex,2025-04-03,7,,Trade Payables,2100
Initech,2025-03-01,9,,Accrued,2050
`

var fullMapping = map[string]int{
	"vendor_name": 1, "entry_date": 2, "debit_amount": 3,
	"credit_amount": 4, "account_name": 5, "account_code": 6,
}

func newTestCLI(t *testing.T) (*ReportCLI, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.csv"), []byte(ledgerCSV), 0o600))
	c, err := NewReportCLI(aging.NewService(nil, nil, nil), nil, nil, nil)
	require.NoError(t, err)
	c.WithNow(func() time.Time { return time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC) })
	return c, dir
}

func TestReportCommandWritesDefaultFile(t *testing.T) {
	c, dir := newTestCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := c.ReportCommand(context.Background(), ReportOptions{
		ProfileFlags: ProfileFlags{Folder: dir, AsOf: "2025-03-31", Accounts: []string{"2100"}, Mapping: fullMapping},
		Stdout:       stdout,
		Stderr:       stderr,
	})
	require.Equal(t, ExitOK, code, stderr.String())

	path := filepath.Join(dir, "aging_report_20250401093000.xlsx")
	_, err := os.Stat(path)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), path)
	require.Contains(t, stdout.String(), "2 vendor(s), accounts 2100, total 157.00")
	require.Contains(t, stderr.String(), "Globex (2100) dated 2025-04-03 is 3 day(s) after the report date")
}

func TestReportCommandStrictExitCode(t *testing.T) {
	c, dir := newTestCLI(t)
	stderr := new(bytes.Buffer)
	code := c.ReportCommand(context.Background(), ReportOptions{
		ProfileFlags: ProfileFlags{Folder: dir, Format: "csv", AsOf: "2025-03-31", Accounts: []string{"2100"}, Mapping: fullMapping},
		Strict:       true,
		Stdout:       new(bytes.Buffer),
		Stderr:       stderr,
	})
	require.Equal(t, ExitFlagged, code)

	code = c.ReportCommand(context.Background(), ReportOptions{
		ProfileFlags: ProfileFlags{Folder: dir, Format: "csv", AsOf: "2025-03-31", Accounts: []string{"2050"}, Mapping: fullMapping},
		Strict:       true,
		Stdout:       new(bytes.Buffer),
		Stderr:       new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
}

func TestReportCommandProfileRoundTrip(t *testing.T) {
	c, dir := newTestCLI(t)
	saved := filepath.Join(t.TempDir(), "aging.yaml")
	out := filepath.Join(t.TempDir(), "report.json")

	code := c.ReportCommand(context.Background(), ReportOptions{
		ProfileFlags: ProfileFlags{Folder: dir, Output: out, AsOf: "2025-03-31", Accounts: []string{"2050", "2100"}, Mapping: fullMapping},
		SaveProfile:  saved,
		Stdout:       new(bytes.Buffer),
		Stderr:       new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)

	var report aging.Report
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &report))
	require.Equal(t, []string{"2050", "2100"}, report.Accounts)

	p, err := profile.Load(saved)
	require.NoError(t, err)
	require.Equal(t, dir, p.Folder)
	require.Equal(t, "json", p.Format)
	require.Equal(t, 6, p.Mapping.AccountCode)

	// The saved profile alone reproduces the run; a flag still wins.
	require.NoError(t, os.Remove(out))
	code = c.ReportCommand(context.Background(), ReportOptions{
		ProfileFlags: ProfileFlags{ProfilePath: saved, Accounts: []string{"2100"}},
		Stdout:       new(bytes.Buffer),
		Stderr:       new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &report))
	require.Equal(t, []string{"2100"}, report.Accounts)
}

func TestReportCommandListColumns(t *testing.T) {
	c, dir := newTestCLI(t)
	stdout := new(bytes.Buffer)
	code := c.ReportCommand(context.Background(), ReportOptions{
		ProfileFlags: ProfileFlags{Folder: dir},
		ListColumns:  true,
		Stdout:       stdout,
		Stderr:       new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
	require.Equal(t, "1. Vendor\n2. Date\n3. Debit\n4. Credit\n5. Account\n6. Code\n", stdout.String())
}

func TestReportCommandErrors(t *testing.T) {
	c, dir := newTestCLI(t)
	cases := map[string]ProfileFlags{
		"missing folder":  {AsOf: "2025-03-31", Mapping: fullMapping},
		"missing date":    {Folder: dir, Mapping: fullMapping},
		"bad mapping key": {Folder: dir, AsOf: "2025-03-31", Mapping: map[string]int{"vendor": 1}},
		"bad format":      {Folder: dir, AsOf: "2025-03-31", Mapping: fullMapping, Format: "docx"},
		"pdf unavailable": {Folder: dir, AsOf: "2025-03-31", Mapping: fullMapping, Format: "pdf"},
		"postgres":        {Source: "postgres", AsOf: "2025-03-31"},
		"reject":          {Folder: dir, AsOf: "2025-03-31", Mapping: fullMapping, Accounts: []string{"2100"}, Policy: "reject"},
	}
	for name, flags := range cases {
		stderr := new(bytes.Buffer)
		code := c.ReportCommand(context.Background(), ReportOptions{ProfileFlags: flags, Stdout: new(bytes.Buffer), Stderr: stderr})
		require.Equal(t, ExitError, code, name)
		require.Contains(t, stderr.String(), "report: ", name)
	}
}

func TestAccountsCommand(t *testing.T) {
	c, dir := newTestCLI(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.AccountsCommand(context.Background(), AccountsOptions{
		ProfileFlags: ProfileFlags{Folder: dir, Mapping: map[string]int{"account_code": 6, "account_name": 5}},
		JSONOutput:   true,
		Stdout:       stdout,
		Stderr:       stderr,
	})
	require.Equal(t, ExitOK, code, stderr.String())

	var summary AccountsSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Len(t, summary.Columns, 6)
	require.Equal(t, []aging.Account{
		{Code: "2050", Name: "Accrued", Lines: 1},
		{Code: "2100", Name: "Trade Payables", Lines: 3},
	}, summary.Accounts)

	stdout.Reset()
	code = c.AccountsCommand(context.Background(), AccountsOptions{
		ProfileFlags: ProfileFlags{Folder: dir},
		Stdout:       stdout,
		Stderr:       stderr,
	})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "6. Code")
	require.NotContains(t, stdout.String(), "Accounts:")
	require.Contains(t, stderr.String(), "--map account_code=6")
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueReports, Payload: task.Payload()}, nil
}

func TestJobsEnqueueCommand(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := &JobsCLI{client: enq}

	stdout := new(bytes.Buffer)
	code := c.EnqueueCommand(context.Background(), EnqueueOptions{
		Task:         jobs.TaskAgingReportGenerate,
		ProfileFlags: ProfileFlags{Folder: "/srv/ledgers", Accounts: []string{"2100"}, Mapping: fullMapping},
		Stdout:       stdout,
		Stderr:       new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
	require.Contains(t, stdout.String(), "enqueued aging:report:generate id=t-1")

	var payload jobs.AgingReportPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "/srv/ledgers", payload.Profile.Folder)
	require.Equal(t, profile.SourceFolder, payload.Profile.Source)

	stderr := new(bytes.Buffer)
	code = c.EnqueueCommand(context.Background(), EnqueueOptions{Task: jobs.TaskAgingReportGenerate, Stderr: stderr, Stdout: new(bytes.Buffer)})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "--folder is required")

	code = c.EnqueueCommand(context.Background(), EnqueueOptions{Task: "mail:send", Stderr: stderr, Stdout: new(bytes.Buffer)})
	require.Equal(t, ExitError, code)

	code = c.EnqueueCommand(context.Background(), EnqueueOptions{Task: jobs.TaskAgingCacheInvalidate, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, code)
	require.Len(t, enq.tasks, 2)
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{{"report"}, {"accounts"}, {"serve"}, {"jobs", "enqueue"}, {"jobs", "stats"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
	report, _, err := root.Find([]string{"report"})
	require.NoError(t, err)
	for _, flag := range []string{"profile", "folder", "as-of", "account", "map", "save-profile", "list-columns", "strict"} {
		require.NotNil(t, report.Flags().Lookup(flag), flag)
	}
}
