package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
	"github.com/odyssey-erp/odyssey-aging/internal/aging/export"
	"github.com/odyssey-erp/odyssey-aging/internal/ledger"
	"github.com/odyssey-erp/odyssey-aging/internal/profile"
)

// Exit codes shared by the report commands.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitFlagged = 10
)

// Generator is the part of aging.Service used by the CLI.
type Generator interface {
	Generate(ctx context.Context, source aging.LedgerSource, req aging.Request) (aging.Report, error)
	Accounts(ctx context.Context, source aging.LedgerSource, mapping aging.FieldMapping) ([]aging.Account, error)
}

// ReportCLI runs aging reports from the command line.
type ReportCLI struct {
	service  Generator
	loader   *ledger.Loader
	pdf      export.PDFRenderer
	postgres aging.LedgerSource
	now      func() time.Time
}

// NewReportCLI wires the report commands. pdf and postgres may be nil.
func NewReportCLI(service Generator, loader *ledger.Loader, pdf export.PDFRenderer, postgres aging.LedgerSource) (*ReportCLI, error) {
	if service == nil {
		return nil, errors.New("report cli: service is required")
	}
	if loader == nil {
		loader = ledger.NewLoader(nil)
	}
	return &ReportCLI{service: service, loader: loader, pdf: pdf, postgres: postgres, now: time.Now}, nil
}

// WithNow overrides the clock used for default output names.
func (c *ReportCLI) WithNow(fn func() time.Time) {
	if fn != nil {
		c.now = fn
	}
}

// ProfileFlags are the flag overrides applied on top of a loaded profile.
type ProfileFlags struct {
	ProfilePath string
	Source      string
	Folder      string
	Output      string
	Format      string
	AsOf        string
	Accounts    []string
	Mapping     map[string]int
	Policy      string
}

// ReportOptions defines the flags of the report command.
type ReportOptions struct {
	ProfileFlags
	SaveProfile string
	ListColumns bool
	// Strict exits with ExitFlagged when future-dated entries were found.
	Strict bool
	Stdout io.Writer
	Stderr io.Writer
}

// ReportCommand generates one report and prints a summary.
func (c *ReportCLI) ReportCommand(ctx context.Context, opts ReportOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)

	p, err := resolveProfile(opts.ProfileFlags)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return ExitError
	}
	source, fallback, err := c.source(p)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return ExitError
	}

	if opts.ListColumns {
		ledgerData, err := source.LoadLedger(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
			return ExitError
		}
		printColumns(stdout, ledgerData.Header)
		return ExitOK
	}

	req, err := p.Request(fallback)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return ExitError
	}
	format, err := export.ParseFormat(p.Format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return ExitError
	}
	if req.Accounts.Len() == 0 {
		_, _ = fmt.Fprintln(stderr, "report: warning: no accounts selected, the report will be empty")
	}

	report, err := c.service.Generate(ctx, source, req)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return ExitError
	}
	path := outputPath(p, format, c.now())
	if err := export.WriteFile(ctx, path, report, c.pdf); err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return ExitError
	}
	if opts.SaveProfile != "" {
		if err := profile.Save(opts.SaveProfile, p); err != nil {
			_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
			return ExitError
		}
	}

	total := export.GrandTotal(report)
	_, _ = fmt.Fprintf(stdout, "Aging report as of %s written to %s\n", report.AsOf.Format(time.DateOnly), path)
	_, _ = fmt.Fprintf(stdout, "%d vendor(s), accounts %s, total %s\n", len(report.Rows), strings.Join(report.Accounts, export.ListSeparator), total.StringFixed(2))
	for _, f := range report.Flagged {
		_, _ = fmt.Fprintf(stderr, "warning: row %d %s (%s) dated %s is %d day(s) after the report date\n",
			f.Seq+1, f.Vendor, f.AccountCode, f.EntryDate.Format(time.DateOnly), -f.AgeDays)
	}
	for _, u := range report.Unattributed {
		_, _ = fmt.Fprintf(stderr, "warning: row %d (%s) dated %s has no vendor and is not in any row\n",
			u.Seq+1, u.AccountCode, u.EntryDate.Format(time.DateOnly))
	}
	if opts.Strict && len(report.Flagged) > 0 {
		return ExitFlagged
	}
	return ExitOK
}

// AccountsOptions defines the flags of the accounts command.
type AccountsOptions struct {
	ProfileFlags
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (c *ReportCLI) source(p profile.Profile) (aging.LedgerSource, aging.FieldMapping, error) {
	switch p.Source {
	case "", profile.SourceFolder:
		if strings.TrimSpace(p.Folder) == "" {
			return nil, nil, errors.New("--folder is required")
		}
		return ledger.NewFolderSource(p.Folder, c.loader), nil, nil
	case profile.SourcePostgres:
		if c.postgres == nil {
			return nil, nil, errors.New("postgres source requires PG_DSN")
		}
		return c.postgres, ledger.PostgresMapping(), nil
	default:
		return nil, nil, fmt.Errorf("source %q is not available from the command line", p.Source)
	}
}

// resolveProfile loads the profile file (or the AGING_* environment) and
// applies explicit flags on top.
func resolveProfile(flags ProfileFlags) (profile.Profile, error) {
	p, err := profile.Load(flags.ProfilePath)
	if err != nil {
		return profile.Profile{}, err
	}
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&p.Source, flags.Source)
	set(&p.Folder, flags.Folder)
	set(&p.Output, flags.Output)
	set(&p.Format, flags.Format)
	set(&p.AsOf, flags.AsOf)
	set(&p.Policy, flags.Policy)
	if len(flags.Accounts) > 0 {
		p.Accounts = flags.Accounts
	}
	if len(flags.Mapping) > 0 {
		m, err := mergeMapping(p.Mapping, flags.Mapping)
		if err != nil {
			return profile.Profile{}, err
		}
		p.Mapping = m
	}
	// An explicit output file decides the format.
	if ext := filepath.Ext(p.Output); p.Output != "" && ext != "" {
		p.Format = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return p, nil
}

func mergeMapping(base *profile.Mapping, overrides map[string]int) (*profile.Mapping, error) {
	m := profile.Mapping{}
	if base != nil {
		m = *base
	}
	fields := map[aging.Field]*int{
		aging.FieldVendorName:   &m.VendorName,
		aging.FieldEntryDate:    &m.EntryDate,
		aging.FieldDebitAmount:  &m.DebitAmount,
		aging.FieldCreditAmount: &m.CreditAmount,
		aging.FieldAccountName:  &m.AccountName,
		aging.FieldAccountCode:  &m.AccountCode,
	}
	for key, col := range overrides {
		dst, ok := fields[aging.Field(strings.ToLower(strings.TrimSpace(key)))]
		if !ok {
			return nil, fmt.Errorf("unknown mapping field %q", key)
		}
		*dst = col
	}
	return &m, nil
}

// outputPath mirrors the worker: an explicit file keeps its name, a directory
// or nothing gets the timestamped default name (in the source folder).
func outputPath(p profile.Profile, format export.Format, now time.Time) string {
	if p.Output != "" && filepath.Ext(p.Output) != "" {
		return p.Output
	}
	dir := p.Output
	if dir == "" {
		dir = p.Folder
	}
	return filepath.Join(dir, export.DefaultFileName(now, format))
}

func printColumns(out io.Writer, header []string) {
	for i, name := range header {
		_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, name)
	}
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
