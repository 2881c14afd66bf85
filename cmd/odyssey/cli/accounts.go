package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// AccountsSummary is the JSON output of the accounts command.
type AccountsSummary struct {
	Columns  []string        `json:"columns"`
	Accounts []aging.Account `json:"accounts"`
}

// AccountsCommand lists the ledger columns and, once the account code and name
// columns are mapped, the distinct accounts available for selection.
func (c *ReportCLI) AccountsCommand(ctx context.Context, opts AccountsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)

	p, err := resolveProfile(opts.ProfileFlags)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "accounts: %v\n", err)
		return ExitError
	}
	source, fallback, err := c.source(p)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "accounts: %v\n", err)
		return ExitError
	}
	ledgerData, err := source.LoadLedger(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "accounts: %v\n", err)
		return ExitError
	}

	mapping := p.FieldMapping()
	if mapping == nil {
		mapping = fallback
	}
	summary := AccountsSummary{Columns: ledgerData.Header, Accounts: []aging.Account{}}
	if mapping[aging.FieldAccountCode] > 0 && mapping[aging.FieldAccountName] > 0 {
		accounts, err := c.service.Accounts(ctx, aging.StaticSource{Ledger: ledgerData, Name: "cli"}, mapping)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "accounts: %v\n", err)
			return ExitError
		}
		summary.Accounts = accounts
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "accounts: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}

	_, _ = fmt.Fprintln(stdout, "Columns:")
	printColumns(stdout, summary.Columns)
	if mapping[aging.FieldAccountCode] == 0 || mapping[aging.FieldAccountName] == 0 {
		_, _ = fmt.Fprintln(stderr, "accounts: map account_code and account_name (e.g. --map account_code=6 --map account_name=5) to list accounts")
		return ExitOK
	}
	_, _ = fmt.Fprintln(stdout, "Accounts:")
	renderAccounts(stdout, summary.Accounts)
	return ExitOK
}

func renderAccounts(out io.Writer, accounts []aging.Account) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tNAME\tLINES")
	for _, a := range accounts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", a.Code, a.Name, a.Lines)
	}
	_ = tw.Flush()
}
