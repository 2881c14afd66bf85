package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-aging/internal/app"
	"github.com/odyssey-erp/odyssey-aging/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-aging/jobs"
)

// errExit carries a non-zero exit code out of cobra without printing twice.
type errExit struct{ code int }

func (e errExit) Error() string { return "exit" }

// Execute runs the odyssey command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	var exit errExit
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exit):
		return exit.code
	default:
		root.PrintErrln("Error:", err)
		return ExitError
	}
}

func exitWith(code int) error {
	if code == ExitOK {
		return nil
	}
	return errExit{code: code}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "odyssey",
		Short:         "Vendor accounts-payable aging reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReportCommand(), newAccountsCommand(), newServeCommand(), newJobsCommand())
	return root
}

func bindProfileFlags(cmd *cobra.Command, f *ProfileFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.ProfilePath, "profile", "p", "", "report profile file (yaml, toml or json)")
	flags.StringVar(&f.Source, "source", "", "ledger source: folder or postgres")
	flags.StringVarP(&f.Folder, "folder", "f", "", "folder holding the ledger .xlsx/.csv files")
	flags.StringVarP(&f.Output, "output", "o", "", "output file or directory")
	flags.StringVar(&f.Format, "format", "", "output format: xlsx, csv, pdf or json")
	flags.StringVar(&f.AsOf, "as-of", "", "report date (YYYY-MM-DD)")
	flags.StringSliceVarP(&f.Accounts, "account", "a", nil, "account code to include, in order (repeatable)")
	flags.StringToIntVar(&f.Mapping, "map", nil, "1-based column of a field, e.g. vendor_name=1 (repeatable)")
	flags.StringVar(&f.Policy, "future-dated", "", "future-dated entries: flag, current or reject")
}

// withServices loads configuration and opens the backing services for a
// command, closing them once it returns.
func withServices(ctx context.Context, opts app.OpenOptions, fn func(*app.Services) int) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)
	services, err := app.Open(ctx, cfg, logger, opts)
	if err != nil {
		logger.Error("open services", slog.Any("error", err))
		return err
	}
	defer services.Close()
	return exitWith(fn(services))
}

func newReportCommand() *cobra.Command {
	var (
		opts    ReportOptions
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an aging report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Stdout, opts.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return withServices(cmd.Context(), app.OpenOptions{Cache: !noCache, Postgres: true}, func(s *app.Services) int {
				c, err := NewReportCLI(s.Aging, s.Loader, s.PDF, s.Postgres)
				if err != nil {
					cmd.PrintErrln(err)
					return ExitError
				}
				return c.ReportCommand(cmd.Context(), opts)
			})
		},
	}
	bindProfileFlags(cmd, &opts.ProfileFlags)
	cmd.Flags().StringVar(&opts.SaveProfile, "save-profile", "", "write the effective profile to this file")
	cmd.Flags().BoolVar(&opts.ListColumns, "list-columns", false, "print the numbered ledger columns and exit")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit with status 10 when future-dated entries are found")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use the Redis report cache")
	return cmd
}

func newAccountsCommand() *cobra.Command {
	var opts AccountsOptions
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List ledger columns and the accounts available for selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Stdout, opts.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return withServices(cmd.Context(), app.OpenOptions{Postgres: true}, func(s *app.Services) int {
				c, err := NewReportCLI(s.Aging, s.Loader, s.PDF, s.Postgres)
				if err != nil {
					cmd.PrintErrln(err)
					return ExitError
				}
				return c.AccountsCommand(cmd.Context(), opts)
			})
		},
	}
	bindProfileFlags(cmd, &opts.ProfileFlags)
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			services, err := app.Open(cmd.Context(), cfg, logger, app.OpenOptions{Cache: true, Postgres: true})
			if err != nil {
				return err
			}
			defer services.Close()
			return app.Serve(cmd.Context(), services)
		},
	}
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Manage background report jobs"}

	var enqueue EnqueueOptions
	enqueueCmd := &cobra.Command{
		Use:   "enqueue <task>",
		Short: "Enqueue " + jobs.TaskAgingReportGenerate + ", " + jobs.TaskAgingCacheInvalidate + " or " + jobs.TaskAgingLedgerRefresh,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enqueue.Task = args[0]
			enqueue.Stdout, enqueue.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			c, err := jobsCLI()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return exitWith(c.EnqueueCommand(cmd.Context(), enqueue))
		},
	}
	bindProfileFlags(enqueueCmd, &enqueue.ProfileFlags)

	var queue string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := jobsCLI()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			return exitWith(c.StatsCommand(queue, cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	statsCmd.Flags().StringVar(&queue, "queue", jobs.QueueReports, "queue name")

	cmd.AddCommand(enqueueCmd, statsCmd)
	return cmd
}

func jobsCLI() (*JobsCLI, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	opts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	return NewJobsCLI(jobs.RedisOpt(opts)), nil
}
