package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/store"
)

// HistoryOptions holds flags shared by the history commands.
type HistoryOptions struct {
	*RootOptions
	Database string
	Graph    string
	SpecHash string
	Limit    int
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived compile reports",
		Long: `List compile reports archived with --db by compile or run.

Reports are listed oldest first. With --limit, only the most recent
reports are shown.

Example:
  framegraph history --db reports.db
  framegraph history --db reports.db --graph deferred --limit 5
  framegraph history show latest --db reports.db --graph deferred`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistory(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite report archive")
	cmd.PersistentFlags().StringVar(&opts.Graph, "graph", "", "only reports for this graph")
	cmd.Flags().StringVar(&opts.SpecHash, "spec-hash", "", "only reports compiled from this description")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many recent reports")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <report-id|latest>",
		Short: "Show one archived report",
		Long: `Show one archived report in full.

"latest" shows the most recent report for the graph named by --graph.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, args[0], cmd)
		},
	})

	return cmd
}

func openArchive(f *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		_ = f.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeArchive(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func listHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, err := openArchive(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeArchive(st)

	reports, err := st.ListReports(cmd.Context(), store.ListFilter{
		Graph:    opts.Graph,
		SpecHash: opts.SpecHash,
		Limit:    opts.Limit,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing reports", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(reports)
	}
	writeHistory(formatter.Writer, reports)
	return nil
}

func writeHistory(w io.Writer, reports []store.ReportSummary) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports archived.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tGRAPH\tFRAME\tPASSES\tSLOTS\tMEMORY\tLAYOUT")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			humanize.Comma(r.Seq), r.ID, r.Graph, r.Frame, r.Passes, r.Slots,
			formatCapacity(r.TotalCapacity), shortHash(r.LayoutHash))
	}
	_ = tw.Flush()
}

func showHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if id == "latest" && opts.Graph == "" {
		return NewExitError(ExitCommandError, "show latest needs --graph")
	}

	st, err := openArchive(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeArchive(st)

	var report *ir.CompileReport
	if id == "latest" {
		report, _, err = st.LatestReport(cmd.Context(), opts.Graph)
	} else {
		report, err = st.ReadReport(cmd.Context(), id)
	}
	if err != nil {
		code := ErrCodeDatabase
		if errors.Is(err, store.ErrNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading report", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	writeReport(formatter.Writer, report)
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
