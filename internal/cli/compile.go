package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output          string // output file path
	Database        string // report archive, optional
	Graph           string // compile only this graph
	OrderedAliasing bool
}

// GraphFailure is one graph that did not compile.
type GraphFailure struct {
	Graph   string `json:"graph"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CompilationResult holds one report per compiled graph and the failures.
type CompilationResult struct {
	Reports  []*ir.CompileReport `json:"reports"`
	Failures []GraphFailure      `json:"failures,omitempty"`
	Archived []string            `json:"archived,omitempty"` // report IDs written to --db
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile graph descriptions and report order and slots",
		Long: `Compile every graph in a CUE or YAML source as a single frame.

Each graph is validated, ordered, checked for unsynchronized access and
allocated onto physical slots. The report lists the execution order, the
slots with their aliased residents, and each resource's lifetime.

History imports (name@-1) need an earlier frame; use "run --frames" for
graphs that read them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write reports as JSON to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive reports in this SQLite database")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "compile only the named graph")
	cmd.Flags().BoolVar(&opts.OrderedAliasing, "ordered-aliasing", false, "alias slots only between dependency-ordered resources")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	specs, err := LoadGraphs(path, opts.Graph)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d graph(s) from %s", len(specs), path)

	var compileOpts []framegraph.CompileOption
	if opts.OrderedAliasing {
		compileOpts = append(compileOpts, framegraph.RequireOrderedAliasing())
	}

	result := &CompilationResult{Reports: make([]*ir.CompileReport, 0, len(specs))}
	for _, spec := range specs {
		formatter.VerboseLog("Compiling graph: %s", spec.Name)
		report, err := compileGraph(cmd, spec, compileOpts)
		if err != nil {
			result.Failures = append(result.Failures, GraphFailure{
				Graph:   spec.Name,
				Code:    failureCode(err),
				Message: err.Error(),
			})
			continue
		}
		result.Reports = append(result.Reports, report)
	}

	if opts.Output != "" {
		if err := writeReportsToFile(result.Reports, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if opts.Database != "" && len(result.Reports) > 0 {
		ids, err := archiveReports(cmd, opts.Database, result.Reports)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "archiving reports", err)
		}
		result.Archived = ids
	}

	return outputCompileResult(formatter, result, opts.Output)
}

// compileGraph builds and compiles one graph as frame 0.
func compileGraph(cmd *cobra.Command, spec *ir.GraphSpec, opts []framegraph.CompileOption) (*ir.CompileReport, error) {
	plan, err := compiler.Build(spec)
	if err != nil {
		return nil, err
	}
	g, err := plan.Builder.Compile(cmd.Context(), opts...)
	if err != nil {
		return nil, err
	}
	return compiler.Report(plan, g)
}

func archiveReports(cmd *cobra.Command, dbPath string, reports []*ir.CompileReport) ([]string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		id, err := st.WriteReport(cmd.Context(), r)
		if err != nil {
			return ids, fmt.Errorf("archiving %s: %w", r.Graph, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// outputCompileResult prints the reports and failures. Any failure makes
// the command exit with ExitCommandError.
func outputCompileResult(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if len(result.Failures) > 0 {
			f := result.Failures[0]
			resp.Status = "error"
			resp.Error = &CLIError{Code: f.Code, Message: f.Message}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, r := range result.Reports {
			writeReport(w, r)
			fmt.Fprintln(w)
		}
		writeFailures(w, result.Failures)
		if outputFile != "" {
			fmt.Fprintf(w, "Wrote %d report(s) to %s\n", len(result.Reports), outputFile)
		}
		if len(result.Archived) > 0 {
			fmt.Fprintf(w, "Archived %d report(s)\n", len(result.Archived))
		}
	}

	if len(result.Failures) > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed for %d graph(s)", len(result.Failures)))
	}
	return nil
}

func writeFailures(w io.Writer, failures []GraphFailure) {
	for _, f := range failures {
		fmt.Fprintf(w, "✗ %s\n  %s: %s\n\n", f.Graph, f.Code, f.Message)
	}
}

// outputLoadError reports a failure to read the graph source.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	if formatter.Format != "json" && loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message), nil)
}

// writeReportsToFile writes reports as indented JSON. Canonical JSON is
// reserved for hashing.
func writeReportsToFile(reports []*ir.CompileReport, filename string) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling reports: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
