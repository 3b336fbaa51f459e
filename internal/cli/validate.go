package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/ir"
)

// GraphValidation holds the validation errors of one graph.
type GraphValidation struct {
	Graph  string                     `json:"graph"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Graphs []GraphValidation `json:"graphs"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var graph string
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate graph descriptions without compiling them",
		Long: `Validate CUE or YAML graph descriptions without compiling them.

Checks names, queue capabilities, resource kinds and frames, and every
queue, resource and pass reference. All errors are reported, not just the
first. Ordering and synchronization are checked by compile.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], graph, cmd)
		},
	}
	cmd.Flags().StringVar(&graph, "graph", "", "validate only the named graph")
	return cmd
}

func runValidate(opts *RootOptions, path, graph string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	specs, err := LoadGraphs(path, graph)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	result := ValidateGraphs(specs)
	for _, g := range result.Graphs {
		formatter.VerboseLog("Validated graph %s: %d error(s)", g.Graph, len(g.Errors))
	}
	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// ValidateGraphs validates every spec, collecting all errors.
func ValidateGraphs(specs []*ir.GraphSpec) ValidationResult {
	result := ValidationResult{Valid: true, Graphs: make([]GraphValidation, 0, len(specs))}
	for _, spec := range specs {
		errs := compiler.Validate(spec)
		if len(errs) > 0 {
			result.Valid = false
		}
		result.Graphs = append(result.Graphs, GraphValidation{Graph: spec.Name, Errors: errs})
	}
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d graph(s) valid\n", len(result.Graphs))
	return nil
}

// outputValidationErrors outputs every error of every invalid graph.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	var first *compiler.ValidationError
	total := 0
	for _, g := range result.Graphs {
		for i := range g.Errors {
			if first == nil {
				first = &g.Errors[i]
			}
			total++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", total))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, g := range result.Graphs {
		if len(g.Errors) == 0 {
			continue
		}
		fmt.Fprintf(formatter.Writer, "%s:\n", g.Graph)
		for _, err := range g.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
		}
		fmt.Fprintln(formatter.Writer)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", total))
}
