package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roach88/framegraph/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failures, validation failures of otherwise readable graphs
	ExitCommandError = 2 // Command error (unreadable files, compile errors, database errors)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostic output; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E131", "CYCLIC_DEPENDENCY", ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

func newFormatter(opts *RootOptions, w, errW io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    w,
		ErrWriter: errW, // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// formatCapacity renders a slot capacity; zero means the size was not declared.
func formatCapacity(n int64) string {
	if n <= 0 {
		return "unsized"
	}
	return humanize.IBytes(uint64(n))
}

// totalCapacity sums slot capacities, the memory a frame needs after aliasing.
func totalCapacity(r *ir.CompileReport) int64 {
	var total int64
	for _, s := range r.Slots {
		total += s.Capacity
	}
	return total
}

// writeReport prints a compile report in the text format.
func writeReport(w io.Writer, r *ir.CompileReport) {
	fmt.Fprintf(w, "✓ %s (frame %d): %d pass(es), %d slot(s), %s\n",
		r.Graph, r.Frame, len(r.Passes), len(r.Slots), formatCapacity(totalCapacity(r)))

	fmt.Fprintln(w, "  Order:")
	for _, p := range r.Passes {
		fmt.Fprintf(w, "    %d. %s [%s] on %s[%d]\n", p.Position, p.Name, p.Kind, p.Queue, p.Index)
	}

	if len(r.Slots) > 0 {
		fmt.Fprintln(w, "  Slots:")
		for _, s := range r.Slots {
			kind := s.Kind
			if s.Format != "" {
				kind += " " + s.Format
			}
			fmt.Fprintf(w, "    %d. %s, %s: %s\n", s.Index, kind, formatCapacity(s.Capacity), strings.Join(s.Residents, ", "))
		}
	}

	var unused, imported []string
	for _, res := range r.Resources {
		switch {
		case res.Slot < 0:
			unused = append(unused, res.Key)
		case res.Start < 0:
			imported = append(imported, fmt.Sprintf("%s <- frame %d slot %d", res.Key, res.SourceFrame, res.Slot))
		}
	}
	if len(imported) > 0 {
		fmt.Fprintf(w, "  History: %s\n", strings.Join(imported, "; "))
	}
	if len(unused) > 0 {
		fmt.Fprintf(w, "  Unused: %s\n", strings.Join(unused, ", "))
	}
}
