package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
)

// LoadError represents an error that occurred while loading graph files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands. Validation of a
// loaded graph reports the compiler's E1xx codes; compile failures report
// the frame graph error code.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeTestFailed  = "E002" // One or more scenarios failed
	ErrCodeNoGraphs    = "E003" // Source holds no graphs
	ErrCodeLoadFailed  = "E004" // CUE or YAML could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeUnsupported = "E006" // Unsupported file extension
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeSchema      = "E008" // Description violates the graph schema
	ErrCodeDatabase    = "E009" // Report archive error
	ErrCodeNoSuchGraph = "E010" // --graph names a graph the source lacks
)

// LoadGraphs reads every graph in path, optionally keeping only the one
// called name. Failures are returned as *LoadError.
func LoadGraphs(path, name string) ([]*ir.GraphSpec, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph source not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph source: %v", err)}
	}

	specs, err := compiler.LoadFile(path)
	if err != nil {
		return nil, convertLoadError(err)
	}
	if name == "" {
		return specs, nil
	}
	for _, s := range specs {
		if s.Name == name {
			return []*ir.GraphSpec{s}, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNoSuchGraph, Message: fmt.Sprintf("%s: graph %q not found", path, name)}
}

// convertLoadError maps loader failures onto CLI error codes, keeping the
// CUE position when the compiler had one.
func convertLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &compileErr):
		return &LoadError{Code: ErrCodeSchema, Message: compileErr.Field + ": " + compileErr.Message, Pos: compileErr.Pos}
	case errors.Is(err, compiler.ErrNoGraphs):
		return &LoadError{Code: ErrCodeNoGraphs, Message: err.Error()}
	case errors.Is(err, compiler.ErrUnsupportedFile):
		return &LoadError{Code: ErrCodeUnsupported, Message: err.Error()}
	default:
		return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
}

// failureCode picks the code reported for a Build or Compile failure.
func failureCode(err error) string {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code
	}
	if code := framegraph.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}
