package harness

import (
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/testutil"
)

// FrameResult is one successfully compiled frame.
type FrameResult struct {
	// Step indexes Scenario.Frames.
	Step   int               `json:"step"`
	Report *ir.CompileReport `json:"report"`
}

// CompileFailure records the frame that stopped a scenario.
type CompileFailure struct {
	// Frame is the index the failed frame would have had in Result.Frames.
	Frame   int    `json:"frame"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Frames holds every frame that compiled, in order.
	Frames []FrameResult `json:"frames"`

	// Trace contains every Begin/End the recorder saw, across frames.
	Trace []testutil.Event `json:"trace"`

	// CompileError is set when a frame failed to compile or validate.
	// Later frames are not attempted.
	CompileError *CompileFailure `json:"compile_error,omitempty"`

	// Errors contains assertion and execution failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Frames: []FrameResult{},
		Trace:  []testutil.Event{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// attempted is the number of frames the scenario tried to compile.
func (r *Result) attempted() int {
	if r.CompileError != nil {
		return r.CompileError.Frame + 1
	}
	return len(r.Frames)
}

// frame returns the report for frame index i, or nil when it did not compile.
func (r *Result) frame(i int) *ir.CompileReport {
	if i < 0 || i >= len(r.Frames) {
		return nil
	}
	return r.Frames[i].Report
}
