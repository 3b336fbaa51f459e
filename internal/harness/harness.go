package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/testutil"
)

// Harness is the test execution engine. It owns the history ring and the
// recording backend for one scenario run.
type Harness struct {
	ring     *framegraph.Ring
	recorder *testutil.Recorder
	logger   *slog.Logger
	opts     []framegraph.CompileOption
	graphs   map[FrameStep]*ir.GraphSpec
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes harness logs to l. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Load each frame's graph (files are read once per scenario)
//  2. Build it against the scenario's history ring
//  3. Compile, report and execute it through a recording backend
//  4. Stop at the first frame that fails to validate or compile
//  5. Evaluate assertions against the reports and the trace
//
// The returned error is reserved for problems outside the graphs under
// test, such as unreadable files.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	depth := scenario.HistoryDepth
	if depth == 0 {
		depth = defaultHistoryDepth
	}
	h := &Harness{
		ring:     framegraph.NewRing(depth),
		recorder: testutil.NewRecorder(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		graphs:   make(map[FrameStep]*ir.GraphSpec),
	}
	for _, opt := range opts {
		opt(h)
	}
	if scenario.OrderedAliasing {
		h.opts = append(h.opts, framegraph.RequireOrderedAliasing())
	}

	result := NewResult()
	frame := 0
steps:
	for i, step := range scenario.Frames {
		for range step.repeat() {
			ok, err := h.runFrame(ctx, i, frame, step, result)
			if err != nil {
				return nil, err
			}
			if !ok {
				break steps
			}
			frame++
		}
	}
	result.Trace = h.recorder.Events()

	if result.CompileError != nil && !expectsCompileError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("frame %d: unexpected compile error %s: %s",
			result.CompileError.Frame, result.CompileError.Code, result.CompileError.Message))
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runFrame compiles and executes one frame. It reports false when the frame
// failed to compile and the scenario should stop.
func (h *Harness) runFrame(ctx context.Context, step, frame int, fs FrameStep, result *Result) (bool, error) {
	spec, err := h.graph(fs)
	if err != nil {
		return false, fmt.Errorf("frames[%d]: %w", step, err)
	}

	plan, err := compiler.Build(spec, compiler.WithRing(h.ring), compiler.WithBody(recordBindings))
	if err != nil {
		result.CompileError = failure(frame, err)
		h.logger.Info("frame rejected", "frame", frame, "graph", spec.Name, "code", result.CompileError.Code)
		return false, nil
	}

	g, err := h.ring.Compile(ctx, plan.Builder, h.opts...)
	if err != nil {
		result.CompileError = failure(frame, err)
		h.logger.Info("frame failed to compile", "frame", frame, "graph", spec.Name, "code", result.CompileError.Code)
		return false, nil
	}

	report, err := compiler.Report(plan, g)
	if err != nil {
		return false, fmt.Errorf("frame %d: %w", frame, err)
	}
	result.Frames = append(result.Frames, FrameResult{Step: step, Report: report})

	h.recorder.SetFrame(g.Number())
	if err := g.Execute(ctx, h.recorder); err != nil {
		result.AddError(fmt.Sprintf("frame %d: execute: %v", frame, err))
	}

	h.logger.Info("frame completed",
		"frame", frame,
		"graph", spec.Name,
		"passes", len(report.Passes),
		"slots", len(report.Slots),
	)
	return true, nil
}

// graph loads a frame step's graph, caching by step so repeats and
// scenarios revisiting a file parse it once.
func (h *Harness) graph(fs FrameStep) (*ir.GraphSpec, error) {
	key := FrameStep{Graph: fs.Graph, Name: fs.Name}
	if spec, ok := h.graphs[key]; ok {
		return spec, nil
	}
	spec, err := compiler.LoadGraph(fs.Graph, fs.Name)
	if err != nil {
		return nil, err
	}
	h.graphs[key] = spec
	return spec, nil
}

// recordBindings is the body every scenario pass runs: one command per
// bound resource, in key order.
func recordBindings(enc framegraph.Encoder, res compiler.DescribedResources) error {
	e, ok := enc.(*testutil.Encoding)
	if !ok {
		return fmt.Errorf("pass %s: unexpected encoder %T", res.Pass, enc)
	}
	keys := make([]string, 0, len(res.Handles))
	for k := range res.Handles {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		p := res.Handles[k]
		e.Record("%s %s slot=%d frame=%d", res.Access[k], k, p.Slot, p.FrameNumber)
	}
	return nil
}

func failure(frame int, err error) *CompileFailure {
	f := &CompileFailure{Frame: frame, Message: err.Error()}
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f.Code = verrs[0].Code
		return f
	}
	f.Code = string(framegraph.CodeOf(err))
	return f
}

func expectsCompileError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertCompileError {
			return true
		}
	}
	return false
}
