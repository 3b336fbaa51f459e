package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/testutil"
)

// Snapshot captures what a scenario run decided, for golden comparison.
// Spec hashes and IR versions are left out so snapshots survive
// formatting changes to the graph files.
type Snapshot struct {
	Scenario     string           `json:"scenario"`
	Frames       []FrameSnapshot  `json:"frames"`
	Trace        []testutil.Event `json:"trace"`
	CompileError *FailureSnapshot `json:"compile_error,omitempty"`
}

// FrameSnapshot is one compiled frame without its identity hashes.
type FrameSnapshot struct {
	Graph     string              `json:"graph"`
	Frame     int64               `json:"frame"`
	Passes    []ir.PassReport     `json:"passes"`
	Slots     []ir.SlotReport     `json:"slots"`
	Resources []ir.ResourceReport `json:"resources"`
}

// FailureSnapshot keeps the stable parts of a CompileFailure.
type FailureSnapshot struct {
	Frame int    `json:"frame"`
	Code  string `json:"code"`
}

// NewSnapshot extracts the golden-comparable parts of result.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{
		Scenario: name,
		Frames:   make([]FrameSnapshot, len(result.Frames)),
		Trace:    result.Trace,
	}
	if s.Trace == nil {
		s.Trace = []testutil.Event{}
	}
	for i, f := range result.Frames {
		s.Frames[i] = FrameSnapshot{
			Graph:     f.Report.Graph,
			Frame:     f.Report.Frame,
			Passes:    f.Report.Passes,
			Slots:     f.Report.Slots,
			Resources: f.Report.Resources,
		}
	}
	if ce := result.CompileError; ce != nil {
		s.CompileError = &FailureSnapshot{Frame: ce.Frame, Code: ce.Code}
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalCanonical(NewSnapshot(name, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
