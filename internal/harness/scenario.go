package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario compiles a sequence of frames through one history ring,
// executes each against a recording backend and asserts on the compile
// reports and the execution trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Frames lists what to compile, in order. Later frames may import
	// resources retained by earlier ones.
	Frames []FrameStep `yaml:"frames"`

	// OrderedAliasing compiles every frame with RequireOrderedAliasing.
	OrderedAliasing bool `yaml:"ordered_aliasing,omitempty"`

	// HistoryDepth is how many compiled frames the ring keeps. Defaults to 2.
	HistoryDepth int `yaml:"history_depth,omitempty"`

	// Assertions validate the outcome.
	// Supported types: order_before, same_slot, distinct_slot, slot_count,
	// compile_error, trace_order, history_source
	Assertions []Assertion `yaml:"assertions"`
}

// FrameStep compiles one graph, possibly several frames in a row.
type FrameStep struct {
	// Graph is a .cue or .yaml graph file, relative to the scenario file.
	Graph string `yaml:"graph"`

	// Name picks a graph when the file holds more than one.
	Name string `yaml:"name,omitempty"`

	// Repeat compiles the graph this many consecutive frames. Defaults to 1.
	Repeat int `yaml:"repeat,omitempty"`
}

// Assertion validates one compiled frame or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "order_before": pass Before executes ahead of pass After
	// - "same_slot": all Resources share one physical slot
	// - "distinct_slot": no two Resources share a physical slot
	// - "slot_count": the frame allocated exactly Count slots
	// - "compile_error": the frame failed to compile, with Code if given
	// - "trace_order": the recorder saw Passes begin in this order
	// - "history_source": Resource resolved into frame SourceFrame
	Type string `yaml:"type"`

	// Frame indexes the compiled frames, counting repeats. Defaults to the
	// last frame the scenario attempted.
	Frame *int `yaml:"frame,omitempty"`

	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after,omitempty"`

	// Resources holds resource keys (used by same_slot, distinct_slot).
	Resources []string `yaml:"resources,omitempty"`

	// Count is the expected number of slots (used by slot_count).
	Count int `yaml:"count,omitempty"`

	// Code is the expected error code (used by compile_error). Validation
	// failures report their E1xx code; compile failures the frame graph code.
	Code string `yaml:"code,omitempty"`

	// Passes is the expected begin order (used by trace_order).
	Passes []string `yaml:"passes,omitempty"`

	// Resource and SourceFrame are used by history_source.
	Resource    string `yaml:"resource,omitempty"`
	SourceFrame *int64 `yaml:"source_frame,omitempty"`
}

// Assertion type constants.
const (
	AssertOrderBefore   = "order_before"
	AssertSameSlot      = "same_slot"
	AssertDistinctSlot  = "distinct_slot"
	AssertSlotCount     = "slot_count"
	AssertCompileError  = "compile_error"
	AssertTraceOrder    = "trace_order"
	AssertHistorySource = "history_source"
)

const defaultHistoryDepth = 2

// LoadScenario reads and parses a scenario YAML file. Graph paths are
// resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving graph paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario decodes scenario YAML held in memory.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve graph paths BEFORE validation so existence checks see them
	for i, step := range scenario.Frames {
		if step.Graph != "" && !filepath.IsAbs(step.Graph) && basePath != "" {
			scenario.Frames[i].Graph = filepath.Join(basePath, step.Graph)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FrameCount is the number of frames the scenario compiles when every
// compile succeeds.
func (s *Scenario) FrameCount() int {
	n := 0
	for _, step := range s.Frames {
		n += step.repeat()
	}
	return n
}

func (f FrameStep) repeat() int {
	if f.Repeat < 1 {
		return 1
	}
	return f.Repeat
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Frames) == 0 {
		return fmt.Errorf("frames list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.HistoryDepth < 0 {
		return fmt.Errorf("history_depth must be non-negative")
	}

	for i, step := range s.Frames {
		if step.Graph == "" {
			return fmt.Errorf("frames[%d]: graph is required", i)
		}
		if step.Repeat < 0 {
			return fmt.Errorf("frames[%d]: repeat must be non-negative", i)
		}
		if _, err := os.Stat(step.Graph); os.IsNotExist(err) {
			return fmt.Errorf("frames[%d]: graph file not found: %s", i, step.Graph)
		}
	}

	total := s.FrameCount()
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], total); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, frames int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Frame != nil && (*a.Frame < 0 || *a.Frame >= frames) {
		return fmt.Errorf("assertions[%d]: frame %d out of range [0,%d)", index, *a.Frame, frames)
	}

	switch a.Type {
	case AssertOrderBefore:
		if a.Before == "" || a.After == "" {
			return fmt.Errorf("assertions[%d]: before and after are required for order_before", index)
		}
	case AssertSameSlot, AssertDistinctSlot:
		if len(a.Resources) < 2 {
			return fmt.Errorf("assertions[%d]: at least two resources are required for %s", index, a.Type)
		}
	case AssertSlotCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for slot_count", index)
		}
	case AssertCompileError:
		// Code is optional.
	case AssertTraceOrder:
		if len(a.Passes) == 0 {
			return fmt.Errorf("assertions[%d]: passes list is required for trace_order", index)
		}
	case AssertHistorySource:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for history_source", index)
		}
		if a.SourceFrame == nil {
			return fmt.Errorf("assertions[%d]: source_frame is required for history_source", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
