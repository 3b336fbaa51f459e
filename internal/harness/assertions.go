package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Frame    int      // Frame index the assertion looked at
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Order    []string // Execution order of that frame, when it compiled
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (frame %d)\n", e.Type, e.Frame)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Order) > 0 {
		fmt.Fprintf(&buf, "\nExecution order:\n")
		for i, name := range e.Order {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, name)
		}
	}
	return buf.String()
}

// target picks the frame an assertion looks at.
func target(result *Result, a Assertion) int {
	if a.Frame != nil {
		return *a.Frame
	}
	return result.attempted() - 1
}

// compiled returns the frame's report or an AssertionError saying it is missing.
func compiled(result *Result, a Assertion, frame int) (*ir.CompileReport, error) {
	r := result.frame(frame)
	if r == nil {
		return nil, &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: "a compiled frame",
			Actual:   "frame did not compile",
		}
	}
	return r, nil
}

// assertOrderBefore checks that Before executes ahead of After.
func assertOrderBefore(result *Result, a Assertion) error {
	frame := target(result, a)
	r, err := compiled(result, a, frame)
	if err != nil {
		return err
	}
	fail := func(actual string) error {
		return &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: fmt.Sprintf("%s before %s", a.Before, a.After),
			Actual:   actual,
			Order:    r.PassOrder(),
		}
	}

	before, after := -1, -1
	for _, p := range r.Passes {
		switch p.Name {
		case a.Before:
			before = p.Position
		case a.After:
			after = p.Position
		}
	}
	switch {
	case before < 0:
		return fail(fmt.Sprintf("missing pass: %s", a.Before))
	case after < 0:
		return fail(fmt.Sprintf("missing pass: %s", a.After))
	case before >= after:
		return fail(fmt.Sprintf("%s at position %d, %s at position %d", a.Before, before, a.After, after))
	}
	return nil
}

// slotsOf resolves resource keys to slots, failing on unknown or unbound keys.
func slotsOf(r *ir.CompileReport, a Assertion, frame int) (map[string]int, error) {
	out := make(map[string]int, len(a.Resources))
	for _, key := range a.Resources {
		res, ok := r.Resource(key)
		if !ok {
			return nil, &AssertionError{
				Type:     a.Type,
				Frame:    frame,
				Expected: fmt.Sprintf("resource %s in the graph", key),
				Actual:   "not declared",
			}
		}
		if res.Slot < 0 {
			return nil, &AssertionError{
				Type:     a.Type,
				Frame:    frame,
				Expected: fmt.Sprintf("resource %s bound to a slot", key),
				Actual:   "unused, no slot",
			}
		}
		out[key] = res.Slot
	}
	return out, nil
}

// assertSameSlot checks that every listed resource aliases one slot.
func assertSameSlot(result *Result, a Assertion) error {
	frame := target(result, a)
	r, err := compiled(result, a, frame)
	if err != nil {
		return err
	}
	slots, err := slotsOf(r, a, frame)
	if err != nil {
		return err
	}
	first := slots[a.Resources[0]]
	for _, key := range a.Resources[1:] {
		if slots[key] != first {
			return &AssertionError{
				Type:     a.Type,
				Frame:    frame,
				Expected: fmt.Sprintf("%v share one slot", a.Resources),
				Actual:   describeSlots(a.Resources, slots),
				Order:    r.PassOrder(),
			}
		}
	}
	return nil
}

// assertDistinctSlot checks that no two listed resources alias.
func assertDistinctSlot(result *Result, a Assertion) error {
	frame := target(result, a)
	r, err := compiled(result, a, frame)
	if err != nil {
		return err
	}
	slots, err := slotsOf(r, a, frame)
	if err != nil {
		return err
	}
	owner := make(map[int]string, len(slots))
	for _, key := range a.Resources {
		s := slots[key]
		if prev, taken := owner[s]; taken {
			return &AssertionError{
				Type:     a.Type,
				Frame:    frame,
				Expected: fmt.Sprintf("%v in distinct slots", a.Resources),
				Actual:   fmt.Sprintf("%s and %s share slot %d", prev, key, s),
				Order:    r.PassOrder(),
			}
		}
		owner[s] = key
	}
	return nil
}

func describeSlots(keys []string, slots map[string]int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=slot %d", k, slots[k])
	}
	return strings.Join(parts, ", ")
}

// assertSlotCount checks the number of physical slots a frame allocated.
func assertSlotCount(result *Result, a Assertion) error {
	frame := target(result, a)
	r, err := compiled(result, a, frame)
	if err != nil {
		return err
	}
	if len(r.Slots) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: fmt.Sprintf("%d slots", a.Count),
			Actual:   fmt.Sprintf("%d slots", len(r.Slots)),
		}
	}
	return nil
}

// assertCompileError checks that the frame failed, with Code if given.
func assertCompileError(result *Result, a Assertion) error {
	frame := target(result, a)
	ce := result.CompileError
	expected := "compile error"
	if a.Code != "" {
		expected = "compile error " + a.Code
	}
	switch {
	case ce == nil || ce.Frame != frame:
		return &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: expected,
			Actual:   "frame compiled",
		}
	case a.Code != "" && ce.Code != a.Code:
		return &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: expected,
			Actual:   fmt.Sprintf("%s: %s", ce.Code, ce.Message),
		}
	}
	return nil
}

// assertTraceOrder checks that passes began in the specified order within
// the frame. Passes don't need to be consecutive.
func assertTraceOrder(result *Result, a Assertion) error {
	frame := target(result, a)
	r, err := compiled(result, a, frame)
	if err != nil {
		return err
	}
	begun := beginOrder(result.Trace, uint64(r.Frame))

	// Step 1: Find first position of each expected pass
	positions := make(map[string]int)
	for i, name := range begun {
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	// Step 2: Verify all passes ran
	for _, name := range a.Passes {
		if _, ok := positions[name]; !ok {
			return &AssertionError{
				Type:     a.Type,
				Frame:    frame,
				Expected: fmt.Sprintf("all passes executed: %v", a.Passes),
				Actual:   fmt.Sprintf("missing pass: %s", name),
				Order:    begun,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(a.Passes); i++ {
		prev, curr := a.Passes[i-1], a.Passes[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     a.Type,
				Frame:    frame,
				Expected: fmt.Sprintf("passes in order: %v", a.Passes),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Order: begun,
			}
		}
	}
	return nil
}

func beginOrder(trace []testutil.Event, frame uint64) []string {
	var out []string
	for _, ev := range trace {
		if ev.Type == "begin" && ev.Frame == frame {
			out = append(out, ev.Pass)
		}
	}
	return out
}

// assertHistorySource checks which frame's slot table a resource resolved into.
func assertHistorySource(result *Result, a Assertion) error {
	frame := target(result, a)
	r, err := compiled(result, a, frame)
	if err != nil {
		return err
	}
	res, ok := r.Resource(a.Resource)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: fmt.Sprintf("resource %s in the graph", a.Resource),
			Actual:   "not declared",
		}
	}
	if res.SourceFrame != *a.SourceFrame {
		return &AssertionError{
			Type:     a.Type,
			Frame:    frame,
			Expected: fmt.Sprintf("%s resolved from frame %d", a.Resource, *a.SourceFrame),
			Actual:   fmt.Sprintf("resolved from frame %d", res.SourceFrame),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOrderBefore:
			err = assertOrderBefore(result, assertion)
		case AssertSameSlot:
			err = assertSameSlot(result, assertion)
		case AssertDistinctSlot:
			err = assertDistinctSlot(result, assertion)
		case AssertSlotCount:
			err = assertSlotCount(result, assertion)
		case AssertCompileError:
			err = assertCompileError(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertHistorySource:
			err = assertHistorySource(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
