package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Graph-level errors (E100-E104)
	ErrGraphNameEmpty = "E100" // graph name is required
	ErrGraphNoPasses  = "E101" // at least one pass required
	ErrDuplicateName  = "E102" // duplicate queue/resource/pass name
	ErrInvalidName    = "E103" // empty name or reserved character

	// Queue errors (E110-E119)
	ErrInvalidCapability = "E110" // unknown or empty capability set
	ErrEmptyQueueFamily  = "E111" // queue family with no queues

	// Resource errors (E120-E129)
	ErrInvalidResourceKind = "E120" // unknown resource kind
	ErrInvalidFrame        = "E121" // frame offset must be <= 0
	ErrInvalidSize         = "E122" // negative size
	ErrRetainHistory       = "E123" // history imports cannot be retained

	// Pass errors (E130-E139)
	ErrInvalidPassKind    = "E130" // unknown pass kind
	ErrUnknownQueue       = "E131" // pass names an undeclared queue family
	ErrQueueIndex         = "E132" // queue index out of range
	ErrCapabilityMismatch = "E133" // family cannot run the pass kind
	ErrUnknownResource    = "E134" // pass uses an undeclared resource key

	// Dependency errors (E140-E149)
	ErrUnknownPass    = "E140" // dependency names an undeclared pass
	ErrSelfDependency = "E141" // pass ordered after itself
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a graph description for problems that can be found
// without compiling it: names, kinds and cross references. Ordering and
// access conflicts are left to the frame graph compiler.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.GraphSpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if strings.TrimSpace(spec.Name) == "" {
		add("name", ErrGraphNameEmpty, "graph name is required")
	}
	if len(spec.Passes) == 0 {
		add("passes", ErrGraphNoPasses, "at least one pass is required")
	}

	queues := make(map[string]ir.QueueSpec)
	for i, q := range spec.Queues {
		field := fmt.Sprintf("queues[%d]", i)
		checkName(add, field+".name", q.Name)
		if _, dup := queues[q.Name]; dup {
			add(field+".name", ErrDuplicateName, "duplicate queue name: %q", q.Name)
		}
		queues[q.Name] = q

		if _, err := queueCapability(q); err != nil {
			add(field+".capabilities", ErrInvalidCapability, "%v", err)
		}
		if q.Count < 1 {
			add(field+".count", ErrEmptyQueueFamily, "queue family %q must have at least one queue", q.Name)
		}
	}

	resources := make(map[string]bool)
	for i, r := range spec.Resources {
		field := fmt.Sprintf("resources[%d]", i)
		checkName(add, field+".name", r.Name)
		if resources[r.Key()] {
			add(field+".name", ErrDuplicateName, "duplicate resource: %q", r.Key())
		}
		resources[r.Key()] = true

		if _, ok := framegraph.ParseResourceKind(r.Kind); !ok {
			add(field+".kind", ErrInvalidResourceKind, "invalid resource kind %q, must be one of buffer, image, buffer_view, image_view", r.Kind)
		}
		if r.Frame > 0 {
			add(field+".frame", ErrInvalidFrame, "frame offset %d refers to a future frame", r.Frame)
		}
		if r.Size < 0 {
			add(field+".size", ErrInvalidSize, "size must not be negative")
		}
		if r.Frame < 0 && r.Retain {
			add(field+".retain", ErrRetainHistory, "history import %q cannot be retained", r.Key())
		}
	}

	passes := make(map[string]bool)
	for i, p := range spec.Passes {
		field := fmt.Sprintf("passes[%d]", i)
		checkName(add, field+".name", p.Name)
		if passes[p.Name] {
			add(field+".name", ErrDuplicateName, "duplicate pass name: %q", p.Name)
		}
		passes[p.Name] = true

		kind, kindOK := framegraph.ParsePassKind(p.Kind)
		if !kindOK {
			add(field+".kind", ErrInvalidPassKind, "invalid pass kind %q, must be \"graphics\", \"compute\", or \"transfer\"", p.Kind)
		}

		q, ok := queues[p.Queue]
		switch {
		case !ok:
			add(field+".queue", ErrUnknownQueue, "unknown queue family %q", p.Queue)
		case p.Index < 0 || (q.Count > 0 && p.Index >= q.Count):
			add(field+".index", ErrQueueIndex, "queue index %d out of range for family %q (%d queues)", p.Index, p.Queue, q.Count)
		case kindOK:
			if caps, err := queueCapability(q); err == nil && !caps.Has(kind.Required()) {
				add(field+".kind", ErrCapabilityMismatch, "%s pass cannot run on family %q (%s)", p.Kind, p.Queue, caps)
			}
		}

		for j, key := range p.Reads {
			if !resources[key] {
				add(fmt.Sprintf("%s.reads[%d]", field, j), ErrUnknownResource, "unknown resource %q", key)
			}
		}
		for j, key := range p.Writes {
			if !resources[key] {
				add(fmt.Sprintf("%s.writes[%d]", field, j), ErrUnknownResource, "unknown resource %q", key)
			}
		}
	}

	for i, d := range spec.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if !passes[d.Before] {
			add(field+".before", ErrUnknownPass, "unknown pass %q", d.Before)
		}
		if !passes[d.After] {
			add(field+".after", ErrUnknownPass, "unknown pass %q", d.After)
		}
		if d.Before == d.After {
			add(field, ErrSelfDependency, "pass %q cannot depend on itself", d.Before)
		}
	}

	return errs
}

func checkName(add func(field, code, format string, args ...any), field, name string) {
	switch {
	case strings.TrimSpace(name) == "":
		add(field, ErrInvalidName, "name is required")
	case strings.ContainsRune(name, '@'):
		add(field, ErrInvalidName, "name %q must not contain '@'", name)
	}
}

// queueCapability folds a family's capability list into one set.
func queueCapability(q ir.QueueSpec) (framegraph.Capability, error) {
	if len(q.Capabilities) == 0 {
		return framegraph.CapNone, fmt.Errorf("queue family %q declares no capabilities", q.Name)
	}
	return framegraph.ParseCapability(strings.Join(q.Capabilities, "|"))
}
