package framegraph

import (
	"fmt"
	"strings"
)

// Capability is the set of work kinds a queue family supports or a pass requires.
type Capability uint8

const (
	CapGraphics Capability = 1 << iota
	CapCompute
	CapTransfer

	CapNone Capability = 0
	CapAll             = CapGraphics | CapCompute | CapTransfer
)

// Has reports whether c is a superset of other.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}
	var parts []string
	if c&CapGraphics != 0 {
		parts = append(parts, "graphics")
	}
	if c&CapCompute != 0 {
		parts = append(parts, "compute")
	}
	if c&CapTransfer != 0 {
		parts = append(parts, "transfer")
	}
	return strings.Join(parts, "|")
}

// ParseCapability parses names joined by '|' or ',' (e.g. "graphics|compute").
func ParseCapability(s string) (Capability, error) {
	var c Capability
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.TrimSpace(part) {
		case "graphics":
			c |= CapGraphics
		case "compute":
			c |= CapCompute
		case "transfer":
			c |= CapTransfer
		case "general":
			c |= CapAll
		default:
			return CapNone, fmt.Errorf("unknown capability %q", part)
		}
	}
	if c == CapNone {
		return CapNone, fmt.Errorf("empty capability set %q", s)
	}
	return c, nil
}

// CapabilitySet is implemented by the zero-size marker types that tag a
// FamilyID at the type level.
type CapabilitySet interface {
	Capability() Capability
}

// SupportsGraphics is satisfied by markers whose set includes graphics.
type SupportsGraphics interface {
	CapabilitySet
	graphics()
}

// SupportsCompute is satisfied by markers whose set includes compute.
type SupportsCompute interface {
	CapabilitySet
	compute()
}

// SupportsTransfer is satisfied by markers whose set includes transfer.
type SupportsTransfer interface {
	CapabilitySet
	transfer()
}

// Graphics families also accept transfer work.
type Graphics struct{}

func (Graphics) Capability() Capability { return CapGraphics | CapTransfer }
func (Graphics) graphics()              {}
func (Graphics) transfer()              {}

// Compute families also accept transfer work.
type Compute struct{}

func (Compute) Capability() Capability { return CapCompute | CapTransfer }
func (Compute) compute()               {}
func (Compute) transfer()              {}

// Transfer is a copy-only family.
type Transfer struct{}

func (Transfer) Capability() Capability { return CapTransfer }
func (Transfer) transfer()              {}

// General families support everything.
type General struct{}

func (General) Capability() Capability { return CapAll }
func (General) graphics()              {}
func (General) compute()               {}
func (General) transfer()              {}

// QueueCount is the number of queues in a family.
type QueueCount = int

// QueueID indexes a queue within its family.
type QueueID = int

// FamilyID identifies a registered family tagged with capability marker C.
type FamilyID[C CapabilitySet] struct {
	index int
}

// Queue selects queue i of the family.
func (f FamilyID[C]) Queue(i QueueID) Queue[C] {
	return Queue[C]{Family: f, Index: i}
}

// Ref erases the capability tag.
func (f FamilyID[C]) Ref() FamilyRef {
	return FamilyRef{index: f.index}
}

// Queue is a (family, queue index) pair with a typed family.
type Queue[C CapabilitySet] struct {
	Family FamilyID[C]
	Index  QueueID
}

// Ref erases the capability tag.
func (q Queue[C]) Ref() QueueRef {
	return QueueRef{Family: q.Family.Ref(), Index: q.Index}
}

// FamilyRef is an untyped family identifier. Capability checks against it
// happen at runtime.
type FamilyRef struct {
	index int
}

// Index returns the registration index of the family.
func (f FamilyRef) Index() int { return f.index }

// Queue selects queue i of the family.
func (f FamilyRef) Queue(i QueueID) QueueRef {
	return QueueRef{Family: f, Index: i}
}

// QueueRef is an untyped (family, queue index) pair.
type QueueRef struct {
	Family FamilyRef
	Index  QueueID
}

func (q QueueRef) String() string {
	return fmt.Sprintf("family%d/queue%d", q.Family.index, q.Index)
}

// QueueFamily is one registry entry.
type QueueFamily struct {
	Handle       FamilyHandle
	Capabilities Capability
	Queues       QueueCount
}

// QueueRegistry records the families available for scheduling.
type QueueRegistry struct {
	families []QueueFamily
}

// Register stores a family. numQueues must be positive.
func (r *QueueRegistry) Register(handle FamilyHandle, caps Capability, numQueues QueueCount) (FamilyRef, error) {
	if numQueues <= 0 {
		return FamilyRef{}, newError(ErrCodeEmptyQueueFamily, "queue family %d registered with %d queues", len(r.families), numQueues)
	}
	r.families = append(r.families, QueueFamily{Handle: handle, Capabilities: caps, Queues: numQueues})
	return FamilyRef{index: len(r.families) - 1}, nil
}

// Family returns the entry for ref.
func (r *QueueRegistry) Family(ref FamilyRef) (QueueFamily, bool) {
	if ref.index < 0 || ref.index >= len(r.families) {
		return QueueFamily{}, false
	}
	return r.families[ref.index], true
}

// Len returns the number of registered families.
func (r *QueueRegistry) Len() int {
	return len(r.families)
}

// bind validates that q names a real queue whose family covers required.
func (r *QueueRegistry) bind(q QueueRef, required Capability) error {
	fam, ok := r.Family(q.Family)
	if !ok {
		return newError(ErrCodeInvalidQueue, "queue family %d is not registered", q.Family.index)
	}
	if q.Index < 0 || q.Index >= fam.Queues {
		return newError(ErrCodeInvalidQueue, "queue %d out of range for family %d with %d queues", q.Index, q.Family.index, fam.Queues)
	}
	if !fam.Capabilities.Has(required) {
		return newError(ErrCodeCapabilityMismatch, "family %d supports %s, pass requires %s", q.Family.index, fam.Capabilities, required)
	}
	return nil
}
