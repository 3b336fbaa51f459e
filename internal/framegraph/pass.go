package framegraph

import (
	"fmt"
	"slices"
)

// PassID is assigned sequentially at registration. Numeric order is only a
// tie-break between independent passes, never an ordering constraint.
type PassID int

func (p PassID) String() string {
	return fmt.Sprintf("P%d", int(p))
}

// PassKind selects the capability a pass requires from its queue family.
type PassKind uint8

const (
	PassGraphics PassKind = iota
	PassCompute
	PassTransfer
)

var passKindNames = [...]string{"graphics", "compute", "transfer"}

func (k PassKind) String() string {
	if int(k) < len(passKindNames) {
		return passKindNames[k]
	}
	return fmt.Sprintf("pass_kind(%d)", uint8(k))
}

// ParsePassKind is the inverse of PassKind.String.
func ParsePassKind(s string) (PassKind, bool) {
	for i, name := range passKindNames {
		if name == s {
			return PassKind(i), true
		}
	}
	return 0, false
}

// Required returns the capability a family needs to run this kind of pass.
func (k PassKind) Required() Capability {
	switch k {
	case PassGraphics:
		return CapGraphics
	case PassCompute:
		return CapCompute
	case PassTransfer:
		return CapTransfer
	}
	return CapAll
}

// Access is how a pass touches a resource.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read_write"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// Writes reports whether a includes a write.
func (a Access) Writes() bool { return a&AccessWrite != 0 }

// ResourceUse declares that a pass reads and/or writes a logical resource.
type ResourceUse struct {
	Resource ResourceID
	Access   Access
}

// Read declares a read of r.
func Read(r Ref) ResourceUse { return ResourceUse{Resource: r.ID(), Access: AccessRead} }

// Write declares a write of r.
func Write(r Ref) ResourceUse { return ResourceUse{Resource: r.ID(), Access: AccessWrite} }

// ReadWrite declares a read-modify-write of r.
func ReadWrite(r Ref) ResourceUse { return ResourceUse{Resource: r.ID(), Access: AccessReadWrite} }

// PassResources is implemented by a pass's setup type. Uses names every
// logical resource the pass touches and must return the same list each
// call. Acquire converts the logical handles into the concrete bundle R the
// pass body receives, once, at execution time, against the compiled graph;
// handles missing from Uses do not resolve there.
type PassResources[R any] interface {
	Uses() []ResourceUse
	Acquire(fg *FrameGraph) (R, error)
}

// runner is the type-erased continuation stored per pass.
type runner interface {
	run(enc Encoder, fg *FrameGraph) error
}

// continuation holds only a storage index and the body, never the builder.
type continuation[S PassResources[R], R any] struct {
	data int
	body func(Encoder, R) error
}

func (c continuation[S, R]) run(enc Encoder, fg *FrameGraph) error {
	setup, err := Fetch[S](fg.data, c.data)
	if err != nil {
		return err
	}
	if p := fg.scope; p != nil && !slices.Equal(setup.Uses(), p.uses) {
		return newError(ErrCodeInvalidSetup, "pass %s (%s) uses changed after registration", p.id, p.name)
	}
	res, err := setup.Acquire(fg)
	if err != nil {
		return fmt.Errorf("acquire resources: %w", err)
	}
	return c.body(enc, res)
}

type passRecord struct {
	id     PassID
	name   string
	kind   PassKind
	queue  QueueRef
	data   int
	uses   []ResourceUse
	runner runner
}

// AddGraphicsPass registers a graphics pass on a family whose marker
// includes graphics. Binding to a compute-only family does not compile.
func AddGraphicsPass[C SupportsGraphics, S PassResources[R], R any](b *Builder, q Queue[C], name string, setup S, body func(Encoder, R) error) (PassID, error) {
	return AddPassOn[S, R](b, PassGraphics, q.Ref(), name, setup, body)
}

// AddComputePass registers a compute pass on a family whose marker includes compute.
func AddComputePass[C SupportsCompute, S PassResources[R], R any](b *Builder, q Queue[C], name string, setup S, body func(Encoder, R) error) (PassID, error) {
	return AddPassOn[S, R](b, PassCompute, q.Ref(), name, setup, body)
}

// AddTransferPass registers a copy pass on a family whose marker includes transfer.
func AddTransferPass[C SupportsTransfer, S PassResources[R], R any](b *Builder, q Queue[C], name string, setup S, body func(Encoder, R) error) (PassID, error) {
	return AddPassOn[S, R](b, PassTransfer, q.Ref(), name, setup, body)
}

// AddPassOn registers a pass against an untyped queue. The family's
// capability set is checked at runtime.
//
// On error the builder is left unchanged.
func AddPassOn[S PassResources[R], R any](b *Builder, kind PassKind, q QueueRef, name string, setup S, body func(Encoder, R) error) (PassID, error) {
	if err := b.checkOpen(); err != nil {
		return -1, err
	}
	if err := b.queues.bind(q, kind.Required()); err != nil {
		return -1, err
	}
	if err := checkSetupKind[S](); err != nil {
		return -1, err
	}
	if body == nil {
		return -1, newError(ErrCodeInvalidSetup, "pass %q has no body", name)
	}

	uses := slices.Clone(setup.Uses())
	data := b.data.Store(setup)
	id := PassID(len(b.passes))
	b.passes = append(b.passes, passRecord{
		id:     id,
		name:   name,
		kind:   kind,
		queue:  q,
		data:   data,
		uses:   uses,
		runner: continuation[S, R]{data: data, body: body},
	})
	return id, nil
}
