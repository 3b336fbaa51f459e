package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
)

// Binding is one resource a described pass touches.
type Binding struct {
	Key    string
	ID     framegraph.ResourceID
	Access framegraph.Access
}

// DescribedSetup is the setup value of a pass built from a GraphSpec.
// It is stored by value in the graph's pass data storage.
type DescribedSetup struct {
	Pass     string
	Bindings []Binding
}

// Uses implements framegraph.PassResources.
func (s DescribedSetup) Uses() []framegraph.ResourceUse {
	out := make([]framegraph.ResourceUse, len(s.Bindings))
	for i, b := range s.Bindings {
		out[i] = framegraph.ResourceUse{Resource: b.ID, Access: b.Access}
	}
	return out
}

// Acquire implements framegraph.PassResources.
func (s DescribedSetup) Acquire(fg *framegraph.FrameGraph) (DescribedResources, error) {
	res := DescribedResources{
		Pass:    s.Pass,
		Handles: make(map[string]framegraph.PhysicalResource, len(s.Bindings)),
		Access:  make(map[string]framegraph.Access, len(s.Bindings)),
	}
	for _, b := range s.Bindings {
		p, err := fg.Resolve(b.ID)
		if err != nil {
			return DescribedResources{}, fmt.Errorf("resource %q: %w", b.Key, err)
		}
		res.Handles[b.Key] = p
		res.Access[b.Key] = b.Access
	}
	return res, nil
}

// DescribedResources is what a described pass body receives: physical
// handles keyed by resource key.
type DescribedResources struct {
	Pass    string
	Handles map[string]framegraph.PhysicalResource
	Access  map[string]framegraph.Access
}

// PassBody records a described pass.
type PassBody func(enc framegraph.Encoder, res DescribedResources) error

// Plan is a populated builder plus the name tables needed to read the
// compiled graph back in terms of the description.
type Plan struct {
	Spec      *ir.GraphSpec
	Builder   *framegraph.Builder
	Passes    map[string]framegraph.PassID
	Resources map[string]framegraph.ResourceID
}

// PassName returns the described name of id.
func (p *Plan) PassName(id framegraph.PassID) string {
	if id < 0 || int(id) >= len(p.Spec.Passes) {
		return id.String()
	}
	return p.Spec.Passes[id].Name
}

// ResourceKey returns the described key of id.
func (p *Plan) ResourceKey(id framegraph.ResourceID) string {
	for key, rid := range p.Resources {
		if rid == id {
			return key
		}
	}
	return id.String()
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	body       PassBody
	newBuilder func() *framegraph.Builder
}

// WithBody sets the body every described pass runs. The default does nothing.
func WithBody(body PassBody) BuildOption {
	return func(c *buildConfig) { c.body = body }
}

// WithRing draws the builder from r so history imports resolve against
// the frames r has compiled.
func WithRing(r *framegraph.Ring) BuildOption {
	return func(c *buildConfig) { c.newBuilder = func() *framegraph.Builder { return r.NewBuilder() } }
}

// ValidationErrors is returned by Build when the description is invalid.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(msgs, "; "))
}

// Build validates spec and replays it into a frame graph builder:
// queue families in order, then resources, then passes (so PassIDs follow
// declaration order), then explicit dependencies.
func Build(spec *ir.GraphSpec, opts ...BuildOption) (*Plan, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	cfg := buildConfig{
		body:       func(framegraph.Encoder, DescribedResources) error { return nil },
		newBuilder: func() *framegraph.Builder { return framegraph.NewBuilder() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	plan := &Plan{
		Spec:      spec,
		Builder:   cfg.newBuilder(),
		Passes:    make(map[string]framegraph.PassID, len(spec.Passes)),
		Resources: make(map[string]framegraph.ResourceID, len(spec.Resources)),
	}
	b := plan.Builder

	families := make(map[string]framegraph.FamilyRef, len(spec.Queues))
	for _, q := range spec.Queues {
		caps, err := queueCapability(q)
		if err != nil {
			return nil, err
		}
		ref, err := b.RegisterFamily(q.Name, caps, q.Count)
		if err != nil {
			return nil, fmt.Errorf("queue %q: %w", q.Name, err)
		}
		families[q.Name] = ref
	}

	for _, r := range spec.Resources {
		id, err := createResource(b, r)
		if err != nil {
			return nil, err
		}
		plan.Resources[r.Key()] = id
	}

	for _, p := range spec.Passes {
		kind, _ := framegraph.ParsePassKind(p.Kind)
		setup := DescribedSetup{Pass: p.Name, Bindings: bindings(p, plan.Resources)}
		id, err := framegraph.AddPassOn[DescribedSetup, DescribedResources](
			b, kind, families[p.Queue].Queue(p.Index), p.Name, setup, cfg.body)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", p.Name, err)
		}
		plan.Passes[p.Name] = id
	}

	for _, d := range spec.Dependencies {
		if err := b.AddDependency(plan.Passes[d.Before], plan.Passes[d.After]); err != nil {
			return nil, fmt.Errorf("dependency %s -> %s: %w", d.Before, d.After, err)
		}
	}

	return plan, nil
}

func createResource(b *framegraph.Builder, r ir.ResourceSpec) (framegraph.ResourceID, error) {
	var opts []framegraph.ResourceOption
	if r.Size > 0 {
		opts = append(opts, framegraph.WithSize(uint64(r.Size)))
	}
	if r.Format != "" {
		opts = append(opts, framegraph.WithFormat(r.Format))
	}
	frame := framegraph.Frame(r.Frame)

	var id framegraph.ResourceID
	kind, _ := framegraph.ParseResourceKind(r.Kind)
	switch kind {
	case framegraph.KindBuffer:
		id = b.CreateBuffer(r.Name, frame, opts...).ID()
	case framegraph.KindImage:
		id = b.CreateImage(r.Name, frame, opts...).ID()
	case framegraph.KindBufferView:
		id = b.CreateBufferView(r.Name, frame, opts...).ID()
	case framegraph.KindImageView:
		id = b.CreateImageView(r.Name, frame, opts...).ID()
	}
	if r.Retain {
		if err := b.Retain(id); err != nil {
			return id, fmt.Errorf("resource %q: %w", r.Key(), err)
		}
	}
	return id, nil
}

// bindings merges a pass's reads and writes by key, keeping first-mention order.
func bindings(p ir.PassSpec, ids map[string]framegraph.ResourceID) []Binding {
	var out []Binding
	index := make(map[string]int)
	add := func(key string, access framegraph.Access) {
		if i, ok := index[key]; ok {
			out[i].Access |= access
			return
		}
		index[key] = len(out)
		out = append(out, Binding{Key: key, ID: ids[key], Access: access})
	}
	for _, key := range p.Reads {
		add(key, framegraph.AccessRead)
	}
	for _, key := range p.Writes {
		add(key, framegraph.AccessWrite)
	}
	return out
}
