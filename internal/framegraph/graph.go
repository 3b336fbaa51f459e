package framegraph

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/roach88/framegraph/internal/framegraph")

// FrameGraph is the compiled, read-only result of a Builder. It owns the
// setup data, pass continuations and slot mapping moved out of the builder,
// and is safe for concurrent readers.
type FrameGraph struct {
	number    uint64
	order     []PassID
	position  []int
	passes    []passRecord
	data      *PassDataStorage
	resources *ResourceTable
	queues    *QueueRegistry
	deps      []Dependency
	slots     []Slot
	lifetimes map[ResourceID]Lifetime
	bindings  map[ResourceID]binding

	// scope is set on the per-pass view handed to Acquire.
	scope *passRecord
}

// binding maps a logical resource to the slot backing it. For history
// imports frame and origin point into the earlier graph.
type binding struct {
	frame  uint64
	slot   int
	name   string
	origin ResourceID
}

// PhysicalResource identifies concrete backing storage: slot Slot of the
// graph compiled for frame FrameNumber. Logical is the handle the pass asked
// for; Origin is the resource that owns the slot in that graph, which
// differs from Logical only for history imports.
type PhysicalResource struct {
	Slot        int
	FrameNumber uint64
	Logical     ResourceID
	Origin      ResourceID
	Name        string
}

// Buffer is a resolved buffer handle.
type Buffer struct{ PhysicalResource }

// Image is a resolved image handle.
type Image struct{ PhysicalResource }

// BufferView is a resolved buffer view handle.
type BufferView struct{ PhysicalResource }

// ImageView is a resolved image view handle.
type ImageView struct{ PhysicalResource }

// Number returns the absolute frame number this graph was compiled for.
func (g *FrameGraph) Number() uint64 { return g.number }

// Order returns the execution order.
func (g *FrameGraph) Order() []PassID { return slices.Clone(g.order) }

// Dependencies returns the edges the order was derived from.
func (g *FrameGraph) Dependencies() []Dependency { return slices.Clone(g.deps) }

// Slots returns the physical slot table.
func (g *FrameGraph) Slots() []Slot {
	out := make([]Slot, len(g.slots))
	for i, s := range g.slots {
		s.Residents = slices.Clone(s.Residents)
		out[i] = s
	}
	return out
}

// Resources returns every logical resource the builder created.
func (g *FrameGraph) Resources() []ResourceDesc { return g.resources.All() }

// Lifetimes returns live ranges sorted by start, then kind and index.
func (g *FrameGraph) Lifetimes() []Lifetime {
	out := make([]Lifetime, 0, len(g.lifetimes))
	for _, lt := range g.lifetimes {
		out = append(out, lt)
	}
	slices.SortFunc(out, func(a, b Lifetime) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		if a.Resource.Kind != b.Resource.Kind {
			return int(a.Resource.Kind) - int(b.Resource.Kind)
		}
		return a.Resource.Index - b.Resource.Index
	})
	return out
}

// Lifetime returns the live range of a current-frame resource.
func (g *FrameGraph) Lifetime(r Ref) (Lifetime, bool) {
	lt, ok := g.lifetimes[r.ID()]
	return lt, ok
}

// SlotOf returns the physical slot backing r in this graph's own slot table.
// History imports report false; resolve them with Buffer/Image/etc.
func (g *FrameGraph) SlotOf(r Ref) (int, bool) {
	b, ok := g.bindings[r.ID()]
	if !ok || b.frame != g.number || r.ID().Frame < 0 {
		return 0, false
	}
	return b.slot, true
}

// Pass describes a registered pass. Position is -1 for unknown ids.
func (g *FrameGraph) Pass(id PassID) (PassInfo, bool) {
	if id < 0 || int(id) >= len(g.passes) {
		return PassInfo{Position: -1}, false
	}
	return g.info(&g.passes[id]), true
}

// Passes returns pass descriptions in execution order.
func (g *FrameGraph) Passes() []PassInfo {
	out := make([]PassInfo, len(g.order))
	for i, id := range g.order {
		out[i] = g.info(&g.passes[id])
	}
	return out
}

// Uses returns the resource uses a pass declared.
func (g *FrameGraph) Uses(id PassID) []ResourceUse {
	if id < 0 || int(id) >= len(g.passes) {
		return nil
	}
	return slices.Clone(g.passes[id].uses)
}

func (g *FrameGraph) info(p *passRecord) PassInfo {
	fam, _ := g.queues.Family(p.queue.Family)
	return PassInfo{
		ID:       p.id,
		Name:     p.name,
		Kind:     p.kind,
		Queue:    p.queue,
		Family:   fam.Handle,
		Position: g.position[p.id],
	}
}

// FetchSetup returns the setup value registered for pass id, checked against T.
func FetchSetup[T any](g *FrameGraph, id PassID) (T, error) {
	if id < 0 || int(id) >= len(g.passes) {
		var zero T
		return zero, newError(ErrCodeInvalidDependency, "pass %s was not issued by this graph", id)
	}
	return Fetch[T](g.data, g.passes[id].data)
}

// forPass returns a view of g that only resolves the resources p declared.
func (g *FrameGraph) forPass(p *passRecord) *FrameGraph {
	view := *g
	view.scope = p
	return &view
}

func (g *FrameGraph) resolve(id ResourceID) (PhysicalResource, error) {
	if p := g.scope; p != nil && !slices.ContainsFunc(p.uses, func(u ResourceUse) bool { return u.Resource == id }) {
		e := newError(ErrCodeUnknownResource, "pass %s (%s) did not declare this resource", p.id, p.name)
		e.Resource = &id
		e.Passes = []PassID{p.id}
		return PhysicalResource{}, e
	}
	b, ok := g.bindings[id]
	if !ok {
		e := newError(ErrCodeUnknownResource, "resource has no physical slot in this graph")
		e.Resource = &id
		return PhysicalResource{}, e
	}
	return PhysicalResource{
		Slot:        b.slot,
		FrameNumber: b.frame,
		Logical:     id,
		Origin:      b.origin,
		Name:        b.name,
	}, nil
}

// Buffer resolves a logical buffer to its physical slot.
func (g *FrameGraph) Buffer(r BufferRef) (Buffer, error) {
	p, err := g.resolve(r.ID())
	return Buffer{p}, err
}

// Image resolves a logical image to its physical slot.
func (g *FrameGraph) Image(r ImageRef) (Image, error) {
	p, err := g.resolve(r.ID())
	return Image{p}, err
}

// BufferView resolves a logical buffer view to its physical slot.
func (g *FrameGraph) BufferView(r BufferViewRef) (BufferView, error) {
	p, err := g.resolve(r.ID())
	return BufferView{p}, err
}

// ImageView resolves a logical image view to its physical slot.
func (g *FrameGraph) ImageView(r ImageViewRef) (ImageView, error) {
	p, err := g.resolve(r.ID())
	return ImageView{p}, err
}

// Resolve resolves any logical handle. Inside Acquire only the handles the
// pass declared in Uses resolve.
func (g *FrameGraph) Resolve(r Ref) (PhysicalResource, error) {
	return g.resolve(r.ID())
}

// Execute runs every pass in execution order. Each pass fetches its setup,
// acquires physical resources and records into the encoder the recorder
// hands out. Execution stops at the first failing pass or when ctx is done.
func (g *FrameGraph) Execute(ctx context.Context, rec Recorder) error {
	ctx, span := tracer.Start(ctx, "framegraph.execute", trace.WithAttributes(
		attribute.Int64("framegraph.frame", int64(g.number)),
		attribute.Int("framegraph.passes", len(g.order)),
	))
	defer span.End()

	if err := g.execute(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (g *FrameGraph) execute(ctx context.Context, rec Recorder) error {
	for _, id := range g.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &g.passes[id]
		info := g.info(p)

		enc, err := rec.Begin(ctx, info)
		if err != nil {
			return fmt.Errorf("begin pass %s (%s): %w", id, p.name, err)
		}
		runErr := p.runner.run(enc, g.forPass(p))
		if err := rec.End(ctx, info, enc, runErr); err != nil {
			return fmt.Errorf("end pass %s (%s): %w", id, p.name, err)
		}
		if runErr != nil {
			return fmt.Errorf("pass %s (%s): %w", id, p.name, runErr)
		}
	}
	return nil
}
