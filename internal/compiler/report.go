package compiler

import (
	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
)

// Report describes a compiled graph in terms of the description it was
// built from.
func Report(plan *Plan, g *framegraph.FrameGraph) (*ir.CompileReport, error) {
	hash, err := ir.SpecHash(plan.Spec)
	if err != nil {
		return nil, err
	}

	r := &ir.CompileReport{
		Graph:     plan.Spec.Name,
		SpecHash:  hash,
		IRVersion: ir.IRVersion,
		Frame:     int64(g.Number()),
		Passes:    make([]ir.PassReport, 0, len(plan.Spec.Passes)),
		Slots:     make([]ir.SlotReport, 0),
		Resources: make([]ir.ResourceReport, 0, len(plan.Spec.Resources)),
	}

	for _, p := range g.Passes() {
		spec := plan.Spec.Passes[p.ID]
		r.Passes = append(r.Passes, ir.PassReport{
			Name:     spec.Name,
			Kind:     p.Kind.String(),
			Queue:    spec.Queue,
			Index:    p.Queue.Index,
			Position: p.Position,
		})
	}

	for _, s := range g.Slots() {
		residents := make([]string, len(s.Residents))
		for i, id := range s.Residents {
			residents[i] = plan.ResourceKey(id)
		}
		r.Slots = append(r.Slots, ir.SlotReport{
			Index:     s.Index,
			Kind:      s.Kind.String(),
			Format:    s.Format,
			Capacity:  int64(s.Capacity),
			Residents: residents,
		})
	}

	for _, res := range plan.Spec.Resources {
		id := plan.Resources[res.Key()]
		rr := ir.ResourceReport{
			Key:         res.Key(),
			Kind:        res.Kind,
			Slot:        -1,
			SourceFrame: -1,
			Start:       -1,
			End:         -1,
		}
		if p, err := g.Resolve(id); err == nil {
			rr.Slot = p.Slot
			rr.SourceFrame = int64(p.FrameNumber)
		}
		if lt, ok := g.Lifetime(id); ok {
			rr.Start, rr.End = lt.Start, lt.End
		}
		r.Resources = append(r.Resources, rr)
	}

	return r, nil
}
