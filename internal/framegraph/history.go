package framegraph

// History resolves graphs compiled for earlier frames. Previous(1) is the
// graph compiled immediately before the one being built.
type History interface {
	Previous(k int) (*FrameGraph, bool)
}

// bindHistory resolves every used resource requested at a negative frame
// offset to the retained frame-0 resource of the same kind and name in the
// graph k frames back. Unused imports are left unbound.
func (g *FrameGraph) bindHistory(history History, users map[ResourceID][]passUse) error {
	for _, desc := range g.resources.All() {
		id := desc.ID
		if id.Frame >= 0 || len(users[id]) == 0 {
			continue
		}
		fail := func(format string, args ...any) error {
			e := newError(ErrCodeUnknownResource, format, args...)
			e.Resource = &id
			e.Passes = passesOf(users[id])
			return e
		}

		k := -int(id.Frame)
		if history == nil {
			return fail("%s %q requests frame %d but the builder has no history", id.Kind, desc.Name, id.Frame)
		}
		prev, ok := history.Previous(k)
		if !ok {
			return fail("%s %q requests frame %d but no graph was compiled %d frames earlier", id.Kind, desc.Name, id.Frame, k)
		}

		var match *ResourceDesc
		for _, cand := range prev.resources.All() {
			if cand.ID.Kind != id.Kind || cand.ID.Frame != 0 || !cand.Retained || cand.Name != desc.Name {
				continue
			}
			if _, bound := prev.bindings[cand.ID]; !bound {
				continue
			}
			if match != nil {
				return fail("%s %q is ambiguous in frame %d", id.Kind, desc.Name, prev.number)
			}
			c := cand
			match = &c
		}
		if match == nil {
			return fail("frame %d retained no %s named %q", prev.number, id.Kind, desc.Name)
		}

		b := prev.bindings[match.ID]
		g.bindings[id] = binding{frame: b.frame, slot: b.slot, name: desc.Name, origin: match.ID}
	}
	return nil
}

func passesOf(list []passUse) []PassID {
	out := make([]PassID, len(list))
	for i, u := range list {
		out[i] = u.pass
	}
	return out
}
