package framegraph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CompileOption tunes compilation.
type CompileOption func(*compileConfig)

type compileConfig struct {
	orderedAliasing bool
	frameNumber     uint64
}

// RequireOrderedAliasing only lets a resource reuse a slot when every pass
// touching the previous occupant happens-before the new occupant's first
// pass through dependency edges. Without it, aliasing follows the linear
// execution order, which assumes passes run in that order on one queue.
func RequireOrderedAliasing() CompileOption {
	return func(c *compileConfig) { c.orderedAliasing = true }
}

// withFrameNumber stamps the absolute frame number; used by Ring.
func withFrameNumber(n uint64) CompileOption {
	return func(c *compileConfig) { c.frameNumber = n }
}

// Compile orders the passes, validates resource access, computes lifetimes
// and assigns physical slots. The builder is consumed whether or not
// compilation succeeds.
//
// The algorithm:
//  1. Kahn's topological sort, ready passes taken in PassID order
//  2. Tarjan SCC over whatever Kahn could not place, to report cycles
//  3. Reference and history resolution
//  4. Reachability closure; unordered conflicting accesses are rejected
//  5. Live ranges over the execution order
//  6. Greedy interval allocation of physical slots
func (b *Builder) Compile(ctx context.Context, opts ...CompileOption) (*FrameGraph, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	var cfg compileConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	history := b.history
	data, resources, queues, passes, deps := b.take()

	_, span := tracer.Start(ctx, "framegraph.compile")
	defer span.End()
	span.SetAttributes(
		attribute.Int("framegraph.passes", len(passes)),
		attribute.Int("framegraph.dependencies", len(deps)),
		attribute.Int64("framegraph.frame", int64(cfg.frameNumber)),
	)

	g, err := compile(cfg, history, data, resources, queues, passes, deps)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Debug("frame graph compilation failed", "error", err, "passes", len(passes))
		return nil, err
	}
	span.SetAttributes(attribute.Int("framegraph.slots", len(g.slots)))
	slog.Debug("frame graph compiled",
		"frame", cfg.frameNumber,
		"passes", len(passes),
		"dependencies", len(deps),
		"resources", len(g.lifetimes),
		"slots", len(g.slots),
	)
	return g, nil
}

func compile(cfg compileConfig, history History, data *PassDataStorage, resources *ResourceTable, queues *QueueRegistry, passes []passRecord, deps []Dependency) (*FrameGraph, error) {
	n := len(passes)
	set := DependencySet{}
	for _, d := range deps {
		set.Add(d)
	}
	succ, indegree := set.adjacency(n)

	order, err := topoSort(n, succ, indegree)
	if err != nil {
		return nil, err
	}
	position := make([]int, n)
	for pos, id := range order {
		position[id] = pos
	}

	g := &FrameGraph{
		number:    cfg.frameNumber,
		order:     order,
		position:  position,
		passes:    passes,
		data:      data,
		resources: resources,
		queues:    queues,
		deps:      deps,
		bindings:  make(map[ResourceID]binding),
		lifetimes: make(map[ResourceID]Lifetime),
	}

	users, err := collectUsers(passes, resources)
	if err != nil {
		return nil, err
	}
	if err := g.bindHistory(history, users); err != nil {
		return nil, err
	}

	reach := reachability(order, succ)
	if err := checkAccess(resources, users, reach); err != nil {
		return nil, err
	}

	lives := liveRanges(resources, users, position, n)
	slots, assignment := allocateSlots(lives, resources, users, reach, cfg.orderedAliasing)
	g.slots = slots
	for _, lt := range lives {
		g.lifetimes[lt.Resource] = lt
		desc, _ := resources.Lookup(lt.Resource)
		g.bindings[lt.Resource] = binding{
			frame:  cfg.frameNumber,
			slot:   assignment[lt.Resource],
			name:   desc.Name,
			origin: lt.Resource,
		}
	}
	return g, nil
}

// topoSort returns passes in dependency order. Among ready passes the lowest
// PassID goes first, so with no edges the order is registration order and
// repeated compiles of the same state agree.
func topoSort(n int, succ [][]PassID, indegree []int) ([]PassID, error) {
	remaining := slices.Clone(indegree)
	var ready []PassID
	for i := 0; i < n; i++ {
		if remaining[i] == 0 {
			ready = append(ready, PassID(i))
		}
	}

	order := make([]PassID, 0, n)
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, s := range succ[next] {
			remaining[s]--
			if remaining[s] == 0 {
				at, _ := slices.BinarySearch(ready, s)
				ready = slices.Insert(ready, at, s)
			}
		}
	}
	if len(order) == n {
		return order, nil
	}

	placed := make([]bool, n)
	for _, id := range order {
		placed[id] = true
	}
	sccs := tarjanSCC(n, succ, func(id PassID) bool { return !placed[id] })

	var onCycle []PassID
	var paths []string
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		onCycle = append(onCycle, scc...)
		paths = append(paths, cyclePath(scc, succ))
	}
	slices.Sort(onCycle)
	e := newError(ErrCodeCyclicDependency, "dependency cycle: %s", strings.Join(paths, "; "))
	e.Passes = onCycle
	return nil, e
}

// tarjanSCC finds strongly connected components among the nodes accepted by include.
func tarjanSCC(n int, succ [][]PassID, include func(PassID) bool) [][]PassID {
	var (
		index   = 0
		stack   []PassID
		indices = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		sccs    [][]PassID
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(PassID)
	strongConnect = func(v PassID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range succ[v] {
			if !include(w) {
				continue
			}
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []PassID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for i := 0; i < n; i++ {
		id := PassID(i)
		if include(id) && indices[id] < 0 {
			strongConnect(id)
		}
	}
	return sccs
}

// cyclePath walks edges inside scc from its lowest member back to itself.
func cyclePath(scc []PassID, succ [][]PassID) string {
	member := make(map[PassID]bool, len(scc))
	for _, id := range scc {
		member[id] = true
	}
	start := scc[0]
	path := []string{start.String()}
	visited := map[PassID]bool{start: true}
	current := start
	for {
		var next PassID = -1
		for _, w := range succ[current] {
			if w == start {
				next = w
				break
			}
			if member[w] && !visited[w] && next < 0 {
				next = w
			}
		}
		if next < 0 {
			break
		}
		path = append(path, next.String())
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return strings.Join(path, " -> ")
}

// passUse is one pass's merged access to one resource.
type passUse struct {
	pass   PassID
	access Access
}

// collectUsers groups declared uses by resource, merging repeated
// declarations from the same pass, and rejects handles the table never issued.
func collectUsers(passes []passRecord, resources *ResourceTable) (map[ResourceID][]passUse, error) {
	users := make(map[ResourceID][]passUse)
	for _, p := range passes {
		for _, u := range p.uses {
			if _, ok := resources.Lookup(u.Resource); !ok {
				id := u.Resource
				e := newError(ErrCodeUnknownResource, "pass %s (%s) uses a resource this builder never created", p.id, p.name)
				e.Passes = []PassID{p.id}
				e.Resource = &id
				return nil, e
			}
			list := users[u.Resource]
			if last := len(list) - 1; last >= 0 && list[last].pass == p.id {
				list[last].access |= u.Access
			} else {
				list = append(list, passUse{pass: p.id, access: u.Access})
			}
			users[u.Resource] = list
		}
	}
	return users, nil
}

// bitset is a fixed-size set of PassIDs.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (s bitset) set(i PassID)      { s[i/64] |= 1 << (uint(i) % 64) }
func (s bitset) has(i PassID) bool { return s[i/64]&(1<<(uint(i)%64)) != 0 }

func (s bitset) union(o bitset) {
	for i := range s {
		s[i] |= o[i]
	}
}

// reachability computes, per pass, the set of passes it must precede.
func reachability(order []PassID, succ [][]PassID) []bitset {
	n := len(order)
	reach := make([]bitset, n)
	for i := n - 1; i >= 0; i-- {
		u := order[i]
		r := newBitset(n)
		for _, v := range succ[u] {
			r.set(v)
			r.union(reach[v])
		}
		reach[u] = r
	}
	return reach
}

func ordered(reach []bitset, a, b PassID) bool {
	return reach[a].has(b) || reach[b].has(a)
}

// checkAccess rejects current-frame resources touched by two passes with no
// ordering edge between them when at least one of the two writes. History
// imports are read-only.
func checkAccess(resources *ResourceTable, users map[ResourceID][]passUse, reach []bitset) error {
	for _, desc := range resources.All() {
		id := desc.ID
		list := users[id]
		if id.Frame < 0 {
			for _, u := range list {
				if u.access.Writes() {
					e := newError(ErrCodeUnsynchronizedAccess, "history resource %q is read-only", desc.Name)
					e.Passes = []PassID{u.pass}
					e.Resource = &id
					return e
				}
			}
			continue
		}
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				a, b := list[i], list[j]
				if !a.access.Writes() && !b.access.Writes() {
					continue
				}
				if ordered(reach, a.pass, b.pass) {
					continue
				}
				e := newError(ErrCodeUnsynchronizedAccess, "passes %s (%s) and %s (%s) access %q with no dependency between them",
					a.pass, a.access, b.pass, b.access, desc.Name)
				e.Passes = []PassID{min(a.pass, b.pass), max(a.pass, b.pass)}
				e.Resource = &id
				return e
			}
		}
	}
	return nil
}

// Lifetime is the closed interval of execution positions during which a
// resource's contents must stay intact.
type Lifetime struct {
	Resource ResourceID
	Start    int
	End      int
}

// Overlaps reports whether two closed intervals intersect.
func (l Lifetime) Overlaps(o Lifetime) bool {
	return l.Start <= o.End && o.Start <= l.End
}

func (l Lifetime) String() string {
	return fmt.Sprintf("%s[%d,%d]", l.Resource, l.Start, l.End)
}

// liveRanges computes intervals for every used current-frame resource.
// Retained resources stay live through the last position. Unused resources
// get no interval and no slot.
func liveRanges(resources *ResourceTable, users map[ResourceID][]passUse, position []int, n int) []Lifetime {
	var lives []Lifetime
	for _, desc := range resources.All() {
		list := users[desc.ID]
		if desc.ID.Frame < 0 || len(list) == 0 {
			continue
		}
		lt := Lifetime{Resource: desc.ID, Start: n, End: -1}
		for _, u := range list {
			pos := position[u.pass]
			lt.Start = min(lt.Start, pos)
			lt.End = max(lt.End, pos)
		}
		if desc.Retained {
			lt.End = n - 1
		}
		lives = append(lives, lt)
	}
	return lives
}
