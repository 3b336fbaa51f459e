package framegraph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotOf(t *testing.T, g *FrameGraph, r Ref) int {
	t.Helper()
	s, ok := g.SlotOf(r)
	require.True(t, ok, "%s has no slot", r.ID())
	return s
}

// chain registers one pass per entry and orders them linearly.
func chain(t *testing.T, b *Builder, q Queue[General], steps ...useSetup) []PassID {
	t.Helper()
	ids := make([]PassID, len(steps))
	for i, s := range steps {
		ids[i] = addPass(t, b, q, fmt.Sprintf("step%d", i), s)
		if i > 0 {
			dep(t, b, ids[i-1], ids[i])
		}
	}
	return ids
}

// TestAlias_DisjointShareSlot tests that compatible resources with disjoint
// lifetimes share a slot and overlapping ones do not.
func TestAlias_DisjointShareSlot(t *testing.T) {
	b, q := newGeneralBuilder(t)
	a := b.CreateBuffer("a", 0, WithSize(256))
	mid := b.CreateBuffer("b", 0, WithSize(256))
	c := b.CreateBuffer("c", 0, WithSize(256))
	chain(t, b, q,
		uses(Write(a)),
		uses(Read(a), Write(mid)),
		uses(Read(mid), Write(c)),
	)

	g := compileOK(t, b)
	assert.Equal(t, slotOf(t, g, a), slotOf(t, g, c))
	assert.NotEqual(t, slotOf(t, g, a), slotOf(t, g, mid))
	assert.Len(t, g.Slots(), 2)
}

// TestAlias_Incompatible tests that kind and format gate slot sharing.
func TestAlias_Incompatible(t *testing.T) {
	b, q := newGeneralBuilder(t)
	buf := b.CreateBuffer("buf", 0)
	img := b.CreateImage("img", 0)
	hdr := b.CreateImage("hdr", 0, WithFormat("rgba16f"))
	ldr := b.CreateImage("ldr", 0, WithFormat("rgba8"))
	chain(t, b, q,
		uses(Write(buf)),
		uses(Write(img)),
		uses(Write(hdr)),
		uses(Write(ldr)),
	)

	g := compileOK(t, b)
	seen := map[int]string{}
	for _, r := range []Ref{buf, img, hdr, ldr} {
		s := slotOf(t, g, r)
		_, dup := seen[s]
		assert.False(t, dup, "%s reuses slot %d of %s", r.ID(), s, seen[s])
		seen[s] = r.ID().String()
	}
}

// TestAlias_CapacityGrows tests that a slot grows to its largest resident.
func TestAlias_CapacityGrows(t *testing.T) {
	b, q := newGeneralBuilder(t)
	small := b.CreateBuffer("small", 0, WithSize(64))
	large := b.CreateBuffer("large", 0, WithSize(4096))
	chain(t, b, q, uses(Write(small)), uses(Write(large)))

	g := compileOK(t, b)
	require.Len(t, g.Slots(), 1)
	slot := g.Slots()[0]
	assert.Equal(t, uint64(4096), slot.Capacity)
	assert.Equal(t, []ResourceID{small.ID(), large.ID()}, slot.Residents)
}

// TestAlias_BestFit tests that the smallest free slot that already fits wins.
func TestAlias_BestFit(t *testing.T) {
	b, q := newGeneralBuilder(t)
	tiny := b.CreateBuffer("tiny", 0, WithSize(64))
	big := b.CreateBuffer("big", 0, WithSize(1024))
	medium := b.CreateBuffer("medium", 0, WithSize(256))
	huge := b.CreateBuffer("huge", 0, WithSize(512))
	chain(t, b, q,
		uses(Write(tiny), Write(big)),
		uses(Write(medium)),
	)

	g := compileOK(t, b)
	assert.Equal(t, slotOf(t, g, big), slotOf(t, g, medium))
	_, ok := g.SlotOf(huge)
	assert.False(t, ok, "unused resources get no slot")
}

// TestAlias_GrowLargest tests that when nothing fits, the largest free slot grows.
func TestAlias_GrowLargest(t *testing.T) {
	b, q := newGeneralBuilder(t)
	s64 := b.CreateBuffer("s64", 0, WithSize(64))
	s128 := b.CreateBuffer("s128", 0, WithSize(128))
	s512 := b.CreateBuffer("s512", 0, WithSize(512))
	chain(t, b, q,
		uses(Write(s64), Write(s128)),
		uses(Write(s512)),
	)

	g := compileOK(t, b)
	assert.Equal(t, slotOf(t, g, s128), slotOf(t, g, s512))
	assert.Len(t, g.Slots(), 2)
	assert.Equal(t, uint64(512), g.Slots()[slotOf(t, g, s512)].Capacity)
}

// TestAlias_RetainedNotReused tests that a retained resource keeps its slot to itself.
func TestAlias_RetainedNotReused(t *testing.T) {
	b, q := newGeneralBuilder(t)
	hist := b.CreateBuffer("history", 0)
	scratch := b.CreateBuffer("scratch", 0)
	require.NoError(t, b.Retain(hist))
	chain(t, b, q, uses(Write(hist)), uses(Write(scratch)))

	g := compileOK(t, b)
	assert.NotEqual(t, slotOf(t, g, hist), slotOf(t, g, scratch))
}

// TestAlias_OrderedAliasing tests that the stricter mode requires a
// dependency path between consecutive occupants of a slot.
func TestAlias_OrderedAliasing(t *testing.T) {
	build := func(linked bool) (*Builder, BufferRef, BufferRef) {
		b, q := newGeneralBuilder(t)
		x := b.CreateBuffer("x", 0)
		y := b.CreateBuffer("y", 0)
		p0 := addPass(t, b, q, "p0", uses(Write(x)))
		p1 := addPass(t, b, q, "p1", uses(Write(y)))
		if linked {
			dep(t, b, p0, p1)
		}
		return b, x, y
	}

	b, x, y := build(false)
	g := compileOK(t, b)
	assert.Equal(t, slotOf(t, g, x), slotOf(t, g, y), "linear order allows reuse")

	b, x, y = build(false)
	g = compileOK(t, b, RequireOrderedAliasing())
	assert.NotEqual(t, slotOf(t, g, x), slotOf(t, g, y), "unordered passes must not share")

	b, x, y = build(true)
	g = compileOK(t, b, RequireOrderedAliasing())
	assert.Equal(t, slotOf(t, g, x), slotOf(t, g, y))
}

// TestAlias_NoFalseAliasing builds random linear frames and checks that
// residents of one slot never overlap and always match the slot.
func TestAlias_NoFalseAliasing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	formats := []string{"", "rgba8", "d32"}

	for iter := 0; iter < 50; iter++ {
		b, q := newGeneralBuilder(t)
		var refs []Ref
		for i := 0; i < 12; i++ {
			opts := []ResourceOption{WithSize(uint64(rng.Intn(8)+1) * 64), WithFormat(formats[rng.Intn(len(formats))])}
			if rng.Intn(2) == 0 {
				refs = append(refs, b.CreateBuffer(fmt.Sprintf("b%d", i), 0, opts...))
			} else {
				refs = append(refs, b.CreateImage(fmt.Sprintf("i%d", i), 0, opts...))
			}
		}
		steps := make([]useSetup, 8)
		for i := range steps {
			for j := 0; j < 3; j++ {
				r := refs[rng.Intn(len(refs))]
				steps[i].uses = append(steps[i].uses, ResourceUse{Resource: r.ID(), Access: Access(rng.Intn(3) + 1)})
			}
		}
		chain(t, b, q, steps...)
		g := compileOK(t, b)

		for _, slot := range g.Slots() {
			for i, r := range slot.Residents {
				desc, ok := g.resources.Lookup(r)
				require.True(t, ok)
				assert.Equal(t, slot.Kind, r.Kind)
				assert.Equal(t, slot.Format, desc.Format)
				assert.GreaterOrEqual(t, slot.Capacity, desc.Size)

				lt, _ := g.Lifetime(r)
				for _, other := range slot.Residents[i+1:] {
					olt, _ := g.Lifetime(other)
					assert.False(t, lt.Overlaps(olt), "iteration %d: %s and %s share slot %d", iter, lt, olt, slot.Index)
				}
			}
		}
	}
}
