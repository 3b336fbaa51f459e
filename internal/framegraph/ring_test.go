package framegraph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ringBuilder(t *testing.T, r *Ring) (*Builder, Queue[General]) {
	t.Helper()
	b := r.NewBuilder()
	fam, err := RegisterQueueFamily[General](b, "general", 1)
	require.NoError(t, err)
	return b, fam.Queue(0)
}

// taaFrame builds a frame that writes and retains "taa". When withHistory is
// set it also reads last frame's "taa".
func taaFrame(t *testing.T, r *Ring, withHistory bool) (*Builder, ImageRef, ImageRef) {
	t.Helper()
	b, q := ringBuilder(t, r)
	scratch := b.CreateImage("scratch", 0)
	cur := b.CreateImage("taa", 0)
	require.NoError(t, b.Retain(cur))
	var prev ImageRef
	p0 := addPass(t, b, q, "scene", uses(Write(scratch)))
	resolve := uses(Read(scratch), Write(cur))
	if withHistory {
		prev = b.CreateImage("taa", -1)
		resolve.uses = append(resolve.uses, Read(prev))
	}
	p1 := addPass(t, b, q, "resolve", resolve)
	dep(t, b, p0, p1)
	return b, cur, prev
}

// TestHistory_ResolvesToPreviousFrame tests that frame -1 maps to the slot the
// previous graph allocated, not to anything in the current graph.
func TestHistory_ResolvesToPreviousFrame(t *testing.T) {
	ctx := context.Background()
	r := NewRing(2)

	b0, cur0, _ := taaFrame(t, r, false)
	g0, err := r.Compile(ctx, b0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g0.Number())

	b1, cur1, prev1 := taaFrame(t, r, true)
	g1, err := r.Compile(ctx, b1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g1.Number())

	hist, err := g1.Image(prev1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), hist.FrameNumber)
	assert.Equal(t, slotOf(t, g0, cur0), hist.Slot)
	assert.Equal(t, cur0.ID(), hist.Origin)
	assert.Equal(t, prev1.ID(), hist.Logical)

	now, err := g1.Image(cur1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), now.FrameNumber)

	_, ok := g1.SlotOf(prev1)
	assert.False(t, ok, "history imports occupy no slot in the current graph")
	_, ok = g1.Lifetime(prev1)
	assert.False(t, ok)
}

// TestHistory_TwoFramesBack tests that -2 skips the immediately previous graph.
func TestHistory_TwoFramesBack(t *testing.T) {
	ctx := context.Background()
	r := NewRing(3)
	for i := 0; i < 2; i++ {
		b, _, _ := taaFrame(t, r, false)
		_, err := r.Compile(ctx, b)
		require.NoError(t, err)
	}

	b, q := ringBuilder(t, r)
	old := b.CreateImage("taa", -2)
	addPass(t, b, q, "read", uses(Read(old)))
	g, err := r.Compile(ctx, b)
	require.NoError(t, err)

	h, err := g.Image(old)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.FrameNumber)
}

func TestHistory_Unresolvable(t *testing.T) {
	ctx := context.Background()

	t.Run("no history source", func(t *testing.T) {
		b, q := newGeneralBuilder(t)
		prev := b.CreateBuffer("taa", -1)
		addPass(t, b, q, "read", uses(Read(prev)))
		_, err := b.Compile(ctx)
		assert.Equal(t, ErrCodeUnknownResource, codeOf(t, err))
	})

	t.Run("first frame", func(t *testing.T) {
		r := NewRing(1)
		b, _, _ := taaFrame(t, r, true)
		_, err := r.Compile(ctx, b)
		assert.Equal(t, ErrCodeUnknownResource, codeOf(t, err))
		assert.Equal(t, uint64(0), r.Frame(), "failed compiles do not advance the ring")
		assert.Equal(t, 0, r.Len())
	})

	t.Run("evicted", func(t *testing.T) {
		r := NewRing(1)
		for i := 0; i < 2; i++ {
			b, _, _ := taaFrame(t, r, false)
			_, err := r.Compile(ctx, b)
			require.NoError(t, err)
		}
		b, q := ringBuilder(t, r)
		old := b.CreateImage("taa", -2)
		addPass(t, b, q, "read", uses(Read(old)))
		_, err := r.Compile(ctx, b)
		assert.Equal(t, ErrCodeUnknownResource, codeOf(t, err))
	})

	t.Run("not retained", func(t *testing.T) {
		r := NewRing(1)
		b, q := ringBuilder(t, r)
		img := b.CreateImage("taa", 0)
		addPass(t, b, q, "write", uses(Write(img)))
		_, err := r.Compile(ctx, b)
		require.NoError(t, err)

		b, q = ringBuilder(t, r)
		prev := b.CreateImage("taa", -1)
		addPass(t, b, q, "read", uses(Read(prev)))
		_, err = r.Compile(ctx, b)
		assert.Equal(t, ErrCodeUnknownResource, codeOf(t, err))
	})

	t.Run("ambiguous name", func(t *testing.T) {
		r := NewRing(1)
		b, q := ringBuilder(t, r)
		x := b.CreateBuffer("dup", 0)
		y := b.CreateBuffer("dup", 0)
		require.NoError(t, b.Retain(x))
		require.NoError(t, b.Retain(y))
		addPass(t, b, q, "write", uses(Write(x), Write(y)))
		_, err := r.Compile(ctx, b)
		require.NoError(t, err)

		b, q = ringBuilder(t, r)
		prev := b.CreateBuffer("dup", -1)
		addPass(t, b, q, "read", uses(Read(prev)))
		_, err = r.Compile(ctx, b)
		assert.Equal(t, ErrCodeUnknownResource, codeOf(t, err))
	})
}

// TestHistory_ReadOnly tests that earlier frames' resources cannot be written.
func TestHistory_ReadOnly(t *testing.T) {
	ctx := context.Background()
	r := NewRing(1)
	b0, _, _ := taaFrame(t, r, false)
	_, err := r.Compile(ctx, b0)
	require.NoError(t, err)

	b, q := ringBuilder(t, r)
	prev := b.CreateImage("taa", -1)
	addPass(t, b, q, "clobber", uses(Write(prev)))
	_, err = r.Compile(ctx, b)
	assert.Equal(t, ErrCodeUnsynchronizedAccess, codeOf(t, err))
}

// TestHistory_UnusedImportIgnored tests that declaring an import no pass
// touches does not require it to resolve.
func TestHistory_UnusedImportIgnored(t *testing.T) {
	b, q := newGeneralBuilder(t)
	b.CreateBuffer("taa", -1)
	addPass(t, b, q, "a", uses())
	compileOK(t, b)
}

// TestRing_ConcurrentReaders tests that compiled graphs can be read while
// the next frame is compiled.
func TestRing_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	r := NewRing(2)
	b0, cur0, _ := taaFrame(t, r, false)
	g0, err := r.Compile(ctx, b0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = g0.Image(cur0)
				_ = g0.Slots()
				_, _ = r.Previous(1)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		b, _, _ := taaFrame(t, r, true)
		_, err := r.Compile(ctx, b)
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, uint64(6), r.Frame())
	assert.Equal(t, 2, r.Len())
}
