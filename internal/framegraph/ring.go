package framegraph

import (
	"context"
	"sync"
)

// Ring keeps the most recently compiled graphs so builders can import
// resources retained by earlier frames.
type Ring struct {
	mu     sync.Mutex
	depth  int
	graphs []*FrameGraph // newest last
	next   uint64
}

// NewRing returns a ring remembering up to depth frames. Depth below 1 is
// treated as 1.
func NewRing(depth int) *Ring {
	return &Ring{depth: max(depth, 1)}
}

// NewBuilder returns a builder whose history source is the ring.
func (r *Ring) NewBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder(append([]BuilderOption{WithHistory(r)}, opts...)...)
}

// Compile compiles b for the next frame number and, on success, pushes the
// graph into the ring. A failed compile does not advance the frame counter.
// Calls must not overlap; recording an older graph while the next compiles is fine.
func (r *Ring) Compile(ctx context.Context, b *Builder, opts ...CompileOption) (*FrameGraph, error) {
	r.mu.Lock()
	number := r.next
	r.mu.Unlock()

	g, err := b.Compile(ctx, append(opts, withFrameNumber(number))...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs = append(r.graphs, g)
	if len(r.graphs) > r.depth {
		r.graphs = r.graphs[len(r.graphs)-r.depth:]
	}
	r.next = number + 1
	return g, nil
}

// Previous implements History.
func (r *Ring) Previous(k int) (*FrameGraph, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k < 1 || k > len(r.graphs) {
		return nil, false
	}
	return r.graphs[len(r.graphs)-k], true
}

// Frame returns the number the next compiled graph will carry.
func (r *Ring) Frame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Len returns how many graphs the ring currently holds.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.graphs)
}
