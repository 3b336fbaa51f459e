package framegraph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// useSetup is a minimal setup: it declares a fixed list of uses and acquires
// every one of them as a physical resource.
type useSetup struct {
	uses []ResourceUse
}

func (s useSetup) Uses() []ResourceUse { return s.uses }

func (s useSetup) Acquire(fg *FrameGraph) ([]PhysicalResource, error) {
	out := make([]PhysicalResource, len(s.uses))
	for i, u := range s.uses {
		p, err := fg.Resolve(u.Resource)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func uses(u ...ResourceUse) useSetup { return useSetup{uses: u} }

func noop(Encoder, []PhysicalResource) error { return nil }

// newGeneralBuilder returns a builder with one general family of two queues.
func newGeneralBuilder(t *testing.T, opts ...BuilderOption) (*Builder, Queue[General]) {
	t.Helper()
	b := NewBuilder(opts...)
	fam, err := RegisterQueueFamily[General](b, "general", 2)
	require.NoError(t, err)
	return b, fam.Queue(0)
}

// addPass registers a graphics pass and fails the test on error.
func addPass(t *testing.T, b *Builder, q Queue[General], name string, setup useSetup) PassID {
	t.Helper()
	id, err := AddGraphicsPass(b, q, name, setup, noop)
	require.NoError(t, err)
	return id
}

func dep(t *testing.T, b *Builder, producer, consumer PassID) {
	t.Helper()
	require.NoError(t, b.AddDependency(producer, consumer))
}

func compileOK(t *testing.T, b *Builder, opts ...CompileOption) *FrameGraph {
	t.Helper()
	g, err := b.Compile(context.Background(), opts...)
	require.NoError(t, err)
	return g
}

func codeOf(t *testing.T, err error) ErrorCode {
	t.Helper()
	require.Error(t, err)
	code := CodeOf(err)
	require.NotEmpty(t, code, "expected *framegraph.Error, got %T: %v", err, err)
	return code
}

// fakeRecorder logs Begin/End calls and hands out the pass name as encoder.
type fakeRecorder struct {
	mu       sync.Mutex
	events   []string
	passErrs []error
	beginErr error
}

func (r *fakeRecorder) Begin(_ context.Context, p PassInfo) (Encoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beginErr != nil {
		return nil, r.beginErr
	}
	r.events = append(r.events, "begin "+p.Name)
	return p.Name, nil
}

func (r *fakeRecorder) End(_ context.Context, p PassInfo, _ Encoder, passErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "end "+p.Name)
	r.passErrs = append(r.passErrs, passErr)
	return nil
}
