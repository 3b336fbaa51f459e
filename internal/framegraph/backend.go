package framegraph

import "context"

// FamilyHandle is the backend's opaque queue family handle. The frame graph
// stores it and never looks inside.
type FamilyHandle any

// Encoder is the backend's opaque inline pass-recording handle.
type Encoder any

// PassInfo describes a pass to the backend at execution time.
type PassInfo struct {
	ID    PassID
	Name  string
	Kind  PassKind
	Queue QueueRef
	// Family is the handle the queue family was registered with.
	Family FamilyHandle
	// Position is the index of the pass in the compiled execution order.
	Position int
}

// Recorder is the narrow seam into the backend execution layer. Begin hands
// out the encoder a pass body records into; End is always called after a
// successful Begin, with the body's error.
type Recorder interface {
	Begin(ctx context.Context, pass PassInfo) (Encoder, error)
	End(ctx context.Context, pass PassInfo, enc Encoder, passErr error) error
}
