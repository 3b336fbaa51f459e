package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/framegraph/internal/framegraph"
)

// Event is one Begin or End call seen by a Recorder.
type Event struct {
	Step     int64    `json:"step" yaml:"step"`
	Frame    uint64   `json:"frame" yaml:"frame"`
	Type     string   `json:"type" yaml:"type"` // "begin" | "end"
	Pass     string   `json:"pass" yaml:"pass"`
	Kind     string   `json:"kind" yaml:"kind"`
	Queue    string   `json:"queue" yaml:"queue"`
	Position int      `json:"position" yaml:"position"`
	Commands []string `json:"commands,omitempty" yaml:"commands,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Encoding is the encoder a Recorder hands to pass bodies. Bodies record
// commands into it as plain strings.
type Encoding struct {
	Pass     string
	commands []string
}

// Record appends a formatted command.
func (e *Encoding) Record(format string, args ...any) {
	e.commands = append(e.commands, fmt.Sprintf(format, args...))
}

// Commands returns what the pass recorded so far.
func (e *Encoding) Commands() []string {
	return append([]string(nil), e.commands...)
}

// Recorder is an in-memory framegraph.Recorder that logs every Begin/End
// with a step number. Optional failures can be injected per pass name.
type Recorder struct {
	mu        sync.Mutex
	clock     *StepClock
	frame     uint64
	events    []Event
	failBegin map[string]error
}

// NewRecorder creates a recorder with its own step clock.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewStepClock(), failBegin: make(map[string]error)}
}

// SetFrame stamps subsequent events with frame n.
func (r *Recorder) SetFrame(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame = n
}

// FailBegin makes Begin for the named pass return err.
func (r *Recorder) FailBegin(pass string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failBegin[pass] = err
}

// Begin implements framegraph.Recorder.
func (r *Recorder) Begin(_ context.Context, p framegraph.PassInfo) (framegraph.Encoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.event("begin", p)
	if err := r.failBegin[p.Name]; err != nil {
		ev.Error = err.Error()
		r.events = append(r.events, ev)
		return nil, err
	}
	r.events = append(r.events, ev)
	return &Encoding{Pass: p.Name}, nil
}

// End implements framegraph.Recorder.
func (r *Recorder) End(_ context.Context, p framegraph.PassInfo, enc framegraph.Encoder, passErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.event("end", p)
	if e, ok := enc.(*Encoding); ok {
		ev.Commands = e.Commands()
	}
	if passErr != nil {
		ev.Error = passErr.Error()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) event(typ string, p framegraph.PassInfo) Event {
	queue := fmt.Sprint(p.Family)
	return Event{
		Step:     r.clock.Tick(),
		Frame:    r.frame,
		Type:     typ,
		Pass:     p.Name,
		Kind:     p.Kind.String(),
		Queue:    fmt.Sprintf("%s[%d]", queue, p.Queue.Index),
		Position: p.Position,
	}
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Passes returns pass names in the order they began.
func (r *Recorder) Passes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Type == "begin" {
			out = append(out, ev.Pass)
		}
	}
	return out
}

// Reset clears recorded events and rewinds the clock.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.clock.Reset()
}
