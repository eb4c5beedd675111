package trace

import "sync"

// Sink is the minimal interface the orchestrator depends on.
//
// Record must be inert: it must not panic and it returns no error. Callers
// must assume Record may be a no-op.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event and swallows any panic from a buggy sink.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder is an in-memory collector.
//
// Sessions are sequential, but the CLI may read a snapshot from a signal
// path while a session is still recording, so access is guarded.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds a canonical SessionTrace from the recorded events.
func (r *Recorder) Trace(manifestHash string) SessionTrace {
	tr := SessionTrace{ManifestHash: manifestHash, Events: r.Snapshot()}
	tr.Canonicalize()
	return tr
}
