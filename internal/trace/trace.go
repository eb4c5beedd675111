package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// SessionTrace is the canonical, deterministic record of the decisions taken
// in one orchestration session.
//
// Invariants:
//   - ManifestHash identifies the requested pair list.
//   - Events are logical decisions only: no timestamps, durations, digests or
//     error strings, so identical inputs produce identical bytes.
//   - Events are ordered by Seq, which is the request order of the pairs.
type SessionTrace struct {
	ManifestHash string
	Events       []Event
}

// EventKind is the stable discriminator for Event. The string values are part
// of the canonical bytes; do not rename.
type EventKind string

const (
	EventPairExecuted EventKind = "PairExecuted"
	EventPairSkipped  EventKind = "PairSkipped"
	EventPairFailed   EventKind = "PairFailed"
)

// Event is a single per-pair decision.
type Event struct {
	// Seq is the zero-based position of the pair in the session.
	Seq int

	Kind       EventKind
	Executable string
	Dataset    string

	// Reason is a stable reason code such as "up-to-date" or "digest-changed".
	Reason string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *SessionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.ManifestHash == "" {
		return errors.New("manifestHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if !knownKind(e.Kind) {
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
		if e.Executable == "" {
			return fmt.Errorf("events[%d].executable is required", i)
		}
		if e.Dataset == "" {
			return fmt.Errorf("events[%d].dataset is required", i)
		}
		if e.Seq < 0 {
			return fmt.Errorf("events[%d].seq must be >= 0", i)
		}
	}
	return nil
}

func knownKind(kind EventKind) bool {
	switch kind {
	case EventPairExecuted, EventPairSkipped, EventPairFailed:
		return true
	default:
		return false
	}
}

// Canonicalize sorts events into request order. Ties (which a single session
// never produces) fall back to kind, executable, dataset and reason.
func (t *SessionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Executable != b.Executable {
			return a.Executable < b.Executable
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		return a.Reason < b.Reason
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventPairSkipped:
		return 10
	case EventPairExecuted:
		return 20
	case EventPairFailed:
		return 30
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy so the caller's slice is not reordered.
func (t SessionTrace) CanonicalJSON() ([]byte, error) {
	c := SessionTrace{ManifestHash: t.ManifestHash}
	c.Events = make([]Event, len(t.Events))
	copy(c.Events, t.Events)
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t SessionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field ordering.
func (t SessionTrace) MarshalJSON() ([]byte, error) {
	if t.ManifestHash == "" {
		return nil, errors.New("manifestHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"manifestHash":`)
	mh, _ := json.Marshal(t.ManifestHash)
	buf.Write(mh)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field ordering and omits an empty reason.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"seq":%d,"kind":`, e.Seq)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	buf.WriteString(`,"executable":`)
	xb, _ := json.Marshal(e.Executable)
	buf.Write(xb)

	buf.WriteString(`,"dataset":`)
	db, _ := json.Marshal(e.Dataset)
	buf.Write(db)

	if e.Reason != "" {
		buf.WriteString(`,"reason":`)
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
