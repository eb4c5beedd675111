package trace

import (
	"bytes"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := SessionTrace{
		ManifestHash: "m-abc",
		Events: []Event{
			{Seq: 1, Kind: EventPairExecuted, Executable: "solverA", Dataset: "graphY", Reason: "digest-changed"},
			{Seq: 0, Kind: EventPairSkipped, Executable: "solverA", Dataset: "graphX", Reason: "up-to-date"},
		},
	}
	trace2 := SessionTrace{
		ManifestHash: "m-abc",
		Events: []Event{
			{Seq: 0, Kind: EventPairSkipped, Executable: "solverA", Dataset: "graphX", Reason: "up-to-date"},
			{Seq: 1, Kind: EventPairExecuted, Executable: "solverA", Dataset: "graphY", Reason: "digest-changed"},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_FollowsRequestOrder(t *testing.T) {
	tr := SessionTrace{
		ManifestHash: "m",
		Events: []Event{
			{Seq: 1, Kind: EventPairExecuted, Executable: "a", Dataset: "g"},
			{Seq: 0, Kind: EventPairFailed, Executable: "b", Dataset: "g", Reason: "build-failed"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"manifestHash":"m","events":[` +
		`{"seq":0,"kind":"PairFailed","executable":"b","dataset":"g","reason":"build-failed"},` +
		`{"seq":1,"kind":"PairExecuted","executable":"a","dataset":"g"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestCanonicalJSON_DoesNotReorderCallerSlice(t *testing.T) {
	events := []Event{
		{Seq: 1, Kind: EventPairSkipped, Executable: "a", Dataset: "g"},
		{Seq: 0, Kind: EventPairSkipped, Executable: "a", Dataset: "h"},
	}
	tr := SessionTrace{ManifestHash: "m", Events: events}
	if _, err := tr.CanonicalJSON(); err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if events[0].Seq != 1 {
		t.Fatalf("caller slice was reordered: %+v", events)
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr1 := SessionTrace{ManifestHash: "m", Events: []Event{{Kind: EventPairSkipped, Executable: "a", Dataset: "g"}}}
	tr2 := SessionTrace{ManifestHash: "m", Events: []Event{{Kind: EventPairSkipped, Executable: "a", Dataset: "g"}}}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash, got %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected sha256 hex, got %q", h1)
	}
}

func TestHash_ChangesWithDecision(t *testing.T) {
	skipped := SessionTrace{ManifestHash: "m", Events: []Event{{Kind: EventPairSkipped, Executable: "a", Dataset: "g", Reason: "up-to-date"}}}
	executed := SessionTrace{ManifestHash: "m", Events: []Event{{Kind: EventPairExecuted, Executable: "a", Dataset: "g", Reason: "forced"}}}

	h1, err := skipped.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := executed.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected different hashes for different decisions")
	}
}

func TestValidate_RejectsIncompleteEvents(t *testing.T) {
	cases := map[string]SessionTrace{
		"no manifest hash": {Events: nil},
		"unknown kind":     {ManifestHash: "m", Events: []Event{{Kind: "Other", Executable: "a", Dataset: "g"}}},
		"no executable":    {ManifestHash: "m", Events: []Event{{Kind: EventPairSkipped, Dataset: "g"}}},
		"no dataset":       {ManifestHash: "m", Events: []Event{{Kind: EventPairSkipped, Executable: "a"}}},
	}
	for name, tr := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tr.CanonicalJSON(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRecorder_TraceIsIndependentCopy(t *testing.T) {
	r := NewRecorder()
	SafeRecord(r, Event{Seq: 0, Kind: EventPairSkipped, Executable: "a", Dataset: "g"})
	tr := r.Trace("m")
	SafeRecord(r, Event{Seq: 1, Kind: EventPairExecuted, Executable: "a", Dataset: "h"})

	if len(tr.Events) != 1 {
		t.Fatalf("expected 1 event in earlier trace, got %d", len(tr.Events))
	}
	if got := len(r.Snapshot()); got != 2 {
		t.Fatalf("expected 2 recorded events, got %d", got)
	}
}

type panickingSink struct{}

func (panickingSink) Record(Event) { panic("boom") }

func TestSafeRecord_SwallowsSinkPanics(t *testing.T) {
	SafeRecord(panickingSink{}, Event{Kind: EventPairSkipped, Executable: "a", Dataset: "g"})
	SafeRecord(nil, Event{Kind: EventPairSkipped, Executable: "a", Dataset: "g"})
}
