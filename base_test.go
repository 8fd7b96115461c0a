package evently_test

import (
	"testing"

	evently "github.com/kodabas/go-evently"
)

type counterState struct{ n int }

type counterEvent struct{ delta int }

func TestBase_RaiseAppliesAndBuffersPending(t *testing.T) {
	t.Parallel()
	var state counterState
	var b evently.Base[counterEvent]
	sid, _ := evently.NewStreamID("counter-1")
	b.Init(sid, func(e counterEvent) { state.n += e.delta })

	b.Raise(counterEvent{delta: 1})
	b.Raise(counterEvent{delta: 2})

	if state.n != 3 {
		t.Fatalf("expected applier to run on every Raise, got n=%d", state.n)
	}
	if b.Version() != 2 {
		t.Fatalf("expected version 2 after two raises, got %d", b.Version())
	}
	if b.StreamID() != sid {
		t.Fatalf("expected stream id %q, got %q", sid, b.StreamID())
	}
}

func TestBase_FlushReturnsPendingAndExpectedVersion(t *testing.T) {
	t.Parallel()
	var state counterState
	var b evently.Base[counterEvent]
	b.Init("counter-1", func(e counterEvent) { state.n += e.delta })

	b.Raise(counterEvent{delta: 1})
	b.Raise(counterEvent{delta: 2})

	events, expectedVersion := b.Flush()
	if len(events) != 2 {
		t.Fatalf("expected 2 pending events, got %d", len(events))
	}
	if expectedVersion != 0 {
		t.Fatalf("expected commit at version 0 (stream had none before these), got %d", expectedVersion)
	}

	// Flush clears pending: a second call returns nothing, but version
	// (now including the flushed events) is unaffected.
	events, expectedVersion = b.Flush()
	if len(events) != 0 {
		t.Fatalf("expected no pending events after flush, got %d", len(events))
	}
	if expectedVersion != 2 {
		t.Fatalf("expected version 2 after the prior flush, got %d", expectedVersion)
	}
}

func TestBase_ApplyDoesNotBuffer(t *testing.T) {
	t.Parallel()
	var state counterState
	var b evently.Base[counterEvent]
	b.Init("counter-1", func(e counterEvent) { state.n += e.delta })

	// Apply is for replay: it mutates state and advances version but
	// must not be mistaken for something that needs committing.
	b.Apply(counterEvent{delta: 5})
	events, _ := b.Flush()
	if len(events) != 0 {
		t.Fatalf("expected Apply to not enqueue a pending event, got %d", len(events))
	}
	if b.Version() != 1 {
		t.Fatalf("expected version 1 after one Apply, got %d", b.Version())
	}
}
