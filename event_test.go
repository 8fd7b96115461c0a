package evently_test

import (
	"testing"
	"time"

	evently "github.com/kodabas/go-evently"
)

type namedEvent struct{}

func (namedEvent) EventType() string { return "Named" }

type unnamedEvent struct{}

func TestEventType_PrefersExplicitName(t *testing.T) {
	t.Parallel()
	if got := evently.EventType(namedEvent{}); got != "Named" {
		t.Fatalf("expected explicit EventType() to win, got %q", got)
	}
}

func TestEventType_FallsBackToGoTypeName(t *testing.T) {
	t.Parallel()
	got := evently.EventType(unnamedEvent{})
	if got == "" || got == "Named" {
		t.Fatalf("expected a fallback type name, got %q", got)
	}
}

// EventRecord is the optional metadata envelope consumers may choose as
// their E (spec §3): an aggregate parameterised over EventRecord[P, O]
// gets OccurredAt/Origin alongside the payload for free, with no change
// to the engine itself.
func TestEventRecord_CarriesPayloadAndOrigin(t *testing.T) {
	t.Parallel()
	now := time.Unix(0, 0)
	rec := evently.EventRecord[namedEvent, string]{
		Payload:    namedEvent{},
		OccurredAt: now,
		Origin:     "alice",
	}
	if rec.Origin != "alice" || !rec.OccurredAt.Equal(now) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
