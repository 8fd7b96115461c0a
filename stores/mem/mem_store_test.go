package mem_test

import (
	"testing"

	evently "github.com/kodabas/go-evently"
	"github.com/kodabas/go-evently/internal/storetest"
	"github.com/kodabas/go-evently/stores/mem"
)

func TestStore_Compliance(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) evently.EventStore[evently.Event] {
		t.Helper()
		return mem.New()
	})
}

func TestStore_SharedHub(t *testing.T) {
	t.Parallel()
	storetest.RunShared(t, func(t *testing.T) (evently.EventStore[evently.Event], evently.EventStore[evently.Event]) {
		t.Helper()
		hub := mem.NewHub()
		return mem.NewView(hub), mem.NewView(hub)
	})
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	s := mem.New()
	id, err := evently.NewStreamID("snap-1")
	if err != nil {
		t.Fatalf("NewStreamID: %v", err)
	}

	if _, err := s.LoadSnapshot(ctx, id); err != nil {
		t.Fatalf("load empty snapshot: %v", err)
	}
	snap, err := s.LoadSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("load empty snapshot: %v", err)
	}
	if snap.Found {
		t.Fatalf("expected no snapshot, got %+v", snap)
	}

	if err := s.SaveSnapshot(ctx, id, 3, map[string]any{"count": 3}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	snap, err = s.LoadSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !snap.Found || snap.EventNumber != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
