package evently_test

import (
	"context"
	"testing"

	evently "github.com/kodabas/go-evently"
	"github.com/kodabas/go-evently/internal/fakestore"
)

type itemAdded struct{ Name string }
type itemRemoved struct{ Name string }

func applyCatalog(state []string, event evently.Event) []string {
	switch e := event.(type) {
	case itemAdded:
		return append(append([]string{}, state...), e.Name)
	case itemRemoved:
		out := make([]string, 0, len(state))
		for _, name := range state {
			if name != e.Name {
				out = append(out, name)
			}
		}
		return out
	default:
		return state
	}
}

func TestLoadProjection_FoldsFromZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := fakestore.New()
	sid, _ := evently.NewStreamID("catalog")

	if _, err := store.Append(ctx, evently.Beginning(sid), []evently.Event{
		itemAdded{Name: "a"},
		itemAdded{Name: "b"},
		itemRemoved{Name: "a"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	load := evently.LoadProjection[[]string, evently.Event](store, applyCatalog, nil)
	proj, err := load(ctx, sid)
	if err != nil {
		t.Fatalf("load projection: %v", err)
	}
	if len(proj.Data) != 1 || proj.Data[0] != "b" {
		t.Fatalf("unexpected projection: %+v", proj.Data)
	}
	if proj.NextEventNumber != 3 {
		t.Fatalf("expected NextEventNumber 3, got %d", proj.NextEventNumber)
	}
}

func TestLoadProjection_EmptyStreamYieldsZeroValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := fakestore.New()
	sid, _ := evently.NewStreamID("never-appended")

	load := evently.LoadProjection[[]string, evently.Event](store, applyCatalog, nil)
	proj, err := load(ctx, sid)
	if err != nil {
		t.Fatalf("load projection: %v", err)
	}
	if len(proj.Data) != 0 {
		t.Fatalf("expected empty projection, got %+v", proj.Data)
	}
	if proj.NextEventNumber != 0 {
		t.Fatalf("expected NextEventNumber 0, got %d", proj.NextEventNumber)
	}
}
