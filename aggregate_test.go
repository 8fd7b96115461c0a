package evently_test

import (
	"context"
	"errors"
	"testing"

	evently "github.com/kodabas/go-evently"
	"github.com/kodabas/go-evently/internal/fakestore"
)

type widgetCreated struct{ Name string }
type widgetRenamed struct{ Name string }

type widget struct {
	Name string
}

func applyWidget(state *widget, event evently.Event) (*widget, error) {
	switch e := event.(type) {
	case widgetCreated:
		if state != nil {
			return nil, errors.New("widget: already created")
		}
		return &widget{Name: e.Name}, nil
	case widgetRenamed:
		if state == nil {
			return nil, errors.New("widget: renamed before created")
		}
		next := *state
		next.Name = e.Name
		return &next, nil
	default:
		return nil, errors.New("widget: unrecognised event")
	}
}

func createWidget(_ context.Context, name string, state *widget) ([]evently.Event, error) {
	if state != nil {
		return nil, errors.New("widget: already exists")
	}
	return []evently.Event{widgetCreated{Name: name}}, nil
}

func renameWidget(_ context.Context, name string, state *widget) ([]evently.Event, error) {
	if state == nil {
		return nil, errors.New("widget: does not exist")
	}
	if state.Name == name {
		return nil, nil
	}
	return []evently.Event{widgetRenamed{Name: name}}, nil
}

func TestAggregateRoot_LoadStartsNil(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := evently.NewAggregateRoot[widget, evently.Event](fakestore.New(), applyWidget)
	sid, _ := evently.NewStreamID("w1")

	state, err := root.Load(ctx, sid)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Data != nil {
		t.Fatalf("expected nil data for a never-appended stream, got %+v", state.Data)
	}
	if state.NextEventNumber != 0 {
		t.Fatalf("expected NextEventNumber 0, got %d", state.NextEventNumber)
	}
}

func TestAggregateRoot_CommitThenReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := evently.NewAggregateRoot[widget, evently.Event](fakestore.New(), applyWidget)
	sid, _ := evently.NewStreamID("w1")

	pos, err := root.Commit(ctx, sid, 0, []evently.Event{widgetCreated{Name: "sprocket"}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if pos.EventNumber != 1 {
		t.Fatalf("expected position 1, got %d", pos.EventNumber)
	}

	state, err := root.Load(ctx, sid)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if state.Data == nil || state.Data.Name != "sprocket" {
		t.Fatalf("unexpected state after reload: %+v", state.Data)
	}
}

func TestAggregateRoot_CommitSurfacesConcurrencyConflictUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := evently.NewAggregateRoot[widget, evently.Event](fakestore.New(), applyWidget)
	sid, _ := evently.NewStreamID("w1")

	if _, err := root.Commit(ctx, sid, 0, []evently.Event{widgetCreated{Name: "sprocket"}}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	_, err := root.Commit(ctx, sid, 0, []evently.Event{widgetCreated{Name: "other"}})
	var conflict *evently.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrencyConflictError, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
	if !errors.Is(err, evently.ErrConcurrencyConflict) {
		t.Fatal("expected errors.Is(err, ErrConcurrencyConflict) to hold")
	}
}

func TestAggregateRoot_LoadPropagatesApplyFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := fakestore.New()
	sid, _ := evently.NewStreamID("w1")

	// Write a corrupt stream directly: a rename with no preceding create.
	if _, err := store.Append(ctx, evently.Beginning(sid), []evently.Event{widgetRenamed{Name: "x"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	root := evently.NewAggregateRoot[widget, evently.Event](store, applyWidget)
	if _, err := root.Load(ctx, sid); err == nil {
		t.Fatal("expected Load to propagate the apply failure on a corrupted stream")
	}
}

func TestRunCommand_EmptyEventsIsNotCommitted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := fakestore.New()
	root := evently.NewAggregateRoot[widget, evently.Event](store, applyWidget)
	sid, _ := evently.NewStreamID("w1")

	if _, committed, err := evently.RunCommand(ctx, root, sid, createWidget, "sprocket"); err != nil || !committed {
		t.Fatalf("create: committed=%v err=%v", committed, err)
	}

	// Renaming to the same name is a no-op per renameWidget.
	pos, committed, err := evently.RunCommand(ctx, root, sid, renameWidget, "sprocket")
	if err != nil {
		t.Fatalf("idempotent rename: %v", err)
	}
	if committed {
		t.Fatal("expected no-op rename to report committed=false")
	}
	if pos.EventNumber != 1 {
		t.Fatalf("expected stream to remain at 1, got %d", pos.EventNumber)
	}
}

func TestRunCommand_CommitsNonEmptyEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := fakestore.New()
	root := evently.NewAggregateRoot[widget, evently.Event](store, applyWidget)
	sid, _ := evently.NewStreamID("w1")

	if _, _, err := evently.RunCommand(ctx, root, sid, createWidget, "sprocket"); err != nil {
		t.Fatalf("create: %v", err)
	}
	pos, committed, err := evently.RunCommand(ctx, root, sid, renameWidget, "gadget")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if !committed || pos.EventNumber != 2 {
		t.Fatalf("expected rename to commit at position 2, got committed=%v pos=%+v", committed, pos)
	}
}

func TestCommandInitiator_MissingFromContextFailsCleanly(t *testing.T) {
	t.Parallel()
	_, err := evently.CommandInitiatorFromContext[string](context.Background(), "DeleteWidget")
	var ccErr *evently.CommandContextError
	if !errors.As(err, &ccErr) {
		t.Fatalf("expected *CommandContextError, got %v", err)
	}
	if !errors.Is(err, evently.ErrCommandContext) {
		t.Fatal("expected errors.Is(err, ErrCommandContext) to hold")
	}
}

func TestCommandInitiator_RoundTripsThroughContext(t *testing.T) {
	t.Parallel()
	ctx := evently.WithCommandInitiator(context.Background(), "alice")
	origin, err := evently.CommandInitiatorFromContext[string](ctx, "DeleteWidget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if origin != "alice" {
		t.Fatalf("expected origin %q, got %q", "alice", origin)
	}
}
