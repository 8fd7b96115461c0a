package main

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	evently "github.com/kodabas/go-evently"
	"github.com/kodabas/go-evently/bus"
	"github.com/kodabas/go-evently/stores/mem"
)

func newTestService(t *testing.T) (*Service, *bus.Bus) {
	t.Helper()
	store := mem.New()
	b := bus.New(zerolog.Nop())
	return NewService(store, b.Publish), b
}

func TestService_CreateThenComplete(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _ := newTestService(t)

	if err := svc.CreateTodo(ctx, "t1", "buy milk"); err != nil {
		t.Fatalf("create: %v", err)
	}

	sid, _ := todoStreamID("t1")
	state, err := svc.todoRoot.Load(ctx, sid)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Data == nil || state.Data.Title != "buy milk" || state.Data.Completed {
		t.Fatalf("unexpected state: %+v", state.Data)
	}

	if err := svc.CompleteTodo(ctx, "t1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	state, err = svc.todoRoot.Load(ctx, sid)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !state.Data.Completed {
		t.Fatal("expected completed=true after CompleteTodo")
	}
}

func TestService_CompleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _ := newTestService(t)

	if err := svc.CreateTodo(ctx, "t1", "buy milk"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CompleteTodo(ctx, "t1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	sid, _ := todoStreamID("t1")
	before, err := svc.todoRoot.Load(ctx, sid)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := svc.CompleteTodo(ctx, "t1"); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	after, err := svc.todoRoot.Load(ctx, sid)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.NextEventNumber != before.NextEventNumber {
		t.Fatalf("expected no new events from idempotent complete, before=%d after=%d", before.NextEventNumber, after.NextEventNumber)
	}
}

func TestService_DeleteRequiresCommandInitiator(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _ := newTestService(t)

	if err := svc.CreateTodo(ctx, "t1", "buy milk"); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := svc.DeleteTodo(ctx, "t1")
	var ccErr *evently.CommandContextError
	if err == nil {
		t.Fatal("expected CommandContextError without an initiator")
	}
	if !errors.As(err, &ccErr) {
		t.Fatalf("expected *evently.CommandContextError, got %v", err)
	}

	authed := evently.WithCommandInitiator(ctx, "alice")
	if err := svc.DeleteTodo(authed, "t1"); err != nil {
		t.Fatalf("delete with initiator: %v", err)
	}
}

func TestService_TodoCreatedDrivesListReaction(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, b := newTestService(t)

	sub := bus.Subscribe[TodoCreated](b, nil)
	defer sub.Close()

	if err := svc.CreateTodo(ctx, "t1", "buy milk"); err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := <-sub.Events()
	if msg.Event.ID != "t1" {
		t.Fatalf("unexpected bus message: %+v", msg)
	}

	if err := svc.ReactToTodoCreated(ctx, msg.Event); err != nil {
		t.Fatalf("react: %v", err)
	}

	list, err := svc.LoadList(ctx)
	if err != nil {
		t.Fatalf("load list: %v", err)
	}
	if len(list) != 1 || list[0].TodoID != "t1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}
