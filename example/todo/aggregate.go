package main

import (
	"context"
	"fmt"

	evently "github.com/kodabas/go-evently"
)

// Todo is the folded state of a single todo item. Data is nil (via
// AggregateState[Todo].Data) until a TodoCreated has been observed.
type Todo struct {
	ID        string
	Title     string
	Completed bool
	Deleted   bool
}

// ApplyTodo folds one event onto the current (possibly nil) state.
// TodoCreated arriving on a non-nil state, or any other event arriving
// on nil, means the stream is corrupted — that propagates out of Load
// per spec §4.4.
func ApplyTodo(state *Todo, event evently.Event) (*Todo, error) {
	switch e := event.(type) {
	case TodoCreated:
		if state != nil {
			return nil, fmt.Errorf("todo: TodoCreated on an already-created stream")
		}
		return &Todo{ID: e.ID, Title: e.Title}, nil
	case TodoCompleted:
		if state == nil {
			return nil, fmt.Errorf("todo: TodoCompleted before TodoCreated")
		}
		next := *state
		next.Completed = true
		return &next, nil
	case TodoDeleted:
		if state == nil {
			return nil, fmt.Errorf("todo: TodoDeleted before TodoCreated")
		}
		next := *state
		next.Deleted = true
		return &next, nil
	default:
		return nil, fmt.Errorf("todo: unrecognised event %T", event)
	}
}

// CreateArgs is the argument to the Create command.
type CreateArgs struct {
	ID    string
	Title string
}

// Create raises TodoCreated, failing if the todo already exists.
func Create(_ context.Context, args CreateArgs, state *Todo) ([]evently.Event, error) {
	if state != nil {
		return nil, fmt.Errorf("todo: %q already exists", args.ID)
	}
	if args.Title == "" {
		return nil, fmt.Errorf("todo: title must not be empty")
	}
	return []evently.Event{TodoCreated{ID: args.ID, Title: args.Title}}, nil
}

// CompleteArgs is the (empty) argument to the Complete command.
type CompleteArgs struct{}

// Complete raises TodoCompleted, unless the todo is already completed —
// per spec scenario 4, that is a legal no-op (empty event slice), not
// an error.
func Complete(_ context.Context, _ CompleteArgs, state *Todo) ([]evently.Event, error) {
	if state == nil {
		return nil, fmt.Errorf("todo: does not exist")
	}
	if state.Deleted {
		return nil, fmt.Errorf("todo: already deleted")
	}
	if state.Completed {
		return nil, nil
	}
	return []evently.Event{TodoCompleted{}}, nil
}

// DeleteArgs is the (empty) argument to the Delete command.
type DeleteArgs struct{}

// Delete raises TodoDeleted, unless the todo is already deleted.
// Deletion requires an ambient command initiator (spec §4.4): callers
// must attach one with evently.WithCommandInitiator before invoking it.
func Delete(ctx context.Context, _ DeleteArgs, state *Todo) ([]evently.Event, error) {
	if _, err := evently.CommandInitiatorFromContext[string](ctx, "Delete"); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("todo: does not exist")
	}
	if state.Deleted {
		return nil, nil
	}
	return []evently.Event{TodoDeleted{}}, nil
}
