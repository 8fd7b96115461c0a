package main

import (
	"context"
	"errors"
	"fmt"

	evently "github.com/kodabas/go-evently"
)

const listStreamName = "todolist:default"

// Service wires the Todo aggregate, the shared list aggregate, and the
// store together into the standard load-command-commit loop (spec
// §4.4). It also owns publishing domain events onto the bus so a
// ProcessManager elsewhere can react to them — the store and the bus
// never talk to each other directly (spec §4.6's "avoid cycles" note).
type Service struct {
	store    evently.EventStore[evently.Event]
	todoRoot *evently.AggregateRoot[Todo, evently.Event]
	listRoot *evently.AggregateRoot[TodoList, evently.Event]
	publish  func(streamID evently.StreamID, event evently.Event)
}

// NewService builds a Service. publish is invoked once per event
// successfully committed to a Todo stream; pass (*bus.Bus).Publish, or
// a no-op for callers that don't need the list reaction.
func NewService(store evently.EventStore[evently.Event], publish func(evently.StreamID, evently.Event)) *Service {
	return &Service{
		store:    store,
		todoRoot: evently.NewAggregateRoot[Todo, evently.Event](store, ApplyTodo),
		listRoot: evently.NewAggregateRoot[TodoList, evently.Event](store, listAggregateApply),
		publish:  publish,
	}
}

func todoStreamID(id string) (evently.StreamID, error) {
	return evently.NewStreamID("todo:" + id)
}

func listStreamID() evently.StreamID {
	sid, _ := evently.NewStreamID(listStreamName)
	return sid
}

// runTodoCommand implements the standard usage loop (spec §4.4):
// load → command → commit, retrying once from Load on a concurrency
// conflict. It is a free function, not a method, because Go methods
// cannot carry their own type parameter (A varies per command).
func runTodoCommand[A any](ctx context.Context, s *Service, sid evently.StreamID, cmd evently.Command[Todo, evently.Event, A], args A) ([]evently.Event, error) {
	for attempt := 0; attempt < 2; attempt++ {
		state, err := s.todoRoot.Load(ctx, sid)
		if err != nil {
			return nil, err
		}
		events, err := cmd(ctx, args, state.Data)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, nil
		}
		if _, err := s.todoRoot.Commit(ctx, sid, state.NextEventNumber, events); err != nil {
			var conflict *evently.ConcurrencyConflictError
			if attempt == 0 && errors.As(err, &conflict) {
				continue
			}
			return nil, err
		}
		for _, e := range events {
			s.publish(sid, e)
		}
		return events, nil
	}
	return nil, fmt.Errorf("todo: exhausted retries on %q", sid)
}

// CreateTodo creates a new todo and publishes the resulting TodoCreated
// so list-projection reactions can run.
func (s *Service) CreateTodo(ctx context.Context, id, title string) error {
	sid, err := todoStreamID(id)
	if err != nil {
		return err
	}
	_, err = runTodoCommand(ctx, s, sid, Create, CreateArgs{ID: id, Title: title})
	return err
}

// CompleteTodo marks a todo done; a no-op if it already was (spec
// scenario 4).
func (s *Service) CompleteTodo(ctx context.Context, id string) error {
	sid, err := todoStreamID(id)
	if err != nil {
		return err
	}
	_, err = runTodoCommand(ctx, s, sid, Complete, CompleteArgs{})
	return err
}

// DeleteTodo removes a todo. Requires an ambient command initiator
// attached to ctx via evently.WithCommandInitiator.
func (s *Service) DeleteTodo(ctx context.Context, id string) error {
	sid, err := todoStreamID(id)
	if err != nil {
		return err
	}
	_, err = runTodoCommand(ctx, s, sid, Delete, DeleteArgs{})
	return err
}

// ReactToTodoCreated is the ProcessManager handler: for each TodoCreated
// message observed on the bus, it appends a TodoListItemAdded to the
// shared list aggregate (spec §4.6's "creating a todo adds it to the
// list" example).
func (s *Service) ReactToTodoCreated(ctx context.Context, e TodoCreated) error {
	sid := listStreamID()
	state, err := s.listRoot.Load(ctx, sid)
	if err != nil {
		return err
	}
	_, err = s.listRoot.Commit(ctx, sid, state.NextEventNumber, []evently.Event{
		TodoListItemAdded{TodoID: e.ID, Title: e.Title},
	})
	return err
}

// LoadList folds the shared list stream into its current items.
func (s *Service) LoadList(ctx context.Context) (TodoList, error) {
	loader := evently.LoadProjection[TodoList, evently.Event](s.store, ApplyTodoList, TodoList{})
	proj, err := loader(ctx, listStreamID())
	if err != nil {
		return nil, err
	}
	return proj.Data, nil
}
