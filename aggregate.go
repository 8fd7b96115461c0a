package evently

import (
	"context"
	"fmt"
)

// Aggregate represents a domain entity that is rebuilt from a stream of
// events (the hand-written counterpart to AggregateRoot's functional
// fold; Base[E] implements this for consumers who embed it).
type Aggregate[E any] interface {
	StreamID() StreamID
	Apply(e E)
	Flush() (events []E, expectedVersion EventNumber)
	Version() EventNumber
}

// AggregateState is a snapshot of a consumer-provided fold: Data is nil
// iff no create event has yet been observed (a brand-new aggregate),
// and NextEventNumber is the event number to use as the expected
// position on the next commit (spec §3).
type AggregateState[S any] struct {
	Data            *S
	NextEventNumber EventNumber
}

// ApplyFunc folds a single event onto an optional prior state. It must
// be total over the event sum type for any reachable state, and
// deterministic. It may fail only when an event cannot meaningfully be
// applied (e.g. a non-create event arriving on a nil state), which
// indicates a corrupted stream and propagates out of Load.
type ApplyFunc[S any, E any] func(state *S, event E) (*S, error)

// AggregateRoot is the functional load-apply-commit loop of spec §4.4:
// Load folds a stream's full history through apply; Commit appends new
// events at an expected position and surfaces ConcurrencyConflict
// unchanged so callers can retry.
type AggregateRoot[S any, E any] struct {
	store EventStore[E]
	apply ApplyFunc[S, E]
}

// NewAggregateRoot builds an AggregateRoot over store using apply as the
// fold.
func NewAggregateRoot[S any, E any](store EventStore[E], apply ApplyFunc[S, E]) *AggregateRoot[S, E] {
	return &AggregateRoot[S, E]{store: store, apply: apply}
}

// Load reads the full history of id, left-folds it through apply
// starting from nil, and returns the resulting state and the event
// number to commit at next. Load is read-only and safe to call
// concurrently.
func (r *AggregateRoot[S, E]) Load(ctx context.Context, id StreamID) (AggregateState[S], error) {
	events, end, err := r.store.Read(ctx, Beginning(id))
	if err != nil {
		return AggregateState[S]{}, err
	}

	var state *S
	for _, e := range events {
		state, err = r.apply(state, e)
		if err != nil {
			return AggregateState[S]{}, fmt.Errorf("evently: aggregate fold failed on stream %q: %w", id, err)
		}
	}

	return AggregateState[S]{Data: state, NextEventNumber: end.EventNumber}, nil
}

// Commit writes events to id as an atomic append at the expected event
// number, and returns the new end position. ConcurrencyConflict is
// surfaced unchanged.
func (r *AggregateRoot[S, E]) Commit(ctx context.Context, id StreamID, expected EventNumber, events []E) (Position, error) {
	return r.store.Append(ctx, Position{StreamID: id, EventNumber: expected}, events)
}

// Command is a consumer-supplied handler of the shape spec §4.4
// describes: given args and the aggregate's current (possibly nil)
// state, it derives the events a command should raise, or an error.
// Returning an empty slice is a legal no-op ("already in desired
// state"); callers must treat a zero-length result as "do not commit".
type Command[S any, E any, A any] func(ctx context.Context, args A, state *S) ([]E, error)

// commandInitiatorKey is the context key used by WithCommandInitiator.
type commandInitiatorKey struct{}

// WithCommandInitiator attaches the ambient command initiator (the
// "who issued this command", spec §4.4) to ctx. It is a plain context
// value, never global mutable state.
func WithCommandInitiator[O any](ctx context.Context, origin O) context.Context {
	return context.WithValue(ctx, commandInitiatorKey{}, origin)
}

// CommandInitiatorFromContext retrieves the origin attached by
// WithCommandInitiator. If ctx carries no origin of type O, it fails
// with a *CommandContextError naming commandName, which matches
// ErrCommandContext under errors.Is.
func CommandInitiatorFromContext[O any](ctx context.Context, commandName string) (O, error) {
	var zero O
	v := ctx.Value(commandInitiatorKey{})
	if v == nil {
		return zero, &CommandContextError{Command: commandName}
	}
	origin, ok := v.(O)
	if !ok {
		return zero, &CommandContextError{Command: commandName}
	}
	return origin, nil
}

// RunCommand implements the standard usage loop from spec §4.4: load,
// run the command, and — only if it produced events — commit them.
// ConcurrencyConflict bubbles out unchanged so the caller can retry
// from Load. The returned bool reports whether anything was committed.
func RunCommand[S any, E any, A any](
	ctx context.Context,
	root *AggregateRoot[S, E],
	id StreamID,
	cmd Command[S, E, A],
	args A,
) (Position, bool, error) {
	state, err := root.Load(ctx, id)
	if err != nil {
		return Position{}, false, err
	}

	events, err := cmd(ctx, args, state.Data)
	if err != nil {
		return Position{}, false, err
	}
	if len(events) == 0 {
		return Position{StreamID: id, EventNumber: state.NextEventNumber}, false, nil
	}

	pos, err := root.Commit(ctx, id, state.NextEventNumber, events)
	if err != nil {
		return Position{}, false, err
	}
	return pos, true, nil
}
