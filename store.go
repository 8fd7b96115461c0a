package evently

import (
	"context"
)

// EventStore is the central abstraction: an append sink with optimistic
// concurrency, a historical reader, and a live subscriber, all scoped
// per stream (spec §4.1). Implementations may persist to memory,
// PostgreSQL, or any other backend; all operations must be safe for
// concurrent use.
type EventStore[E any] interface {
	// Append consumes events into the stream at to.StreamID, starting
	// after to.EventNumber, and returns the new end position.
	//
	// It fails with *ConcurrencyConflictError if to.EventNumber does not
	// match the stream's current end at the commit point — check with
	// errors.Is(err, ErrConcurrencyConflict). Empty events is a no-op
	// that returns to unchanged. The commit point is atomic per stream:
	// no partial write is ever visible to Read or Subscribe (spec REJECTED
	// state, §4.7).
	Append(ctx context.Context, to Position, events []E) (Position, error)

	// Read returns exactly the events currently stored on from.StreamID
	// with event number strictly greater than from.EventNumber, in
	// ascending order, then ends. It never blocks waiting for future
	// events and never errors on an empty or nonexistent stream.
	Read(ctx context.Context, from Position) ([]E, Position, error)

	// Subscribe emits the same prefix as Read(from), then continues with
	// every event appended to from.StreamID strictly after the snapshot,
	// in append order, until the returned Subscription is closed or the
	// backend signals a fatal error (spec I4).
	Subscribe(ctx context.Context, from Position) (*Subscription[E], error)

	// CurrentEnd returns (id, count) — the position at the current end
	// of the stream. A convenience wrapper over Read.
	CurrentEnd(ctx context.Context, id StreamID) (Position, error)
}

// ProjectionEventStore narrows EventStore to its read-only view, the
// shape a projection needs (spec §6: "EventStore<E> narrowed to read
// only").
type ProjectionEventStore[E any] interface {
	Read(ctx context.Context, from Position) ([]E, Position, error)
}

// CurrentEndViaRead is a helper backends can use to implement CurrentEnd
// in terms of Read, when they have no cheaper way to count a stream.
func CurrentEndViaRead[E any](ctx context.Context, store EventStore[E], id StreamID) (Position, error) {
	_, end, err := store.Read(ctx, Beginning(id))
	if err != nil {
		return Position{}, err
	}
	return end, nil
}
