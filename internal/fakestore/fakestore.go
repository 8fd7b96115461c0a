// Package fakestore is a minimal, dependency-free EventStore[evently.Event]
// used by the core package's own unit tests (aggregate/projection) where
// pulling in stores/mem would create an import cycle (stores/mem itself
// depends on the root module). It is not a conformance-suite backend —
// storetest exercises that role against stores/mem and stores/pgx.
package fakestore

import (
	"context"
	"sync"

	evently "github.com/kodabas/go-evently"
)

// Store is a trivial, non-subscribable EventStore[evently.Event]: enough
// to drive AggregateRoot/LoadProjection tests without a subscription
// fan-out implementation.
type Store struct {
	mu      sync.Mutex
	streams map[evently.StreamID][]evently.Event
}

// New returns an empty Store.
func New() *Store {
	return &Store{streams: make(map[evently.StreamID][]evently.Event)}
}

var _ evently.EventStore[evently.Event] = (*Store)(nil)

func (s *Store) Append(_ context.Context, to evently.Position, events []evently.Event) (evently.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.streams[to.StreamID]
	current := evently.EventNumber(len(seq))
	if current != to.EventNumber {
		return evently.Position{}, &evently.ConcurrencyConflictError{
			StreamID: to.StreamID,
			Expected: to.EventNumber,
			Actual:   current,
		}
	}
	if len(events) == 0 {
		return to, nil
	}
	seq = append(seq, events...)
	s.streams[to.StreamID] = seq
	return evently.Position{StreamID: to.StreamID, EventNumber: evently.EventNumber(len(seq))}, nil
}

func (s *Store) Read(_ context.Context, from evently.Position) ([]evently.Event, evently.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.streams[from.StreamID]
	start := int(from.EventNumber)
	if start > len(seq) {
		start = len(seq)
	}
	out := append([]evently.Event(nil), seq[start:]...)
	return out, evently.Position{StreamID: from.StreamID, EventNumber: evently.EventNumber(len(seq))}, nil
}

// Subscribe is unimplemented: fakestore only ever backs Load/Commit-style
// tests, never live-tail ones.
func (s *Store) Subscribe(_ context.Context, _ evently.Position) (*evently.Subscription[evently.Event], error) {
	return nil, &evently.StoreError{Operation: evently.OpSubscribe, Details: "fakestore does not support Subscribe"}
}

func (s *Store) CurrentEnd(ctx context.Context, id evently.StreamID) (evently.Position, error) {
	return evently.CurrentEndViaRead[evently.Event](ctx, s, id)
}
