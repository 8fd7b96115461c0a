package evently

import (
	"context"
	"fmt"
)

// Projection is identical in shape to AggregateState but is typically
// consumed read-only by queries; unlike an aggregate fold it usually
// starts from a natural zero value (e.g. an empty collection) rather
// than a nil Option (spec §4.5).
type Projection[P any] struct {
	Data            P
	NextEventNumber EventNumber
}

// LoadProjection builds a loader function that folds a stream's full
// history through apply, starting from zero, exactly like an aggregate
// Load — except it never commits. store is narrowed to
// ProjectionEventStore since a projection is pure read-side.
func LoadProjection[P any, E any](
	store ProjectionEventStore[E],
	apply func(state P, event E) P,
	zero P,
) func(ctx context.Context, id StreamID) (Projection[P], error) {
	return func(ctx context.Context, id StreamID) (Projection[P], error) {
		events, end, err := store.Read(ctx, Beginning(id))
		if err != nil {
			return Projection[P]{}, fmt.Errorf("evently: projection load failed on stream %q: %w", id, err)
		}

		state := zero
		for _, e := range events {
			state = apply(state, e)
		}

		return Projection[P]{Data: state, NextEventNumber: end.EventNumber}, nil
	}
}
