package evently

import (
	"fmt"
	"time"
)

// Event is a semantic alias of `any` that represents a domain event
// payload. The engine treats it as opaque; consumers supply the schema.
type Event any

// EventType returns the canonical name for a given event. If the event
// implements `EventType() string`, that value is used. Otherwise it
// falls back to the Go type name (e.g. "todo.TodoCreated").
func EventType(e Event) string {
	if named, ok := e.(interface{ EventType() string }); ok {
		return named.EventType()
	}
	return fmt.Sprintf("%T", e)
}

// EventRecord is the optional envelope used by aggregate-style consumers
// (spec §3): a tagged-union payload of kind E plus metadata describing
// when the event occurred and who/what caused it (O, the origin type).
// Engines that accept records are parameterised over O; engines that
// accept raw events are not.
type EventRecord[E any, O any] struct {
	Payload    E
	OccurredAt time.Time
	Origin     O
}
