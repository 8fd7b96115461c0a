package evently

// Base is a generic embeddable helper that gives a hand-written
// aggregate its StreamID/Apply/Raise/Flush/Version boilerplate, so a
// consumer only has to write the apply switch and its commands.
//
// Semantics:
//   - Apply(e): mutate state via applier and bump version by 1. Does NOT enqueue.
//   - Raise(e): Apply(e) + enqueue to pending (for newly produced events).
//   - Version(): current event number INCLUDING pending.
//   - Flush(): returns pending and clears it; also returns the position
//     to commit at, i.e. currentVersion - len(pending_before).
type Base[E any] struct {
	id      StreamID
	version EventNumber
	pending []E
	applier func(E)
}

// Init sets the stream ID and the state mutation function (applier).
func (b *Base[E]) Init(streamID StreamID, applier func(E)) {
	b.id = streamID
	b.applier = applier
}

// StreamID returns the unique identifier for this aggregate's event stream.
func (b *Base[E]) StreamID() StreamID { return b.id }

// SetStreamID overrides the stream ID (e.g. when the first event assigns it).
func (b *Base[E]) SetStreamID(streamID StreamID) { b.id = streamID }

// SetApplier replaces the state mutation function.
func (b *Base[E]) SetApplier(applier func(E)) { b.applier = applier }

// SetVersion forces the current event number (used when restoring from a
// snapshot). It sets the internal counter; no pending events are affected.
func (b *Base[E]) SetVersion(v EventNumber) { b.version = v }

// Apply mutates state by a single event and advances the version by 1.
// Typically used for event replay (rehydration) or confirming committed events.
func (b *Base[E]) Apply(e E) {
	if b.applier != nil {
		b.applier(e)
	}
	b.version++
}

// Raise records a new domain event: Apply(e) and enqueue it into the
// pending buffer. Call Flush to obtain and clear pending events for
// persistence.
func (b *Base[E]) Raise(e E) {
	b.Apply(e)
	b.pending = append(b.pending, e)
}

// Flush returns all uncommitted events and clears the pending buffer.
// expectedVersion = currentVersion - len(pendingBeforeFlush).
func (b *Base[E]) Flush() (events []E, expectedVersion EventNumber) {
	events = b.pending
	expectedVersion = b.version - EventNumber(len(events))
	b.pending = nil
	return
}

// Version returns the current event number INCLUDING pending events.
func (b *Base[E]) Version() EventNumber { return b.version }
