// Package mem provides an in-process EventStore implementation. It is
// concurrency-safe and suitable for tests, prototypes, and local runs;
// events and snapshots are kept in-process and lost on restart.
package mem

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"

	evently "github.com/kodabas/go-evently"
)

const subscriberBufferSize = 256

type storedEvent struct {
	payload evently.Event
	at      time.Time
}

type snapshotEntry struct {
	eventNumber evently.EventNumber
	state       any
	at          time.Time
}

// subEntry is one live subscriber. Its queue is seeded with the
// subscriber's historical snapshot and is the only place notifyLocked
// ever appends a live event; both happen under the hub's lock, so the
// queue's order is always history-then-live (I4), and a single pump
// goroutine drains it into the public channel so no second writer can
// race a live append ahead of an in-flight historical replay.
type subEntry struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool

	out  chan evently.Event
	stop chan struct{}
	sub  *evently.Subscription[evently.Event]
}

func newSubEntry() *subEntry {
	e := &subEntry{q: queue.New(), out: make(chan evently.Event), stop: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// enqueue appends ev to e's buffer. It reports false if the buffer is
// already at capacity, signalling the caller (notifyLocked, under the
// hub lock) to drop this subscriber rather than block the appender;
// Append then fails it once the hub lock is released (spec §4.3).
func (e *subEntry) enqueue(ev evently.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return true
	}
	if e.q.Length() >= subscriberBufferSize {
		return false
	}
	e.q.Add(ev)
	e.cond.Signal()
	return true
}

func (e *subEntry) shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	close(e.stop)
}

// pump drains e's queue into out in order, blocking only this
// subscriber's own goroutine when the reader is slow. It exits once
// shutdown has been called and the queue has drained.
func (e *subEntry) pump() {
	defer close(e.out)
	for {
		e.mu.Lock()
		for e.q.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.q.Length() == 0 {
			e.mu.Unlock()
			return
		}
		ev := e.q.Peek().(evently.Event)
		e.q.Remove()
		e.mu.Unlock()
		e.out <- ev
	}
}

// Hub is the shared state behind one or more Store views. Two Store
// values built over the same Hub behave like two client handles to the
// same backend (e.g. two pgx.EventStore instances sharing a pool): a
// write through one is visible, including to live subscribers, through
// the other. A bare mem.New() mints its own private Hub.
type Hub struct {
	mu        sync.RWMutex
	streams   map[evently.StreamID][]storedEvent
	snapshots map[evently.StreamID]snapshotEntry
	subs      map[evently.StreamID][]*subEntry
}

// NewHub builds an empty, ready-to-use Hub.
func NewHub() *Hub {
	return &Hub{
		streams:   make(map[evently.StreamID][]storedEvent),
		snapshots: make(map[evently.StreamID]snapshotEntry),
		subs:      make(map[evently.StreamID][]*subEntry),
	}
}

// Store is an in-memory EventStore + SnapshotStore view over a Hub.
type Store struct {
	hub *Hub
}

// New creates a Store backed by a fresh, private Hub.
func New() *Store {
	return NewView(NewHub())
}

// NewView creates a Store backed by the given, possibly shared, Hub. Two
// views over the same Hub observe each other's writes, including
// through an already-open Subscribe.
func NewView(hub *Hub) *Store {
	return &Store{hub: hub}
}

var (
	_ evently.EventStore[evently.Event] = (*Store)(nil)
	_ evently.SnapshotStore             = (*Store)(nil)
)

func (s *Store) Append(ctx context.Context, to evently.Position, events []evently.Event) (evently.Position, error) {
	h := s.hub
	h.mu.Lock()

	seq := h.streams[to.StreamID]
	current := evently.EventNumber(len(seq))
	if current != to.EventNumber {
		h.mu.Unlock()
		return evently.Position{}, &evently.ConcurrencyConflictError{
			StreamID: to.StreamID,
			Expected: to.EventNumber,
			Actual:   current,
		}
	}

	if len(events) == 0 {
		h.mu.Unlock()
		return to, nil
	}

	now := time.Now()
	for _, e := range events {
		seq = append(seq, storedEvent{payload: e, at: now})
	}
	h.streams[to.StreamID] = seq

	newEnd := evently.Position{StreamID: to.StreamID, EventNumber: evently.EventNumber(len(seq))}
	overflowed := s.notifyLocked(to.StreamID, events)
	h.mu.Unlock()

	// Fail overflowed subscribers after releasing h.mu: Subscription.Fail
	// runs this entry's onClose, which calls removeSub and would deadlock
	// re-acquiring h.mu if invoked from inside notifyLocked.
	for _, se := range overflowed {
		se.sub.Fail(&evently.StoreError{
			Operation: evently.OpSubscribe,
			StreamID:  to.StreamID,
			Details:   "subscriber buffer overflow",
		})
	}

	return newEnd, nil
}

// notifyLocked delivers newly appended events to every live subscriber
// of streamID and returns the subscribers whose buffer overflowed, for
// the caller to fail once h.mu is released. It must be called with
// h.mu held: the same lock that guards a Subscribe's historical
// snapshot + registration, so every event handed to a subscriber's
// queue here is strictly ordered after that subscriber's seeded
// history. An overflowing subscriber is dropped from the live list
// immediately (so it is not enqueued to again) but not failed here,
// since Fail's onClose re-enters h.mu (spec §4.3 backpressure policy:
// the append itself must never stall behind a slow reader, nor
// deadlock on one).
func (s *Store) notifyLocked(streamID evently.StreamID, events []evently.Event) []*subEntry {
	h := s.hub
	live := h.subs[streamID][:0:0]
	var overflowed []*subEntry
	for _, se := range h.subs[streamID] {
		ok := true
		for _, e := range events {
			if !se.enqueue(e) {
				ok = false
				break
			}
		}
		if ok {
			live = append(live, se)
		} else {
			se.shutdown()
			overflowed = append(overflowed, se)
		}
	}
	h.subs[streamID] = live
	return overflowed
}

func (s *Store) Read(_ context.Context, from evently.Position) ([]evently.Event, evently.Position, error) {
	h := s.hub
	h.mu.RLock()
	defer h.mu.RUnlock()

	seq := h.streams[from.StreamID]
	start := int(from.EventNumber)
	if start < 0 {
		start = 0
	}
	if start > len(seq) {
		start = len(seq)
	}

	out := make([]evently.Event, 0, len(seq)-start)
	for _, se := range seq[start:] {
		out = append(out, se.payload)
	}
	end := evently.Position{StreamID: from.StreamID, EventNumber: evently.EventNumber(len(seq))}
	return out, end, nil
}

func (s *Store) CurrentEnd(ctx context.Context, id evently.StreamID) (evently.Position, error) {
	return evently.CurrentEndViaRead[evently.Event](ctx, s, id)
}

func (s *Store) Subscribe(ctx context.Context, from evently.Position) (*evently.Subscription[evently.Event], error) {
	h := s.hub
	entry := newSubEntry()

	// entry.sub must be wired before entry is visible to notifyLocked
	// (registered into h.subs below): Append calls entry.sub.Fail on an
	// entry notifyLocked reports as overflowed, and it must never observe
	// a nil sub.
	sub := evently.NewSubscription(entry.out, func() {
		entry.shutdown()
		s.removeSub(from.StreamID, entry)
	})
	entry.sub = sub

	h.mu.Lock()
	seq := h.streams[from.StreamID]
	start := int(from.EventNumber)
	if start < 0 {
		start = 0
	}
	if start > len(seq) {
		start = len(seq)
	}
	// Seed the queue with the historical snapshot and register the
	// listener in the same critical section used by notifyLocked: any
	// append that commits after this point enqueues strictly after
	// these elements, never before (spec I4's "register before
	// snapshotting" requirement).
	for _, se := range seq[start:] {
		entry.q.Add(se.payload)
	}
	h.subs[from.StreamID] = append(h.subs[from.StreamID], entry)
	h.mu.Unlock()

	go entry.pump()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Fail(ctx.Err())
			case <-entry.stop:
			}
		}()
	}

	return sub, nil
}

func (s *Store) removeSub(streamID evently.StreamID, target *subEntry) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[streamID]
	out := subs[:0]
	for _, se := range subs {
		if se != target {
			out = append(out, se)
		}
	}
	h.subs[streamID] = out
}

func (s *Store) SaveSnapshot(_ context.Context, streamID evently.StreamID, eventNumber evently.EventNumber, state any) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots[streamID] = snapshotEntry{eventNumber: eventNumber, state: state, at: time.Now()}
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context, streamID evently.StreamID) (evently.Snapshot, error) {
	h := s.hub
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap, ok := h.snapshots[streamID]
	if !ok {
		return evently.Snapshot{Found: false}, nil
	}
	return evently.Snapshot{
		State:       snap.state,
		EventNumber: snap.eventNumber,
		Found:       true,
		At:          snap.at,
	}, nil
}
