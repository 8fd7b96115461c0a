// Package bus implements the process-local pub/sub of spec §4.6: a
// channel for cross-aggregate reactions, distinct from and weaker than
// the event store — at-most-once delivery to live subscribers, no
// replay, and no dropped messages under slow consumption.
package bus

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	evently "github.com/kodabas/go-evently"
)

// Message is what a typed subscriber receives: the stream an event
// occurred on, plus the event itself narrowed to T.
type Message[T any] struct {
	StreamID evently.StreamID
	Event    T
}

// subscriber is the bus's internal, type-erased view of a Subscribe[T]
// call: Publish fans out to every registered subscriber without needing
// to know each one's T.
type subscriber interface {
	tryDeliver(streamID evently.StreamID, event evently.Event)
	shutdown()
}

// Bus is a process-local publish/subscribe hub. The zero value is not
// usable; construct with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[subscriber]struct{}
	log  zerolog.Logger
}

// New creates an empty Bus. log is kept on the Bus, tagged with
// component "bus"; the Bus itself writes nothing to it. Handler-failure
// diagnostics from ProcessManager.Run go to the logger passed to
// NewProcessManager instead.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[subscriber]struct{}),
		log:  withComponent(log, "bus"),
	}
}

// Publish enqueues event, tagged with streamID, to every live
// subscriber whose predicate accepts it. Publish never blocks on a
// subscriber's consumption rate: delivery is queued on an unbounded
// per-subscriber buffer (spec §4.6 backpressure policy).
func (b *Bus) Publish(streamID evently.StreamID, event evently.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.tryDeliver(streamID, event)
	}
}

func (b *Bus) register(s subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[s] = struct{}{}
}

// unregister removes s synchronously, before the caller's Close
// returns, so no subsequent Publish can reach it (spec §4.6
// cancellation guarantee).
func (b *Bus) unregister(s subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// typedSubscriber buffers messages of one narrowed type T on an
// eapache/queue.Queue (an unbounded ring buffer) and hands them, in
// order, to a single-reader channel. The queue never drops; a slow
// reader only grows the queue and delays its own channel, never
// Publish or any other subscriber (I6).
type typedSubscriber[T any] struct {
	predicate func(evently.StreamID, T) bool

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool

	out chan Message[T]
}

func newTypedSubscriber[T any](predicate func(evently.StreamID, T) bool) *typedSubscriber[T] {
	s := &typedSubscriber[T]{
		predicate: predicate,
		q:         queue.New(),
		out:       make(chan Message[T]),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *typedSubscriber[T]) tryDeliver(streamID evently.StreamID, event evently.Event) {
	typed, ok := event.(T)
	if !ok {
		return
	}
	if s.predicate != nil && !s.predicate(streamID, typed) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.q.Add(Message[T]{StreamID: streamID, Event: typed})
	s.cond.Signal()
}

func (s *typedSubscriber[T]) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

// pump drains the queue into out, blocking only this subscriber's own
// goroutine when the reader is slow. It exits once shutdown has been
// called and the queue has drained.
func (s *typedSubscriber[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for s.q.Length() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.q.Length() == 0 {
			s.mu.Unlock()
			return
		}
		msg := s.q.Peek().(Message[T])
		s.q.Remove()
		s.mu.Unlock()

		s.out <- msg
	}
}

// Subscribe registers a scoped, typed view of the bus: only events
// assignable to T and accepted by predicate (predicate may be nil to
// accept all T) are delivered. Closing the returned Subscription
// unregisters it synchronously (spec §4.6 cancellation).
func Subscribe[T any](b *Bus, predicate func(streamID evently.StreamID, event T) bool) *evently.Subscription[Message[T]] {
	sub := newTypedSubscriber[T](predicate)
	b.register(sub)
	go sub.pump()

	return evently.NewSubscription(sub.out, func() {
		sub.shutdown()
		b.unregister(sub)
	})
}
