// Package storetest is the behavioural conformance suite every
// EventStore backend must pass (spec §8). It is deliberately
// domain-free: Opened/Added are throwaway event types used only to
// exercise the contract, never shipped as part of the public API.
package storetest

import (
	"errors"
	"testing"
	"time"

	ev "github.com/kodabas/go-evently"
)

type Opened struct{ ID string }

func (Opened) EventType() string { return "Opened" }

type Added struct{ N int }

func (Added) EventType() string { return "Added" }

// Registry provides a minimal codec registry for backends that need one
// (e.g. a bytes-based store going through the codec layer). In-memory
// backends that store ev.Event values directly don't need it.
func Registry() ev.CodecRegistry {
	return ev.CodecRegistry{
		"Opened": ev.JSONCodec[Opened](),
		"Added":  ev.JSONCodec[Added](),
	}
}

// Factory creates a new, empty EventStore instance for testing. Each
// test should receive a fresh, isolated instance.
type Factory func(t *testing.T) ev.EventStore[ev.Event]

// PairFactory creates two EventStore handles bound to the *same*
// underlying backend — e.g. two Store views over one mem.Hub, or two
// pgx.EventStore instances sharing one pgxpool.Pool — for exercising
// P11 (cross-instance propagation).
type PairFactory func(t *testing.T) (a, b ev.EventStore[ev.Event])

func sid(t *testing.T, suffix string) ev.StreamID {
	t.Helper()
	id, err := ev.NewStreamID(t.Name() + ":" + suffix)
	if err != nil {
		t.Fatalf("NewStreamID: %v", err)
	}
	return id
}

// Run executes the full property suite (P1-P10) plus the literal
// scenarios from spec §8 against a fresh store per subtest.
func Run(t *testing.T, newStore Factory) {
	t.Run("P1_read_round_trip", func(t *testing.T) { t.Parallel(); testReadRoundTrip(t, newStore) })
	t.Run("P2_partial_read", func(t *testing.T) { t.Parallel(); testPartialRead(t, newStore) })
	t.Run("P3_append_monotonicity", func(t *testing.T) { t.Parallel(); testAppendMonotonicity(t, newStore) })
	t.Run("P4_optimistic_concurrency", func(t *testing.T) { t.Parallel(); testOptimisticConcurrency(t, newStore) })
	t.Run("P5_wrong_end_on_empty", func(t *testing.T) { t.Parallel(); testWrongEndOnEmpty(t, newStore) })
	t.Run("P6_nonexistent_read", func(t *testing.T) { t.Parallel(); testNonexistentRead(t, newStore) })
	t.Run("P7_subscribe_history_then_live", func(t *testing.T) { t.Parallel(); testSubscribeHistoryThenLive(t, newStore) })
	t.Run("P8_multi_subscriber_parity", func(t *testing.T) { t.Parallel(); testMultiSubscriberParity(t, newStore) })
	t.Run("P9_read_after_write", func(t *testing.T) { t.Parallel(); testReadAfterWrite(t, newStore) })
	t.Run("P10_codec_transparency", func(t *testing.T) { t.Parallel(); testCodecTransparency(t) })

	t.Run("scenario_empty_append", func(t *testing.T) { t.Parallel(); testScenarioEmptyAppend(t, newStore) })
	t.Run("scenario_conflict_retry", func(t *testing.T) { t.Parallel(); testScenarioConflictRetry(t, newStore) })
	t.Run("scenario_subscribe_bridges_boundary", func(t *testing.T) { t.Parallel(); testScenarioSubscribeBridgesBoundary(t, newStore) })
	t.Run("scenario_slow_subscriber", func(t *testing.T) { t.Parallel(); testScenarioSlowSubscriber(t, newStore) })
}

// RunShared exercises P11: two EventStore handles bound to the same
// backend must observe each other's writes, including through an
// already-open Subscribe.
func RunShared(t *testing.T, newPair PairFactory) {
	t.Run("P11_cross_instance_propagation", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		a, b := newPair(t)
		stream := sid(t, "shared")

		subFromB, err := b.Subscribe(ctx, ev.Beginning(stream))
		if err != nil {
			t.Fatalf("subscribe via b: %v", err)
		}
		defer subFromB.Close()

		if _, err := a.Append(ctx, ev.Beginning(stream), []ev.Event{Opened{ID: "x"}}); err != nil {
			t.Fatalf("append via a: %v", err)
		}

		select {
		case e := <-subFromB.Events():
			if _, ok := e.(Opened); !ok {
				t.Fatalf("expected Opened, got %#v", e)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for cross-instance event on b's subscription")
		}

		events, _, err := b.Read(ctx, ev.Beginning(stream))
		if err != nil {
			t.Fatalf("read via b: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event visible via b, got %d", len(events))
		}
	})
}

func testReadRoundTrip(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	in := []ev.Event{Opened{ID: "1"}, Added{N: 1}, Added{N: 2}}
	if _, err := s.Append(ctx, ev.Beginning(stream), in); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, _, err := s.Read(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d events, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("event %d: expected %#v, got %#v", i, in[i], out[i])
		}
	}
}

func testPartialRead(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	in := []ev.Event{Opened{ID: "1"}, Added{N: 1}, Added{N: 2}, Added{N: 3}}
	if _, err := s.Append(ctx, ev.Beginning(stream), in); err != nil {
		t.Fatalf("append: %v", err)
	}

	for k := 0; k <= len(in); k++ {
		from := ev.Position{StreamID: stream, EventNumber: ev.EventNumber(k)}
		out, _, err := s.Read(ctx, from)
		if err != nil {
			t.Fatalf("read from %d: %v", k, err)
		}
		want := in[k:]
		if len(out) != len(want) {
			t.Fatalf("read from %d: expected %d events, got %d", k, len(want), len(out))
		}
	}
}

func testAppendMonotonicity(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	first := []ev.Event{Opened{ID: "1"}}
	second := []ev.Event{Added{N: 1}, Added{N: 2}}

	end, err := s.Append(ctx, ev.Beginning(stream), first)
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := s.Append(ctx, end, second); err != nil {
		t.Fatalf("second append: %v", err)
	}

	out, _, err := s.Read(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := append(append([]ev.Event{}, first...), second...)
	if len(out) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(out))
	}
}

func testOptimisticConcurrency(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	if _, err := s.Append(ctx, ev.Beginning(stream), []ev.Event{Opened{ID: "1"}, Added{N: 1}}); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	_, err := s.Append(ctx, ev.Position{StreamID: stream, EventNumber: 0}, []ev.Event{Added{N: 2}})
	var conflict *ev.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrencyConflictError, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 2 {
		t.Fatalf("unexpected conflict details: %+v", conflict)
	}

	out, _, err := s.Read(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("stream must be unchanged after rejected append, got %d events", len(out))
	}
}

func testWrongEndOnEmpty(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	_, err := s.Append(ctx, ev.Position{StreamID: stream, EventNumber: 3}, []ev.Event{Opened{ID: "1"}})
	if !errors.Is(err, ev.ErrConcurrencyConflict) {
		t.Fatalf("expected ConcurrencyConflict, got %v", err)
	}
}

func testNonexistentRead(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "never-appended")

	out, end, err := s.Read(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no events, got %d", len(out))
	}
	if end.EventNumber != 0 {
		t.Fatalf("expected end 0, got %d", end.EventNumber)
	}
}

func testSubscribeHistoryThenLive(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	if _, err := s.Append(ctx, ev.Beginning(stream), []ev.Event{Opened{ID: "1"}}); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	sub, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := s.Append(ctx, ev.Position{StreamID: stream, EventNumber: 1}, []ev.Event{Added{N: 1}, Added{N: 2}}); err != nil {
		t.Fatalf("live append: %v", err)
	}

	want := []ev.Event{Opened{ID: "1"}, Added{N: 1}, Added{N: 2}}
	for i, w := range want {
		select {
		case got := <-sub.Events():
			if got != w {
				t.Fatalf("event %d: expected %#v, got %#v", i, w, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func testMultiSubscriberParity(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	subA, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	defer subA.Close()
	subB, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	defer subB.Close()

	in := []ev.Event{Opened{ID: "1"}, Added{N: 1}, Added{N: 2}, Added{N: 3}}
	if _, err := s.Append(ctx, ev.Beginning(stream), in); err != nil {
		t.Fatalf("append: %v", err)
	}

	for i, w := range in {
		gotA := recvOrTimeout(t, subA.Events())
		gotB := recvOrTimeout(t, subB.Events())
		if gotA != w || gotB != w {
			t.Fatalf("event %d: subscribers diverged: a=%#v b=%#v want=%#v", i, gotA, gotB, w)
		}
	}
}

func recvOrTimeout(t *testing.T, ch <-chan ev.Event) ev.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func testReadAfterWrite(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "s")

	if _, err := s.Append(ctx, ev.Beginning(stream), []ev.Event{Opened{ID: "1"}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, _, err := s.Read(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 event immediately after append, got %d", len(out))
	}

	sub, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case e := <-sub.Events():
		if _, ok := e.(Opened); !ok {
			t.Fatalf("expected Opened, got %#v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for just-appended event")
	}
}

func testCodecTransparency(t *testing.T) {
	codec := ev.JSONCodec[Opened]()
	in := Opened{ID: "abc"}
	encoded, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.(Opened) != in {
		t.Fatalf("expected decode(encode(e)) == e, got %#v", decoded)
	}

	if _, err := codec.Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode of malformed payload to fail")
	}
}

func testScenarioEmptyAppend(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "a")

	end, err := s.Append(ctx, ev.Beginning(stream), nil)
	if err != nil {
		t.Fatalf("empty append: %v", err)
	}
	if end != ev.Beginning(stream) {
		t.Fatalf("expected unchanged position, got %+v", end)
	}

	out, _, err := s.Read(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no events, got %d", len(out))
	}
}

func testScenarioConflictRetry(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "t1")

	if _, err := s.Append(ctx, ev.Beginning(stream), []ev.Event{Opened{ID: "buy milk"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded := ev.Position{StreamID: stream, EventNumber: 1}

	if _, err := s.Append(ctx, loaded, []ev.Event{Added{N: 1}}); err != nil {
		t.Fatalf("winner append: %v", err)
	}

	_, err := s.Append(ctx, loaded, []ev.Event{Added{N: 2}})
	var conflict *ev.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected loser to get ConcurrencyConflictError, got %v", err)
	}
	if conflict.Expected != 1 || conflict.Actual != 2 {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}

	retryAt := ev.Position{StreamID: stream, EventNumber: 2}
	if _, err := s.Append(ctx, retryAt, []ev.Event{Added{N: 2}}); err != nil {
		t.Fatalf("retry at correct position: %v", err)
	}
}

func testScenarioSubscribeBridgesBoundary(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "t2")

	if _, err := s.Append(ctx, ev.Beginning(stream), []ev.Event{Opened{ID: "e1"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sub, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := s.Append(ctx, ev.Position{StreamID: stream, EventNumber: 1}, []ev.Event{Added{N: 2}, Added{N: 3}}); err != nil {
		t.Fatalf("live append: %v", err)
	}

	seen := make([]ev.Event, 0, 3)
	for i := 0; i < 3; i++ {
		seen = append(seen, recvOrTimeout(t, sub.Events()))
	}

	want := []ev.Event{Opened{ID: "e1"}, Added{N: 2}, Added{N: 3}}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("event %d: expected %#v, got %#v (no duplicate of e1 allowed)", i, want[i], seen[i])
		}
	}
}

func testScenarioSlowSubscriber(t *testing.T, newStore Factory) {
	ctx := t.Context()
	s := newStore(t)
	stream := sid(t, "t3")

	fast, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe fast: %v", err)
	}
	defer fast.Close()
	slow, err := s.Subscribe(ctx, ev.Beginning(stream))
	if err != nil {
		t.Fatalf("subscribe slow: %v", err)
	}
	defer slow.Close()

	const n = 1000
	events := make([]ev.Event, n)
	for i := 0; i < n; i++ {
		events[i] = Added{N: i}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.Append(ctx, ev.Beginning(stream), events); err != nil {
			t.Errorf("append: %v", err)
		}
	}()

	fastGot := 0
	fastOK := true
	for fastGot < n && fastOK {
		select {
		case e, ok := <-fast.Events():
			if !ok {
				fastOK = false
				break
			}
			if e.(Added).N != fastGot {
				t.Fatalf("fast subscriber reordered: want %d got %d", fastGot, e.(Added).N)
			}
			fastGot++
		case <-time.After(10 * time.Second):
			t.Fatal("fast subscriber stalled")
		}
	}
	if fastGot != n {
		t.Fatalf("fast subscriber must complete all %d events, got %d", n, fastGot)
	}

	slowGot := 0
loop:
	for {
		select {
		case e, ok := <-slow.Events():
			if !ok {
				break loop
			}
			if e.(Added).N != slowGot {
				t.Fatalf("slow subscriber reordered: want %d got %d", slowGot, e.(Added).N)
			}
			slowGot++
			if slowGot == n {
				break loop
			}
			time.Sleep(time.Millisecond)
		case <-time.After(10 * time.Second):
			break loop
		}
	}
	if slowGot != n {
		if err := slow.Err(); err == nil {
			t.Fatalf("slow subscriber neither completed nor failed: got %d/%d events with no error", slowGot, n)
		}
	}

	<-done
}
