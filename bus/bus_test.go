package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	evently "github.com/kodabas/go-evently"
	"github.com/kodabas/go-evently/bus"
)

type widgetCreated struct{ Name string }
type widgetDeleted struct{ Name string }

func TestBus_DeliversMatchingType(t *testing.T) {
	t.Parallel()
	b := bus.New(zerolog.Nop())

	sub := bus.Subscribe[widgetCreated](b, nil)
	defer sub.Close()

	sid, _ := evently.NewStreamID("widget-1")
	b.Publish(sid, widgetCreated{Name: "sprocket"})
	b.Publish(sid, widgetDeleted{Name: "sprocket"})

	select {
	case msg := <-sub.Events():
		if msg.Event.Name != "sprocket" {
			t.Fatalf("unexpected event: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for matching message")
	}

	select {
	case msg, ok := <-sub.Events():
		if ok {
			t.Fatalf("expected no further delivery, got %+v", msg)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_PredicateFilters(t *testing.T) {
	t.Parallel()
	b := bus.New(zerolog.Nop())

	sub := bus.Subscribe(b, func(_ evently.StreamID, e widgetCreated) bool {
		return e.Name == "sprocket"
	})
	defer sub.Close()

	sidA, _ := evently.NewStreamID("a")
	sidB, _ := evently.NewStreamID("b")
	b.Publish(sidA, widgetCreated{Name: "gadget"})
	b.Publish(sidB, widgetCreated{Name: "sprocket"})

	select {
	case msg := <-sub.Events():
		if msg.Event.Name != "sprocket" || msg.StreamID != sidB {
			t.Fatalf("unexpected delivery: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for filtered message")
	}
}

func TestBus_CloseUnregistersSynchronously(t *testing.T) {
	t.Parallel()
	b := bus.New(zerolog.Nop())

	sub := bus.Subscribe[widgetCreated](b, nil)
	sub.Close()

	sid, _ := evently.NewStreamID("x")
	b.Publish(sid, widgetCreated{Name: "ignored"})

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel, got a value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBus_SlowSubscriberDoesNotDropOrBlockPublish(t *testing.T) {
	t.Parallel()
	b := bus.New(zerolog.Nop())

	sub := bus.Subscribe[widgetCreated](b, nil)
	defer sub.Close()

	sid, _ := evently.NewStreamID("y")
	const n = 500
	for i := 0; i < n; i++ {
		b.Publish(sid, widgetCreated{Name: "w"})
	}

	got := 0
	for got < n {
		select {
		case <-sub.Events():
			got++
		case <-time.After(5 * time.Second):
			t.Fatalf("only received %d/%d messages", got, n)
		}
	}
}

func TestProcessManager_LogsAndContinuesOnHandlerError(t *testing.T) {
	t.Parallel()
	b := bus.New(zerolog.Nop())
	sub := bus.Subscribe[widgetCreated](b, nil)
	pm := bus.NewProcessManager(sub, zerolog.Nop())

	ctx, cancel := context.WithCancel(t.Context())
	handled := make(chan string, 2)
	go pm.Run(ctx, func(_ context.Context, msg bus.Message[widgetCreated]) error {
		handled <- msg.Event.Name
		if msg.Event.Name == "bad" {
			return errFake
		}
		return nil
	})

	sid, _ := evently.NewStreamID("z")
	b.Publish(sid, widgetCreated{Name: "bad"})
	b.Publish(sid, widgetCreated{Name: "good"})

	for i := 0; i < 2; i++ {
		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handler invocation")
		}
	}
	cancel()
}

var errFake = fakeErr{}

type fakeErr struct{}

func (fakeErr) Error() string { return "fake handler failure" }
