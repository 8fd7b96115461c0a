package bus

import (
	"context"

	"github.com/rs/zerolog"

	evently "github.com/kodabas/go-evently"
)

// ProcessManager drives a dependent aggregate from bus messages: for
// each matching message it runs a handler that typically performs a
// load-command-commit against its own AggregateRoot (spec §4.6). A
// handler failure is logged and the manager keeps running; it never
// propagates the failure back onto the bus, and it never writes to the
// bus itself — only to the store, through whatever AggregateRoot the
// handler closes over.
type ProcessManager[T any] struct {
	sub *evently.Subscription[Message[T]]
	log zerolog.Logger
}

// NewProcessManager wraps a bus subscription with failure logging.
func NewProcessManager[T any](sub *evently.Subscription[Message[T]], log zerolog.Logger) *ProcessManager[T] {
	return &ProcessManager[T]{sub: sub, log: withComponent(log, "process_manager")}
}

// Run consumes messages until ctx is cancelled or the subscription
// ends, invoking handle for each. It returns when either happens; it
// does not close the underlying subscription (the caller that created
// it owns that).
func (pm *ProcessManager[T]) Run(ctx context.Context, handle func(ctx context.Context, msg Message[T]) error) {
	for {
		select {
		case msg, ok := <-pm.sub.Events():
			if !ok {
				if err := pm.sub.Err(); err != nil {
					pm.log.Error().Err(err).Msg("bus subscription ended with error")
				}
				return
			}
			if err := handle(ctx, msg); err != nil {
				pm.log.Error().Err(err).Str("stream_id", msg.StreamID.String()).Msg("process manager handler failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
