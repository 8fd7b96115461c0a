package evently

import (
	"context"
)

// Metadata carries contextual information alongside an event, stored
// independently of its payload. In this repo it is populated two ways:
// codec.go's NewEncodedEventStoreWithMetadata tags every record in an
// Append batch with a MetadataExtractor's output, and example/todo's
// eventMetadata composes a fixed service label with the ambient
// command initiator (see WithCommandInitiator) for exactly that
// extractor. Typical keys are tenant_id, user_id, correlation_id, and
// trace_id.
type Metadata map[string]any

// MetadataExtractor builds Metadata from a context for a single Append
// call (spec §4.2's per-batch tagging). Applications supply their own
// extractor that knows about private context keys; example/todo's
// eventMetadata is one such extractor, merging a fixed label with
// whatever command initiator WithCommandInitiator attached to ctx.
type MetadataExtractor func(ctx context.Context) Metadata
