package evently

import (
	"context"
	"time"
)

// Snapshot represents the persisted state of an aggregate at a specific
// event number, optionally loaded from storage. It is a narrow
// key/version/blob interface — the spec explicitly excludes snapshot
// storage semantics beyond this shape (no schema evolution, no
// compaction policy).
type Snapshot struct {
	State           any       // the deserialized state
	EventNumber     EventNumber
	Found           bool      // whether a snapshot exists
	At              time.Time // when it was taken
}

// SnapshotStore is the optional narrow interface a backend may implement
// to accelerate Load by skipping replay of the full history. Snapshots
// are safe to treat as a cache: failure to save must never affect event
// consistency (SnapshotError/SnapshotVersionError report such failures
// without touching the event stream itself).
type SnapshotStore interface {
	// SaveSnapshot stores a serialized representation of an aggregate's
	// state as of eventNumber.
	SaveSnapshot(ctx context.Context, streamID StreamID, eventNumber EventNumber, state any) error

	// LoadSnapshot retrieves the latest snapshot for streamID. If none
	// exists, the returned Snapshot has Found=false and zero State/EventNumber.
	LoadSnapshot(ctx context.Context, streamID StreamID) (Snapshot, error)
}
