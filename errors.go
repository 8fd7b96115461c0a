package evently

import "fmt"

// Sentinels for errors.Is. ConcurrencyConflictError, ParseError and
// CommandContextError implement Is(target) so errors.Is(err, ErrXxx)
// matches regardless of the payload carried. The other error types
// below have no sentinel; match them with errors.As.
var (
	// ErrConcurrencyConflict indicates that the expected position did not
	// match the stream's current end, typically due to a concurrent
	// writer. Always retryable by reloading.
	ErrConcurrencyConflict = fmt.Errorf("evently: concurrency conflict")

	// ErrParse indicates a codec encode/decode failure.
	ErrParse = fmt.Errorf("evently: parse error")

	// ErrCommandContext indicates a command handler required an ambient
	// command initiator that the caller's context did not supply.
	ErrCommandContext = fmt.Errorf("evently: missing command context")
)

// StoreOperation names the EventStore operation that failed.
type StoreOperation string

const (
	OpAppend    StoreOperation = "append"
	OpRead      StoreOperation = "read"
	OpSubscribe StoreOperation = "subscribe"
)

// ConcurrencyConflictError is the benign, caller-recoverable signal that
// the stream's end advanced since the caller last loaded it (spec I2,
// P4, P5).
type ConcurrencyConflictError struct {
	StreamID StreamID
	Expected EventNumber
	Actual   EventNumber
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("evently: concurrency conflict on stream %q: expected=%d actual=%d",
		e.StreamID, e.Expected, e.Actual)
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

// StoreError is an operational failure from a backend. RecoveryHint, when
// non-empty, is a human-readable suggestion; it carries no machine
// semantics (use ConnectionError.Retryable for that).
type StoreError struct {
	Operation    StoreOperation
	StreamID     StreamID
	Details      string
	Cause        error
	RecoveryHint string
}

func (e *StoreError) Error() string {
	if e.StreamID != "" {
		return fmt.Sprintf("evently: %s failed on stream %q: %s", e.Operation, e.StreamID, e.Details)
	}
	return fmt.Sprintf("evently: %s failed: %s", e.Operation, e.Details)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// ConnectionError is a StoreError sub-kind for networked backends, which
// know whether the failure is worth retrying.
type ConnectionError struct {
	Operation StoreOperation
	Cause     error
	Retryable bool
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("evently: connection error during %s (retryable=%v): %v", e.Operation, e.Retryable, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ResourceError reports backend resource exhaustion. (The mem backend
// reports a subscriber buffer overflow as a *StoreError, not as this.)
type ResourceError struct {
	Resource  string
	Operation StoreOperation
	Cause     error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("evently: resource %q exhausted during %s: %v", e.Resource, e.Operation, e.Cause)
}

func (e *ResourceError) Unwrap() error { return e.Cause }

// ParseError is a codec encode/decode failure. It is stream-fatal: a
// subscription never skips past the offending event (spec I5).
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evently: parse error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("evently: parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error        { return e.Cause }
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ProjectionOperation names the phase of a projection that failed.
type ProjectionOperation string

const (
	ProjectionBuild   ProjectionOperation = "build"
	ProjectionRebuild ProjectionOperation = "rebuild"
	ProjectionUpdate  ProjectionOperation = "update"
	ProjectionQuery   ProjectionOperation = "query"
)

// ProjectionError reports that a projection's fold failed on a specific
// event position.
type ProjectionError struct {
	ProjectionName string
	Operation      ProjectionOperation
	EventPosition  *Position
	Cause          error
}

func (e *ProjectionError) Error() string {
	if e.EventPosition != nil {
		return fmt.Sprintf("evently: projection %q failed during %s at %s: %v",
			e.ProjectionName, e.Operation, e.EventPosition, e.Cause)
	}
	return fmt.Sprintf("evently: projection %q failed during %s: %v", e.ProjectionName, e.Operation, e.Cause)
}

func (e *ProjectionError) Unwrap() error { return e.Cause }

// SnapshotError reports a failure saving or loading a snapshot. Per spec,
// snapshots are a cache: callers should treat this as non-fatal to
// domain consistency.
type SnapshotError struct {
	StreamID StreamID
	Cause    error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("evently: snapshot error on stream %q: %v", e.StreamID, e.Cause)
}

func (e *SnapshotError) Unwrap() error { return e.Cause }

// SnapshotVersionError reports that a snapshot's recorded version is
// inconsistent with the store (e.g. ahead of the stream's actual end).
type SnapshotVersionError struct {
	StreamID        StreamID
	SnapshotVersion EventNumber
	ActualVersion   EventNumber
}

func (e *SnapshotVersionError) Error() string {
	return fmt.Sprintf("evently: snapshot version mismatch on stream %q: snapshot=%d actual=%d",
		e.StreamID, e.SnapshotVersion, e.ActualVersion)
}

// CommandContextError indicates a command handler required an ambient
// command initiator (origin) that the caller's context did not supply.
type CommandContextError struct {
	Command string
}

func (e *CommandContextError) Error() string {
	return fmt.Sprintf("evently: command %q requires a command initiator in context", e.Command)
}

func (e *CommandContextError) Is(target error) bool { return target == ErrCommandContext }
