package evently

import "fmt"

// StreamID identifies a single totally-ordered event sequence. It is a
// distinct string type; NewStreamID and ParseStreamID are the validating
// constructors and reject the empty string. A direct conversion (or an
// untyped string constant) also yields a StreamID and skips that check.
type StreamID string

// NewStreamID validates s and returns it as a StreamID.
func NewStreamID(s string) (StreamID, error) {
	if s == "" {
		return "", &ParseError{Reason: "stream id must not be empty"}
	}
	return StreamID(s), nil
}

// ParseStreamID is an alias of NewStreamID kept for call sites that read
// better as "parse" than "construct" (e.g. decoding off the wire).
func ParseStreamID(s string) (StreamID, error) {
	return NewStreamID(s)
}

// String implements fmt.Stringer.
func (id StreamID) String() string { return string(id) }

// EventNumber is a non-negative position within a stream. 0 denotes the
// position before the first event; the first event is at number 1.
type EventNumber int64

// ParseEventNumber validates n and returns it as an EventNumber.
func ParseEventNumber(n int64) (EventNumber, error) {
	if n < 0 {
		return 0, &ParseError{Reason: fmt.Sprintf("event number must be non-negative, got %d", n)}
	}
	return EventNumber(n), nil
}

// Position is a cursor (StreamID, EventNumber). Two positions are only
// meaningfully comparable when they share a StreamID.
type Position struct {
	StreamID    StreamID
	EventNumber EventNumber
}

// Beginning returns the position before the first event of id.
func Beginning(id StreamID) Position {
	return Position{StreamID: id, EventNumber: 0}
}

// PositionFromEventNumber is the smart constructor from spec §4.1: it
// fails with a ParseError if n is negative.
func PositionFromEventNumber(id StreamID, n int64) (Position, error) {
	en, err := ParseEventNumber(n)
	if err != nil {
		return Position{}, err
	}
	return Position{StreamID: id, EventNumber: en}, nil
}

// Advanced returns the position n events after p, on the same stream.
func (p Position) Advanced(n int) Position {
	return Position{StreamID: p.StreamID, EventNumber: p.EventNumber + EventNumber(n)}
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("%s@%d", p.StreamID, p.EventNumber)
}
