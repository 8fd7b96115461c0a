package evently

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventCodec defines how a single event type is encoded/decoded for
// persistence. Each event type registers its codec in a CodecRegistry.
type EventCodec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// JSONCodec is a generic EventCodec for JSON-based encoding.
func JSONCodec[T any]() EventCodec {
	return jsonCodec[T]{}
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec[T]) Decode(b []byte) (any, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("evently: failed to decode json: %w", err)
	}
	return v, nil
}

// CodecRegistry maps an event's canonical type name (spec EventType) to
// the codec that knows how to encode/decode it.
type CodecRegistry map[string]EventCodec

// Record is the "I" of spec §4.2: the untyped, bytes-or-record form a
// raw backend actually stores. Type carries the event's canonical name
// so the registry can find the right codec on decode.
type Record struct {
	Type        string
	Payload     []byte
	Metadata    Metadata
	StreamID    StreamID
	EventNumber EventNumber
}

// RawEventStore is an EventStore-shaped backend that works in Record
// rather than a typed event E. It is the seam the codec layer couples
// to a concrete serialisation.
type RawEventStore interface {
	Append(ctx context.Context, to Position, records []Record) (Position, error)
	Read(ctx context.Context, from Position) ([]Record, Position, error)
	Subscribe(ctx context.Context, from Position) (*Subscription[Record], error)
	CurrentEnd(ctx context.Context, id StreamID) (Position, error)
}

// encodedEventStore lifts a RawEventStore of Records into an
// EventStore[E] using reg to encode outgoing events and decode incoming
// ones. It is the only place the engine couples to a concrete wire
// format (spec §4.2): everything above this layer only ever sees E.
type encodedEventStore[E any] struct {
	raw    RawEventStore
	reg    CodecRegistry
	metaFn MetadataExtractor
}

// NewEncodedEventStore wraps raw with reg, producing a typed EventStore.
// Appended records carry no row-level Metadata; use
// NewEncodedEventStoreWithMetadata for that.
func NewEncodedEventStore[E any](raw RawEventStore, reg CodecRegistry) EventStore[E] {
	return &encodedEventStore[E]{raw: raw, reg: reg}
}

// NewEncodedEventStoreWithMetadata is NewEncodedEventStore plus a
// MetadataExtractor: every event in a single Append call is tagged with
// the same Metadata, built once from ctx (e.g. a correlation id pulled
// from a request-scoped context value). This is independent of the
// EventRecord[E,O] envelope, which carries metadata inside the payload
// itself rather than alongside it at the storage row.
func NewEncodedEventStoreWithMetadata[E any](raw RawEventStore, reg CodecRegistry, metaFn MetadataExtractor) EventStore[E] {
	return &encodedEventStore[E]{raw: raw, reg: reg, metaFn: metaFn}
}

func (s *encodedEventStore[E]) encode(ctx context.Context, events []E) ([]Record, error) {
	var meta Metadata
	if s.metaFn != nil {
		meta = s.metaFn(ctx)
	}

	out := make([]Record, len(events))
	for i, e := range events {
		typ := EventType(e)
		codec, ok := s.reg[typ]
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("no codec registered for event type %q", typ)}
		}
		payload, err := codec.Encode(e)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("encoding event type %q", typ), Cause: err}
		}
		out[i] = Record{Type: typ, Payload: payload, Metadata: meta}
	}
	return out, nil
}

func (s *encodedEventStore[E]) decode(rec Record) (E, error) {
	var zero E
	codec, ok := s.reg[rec.Type]
	if !ok {
		return zero, &ParseError{Reason: fmt.Sprintf("no codec registered for event type %q", rec.Type)}
	}
	decoded, err := codec.Decode(rec.Payload)
	if err != nil {
		return zero, &ParseError{Reason: fmt.Sprintf("decoding event type %q", rec.Type), Cause: err}
	}
	typed, ok := decoded.(E)
	if !ok {
		return zero, &ParseError{Reason: fmt.Sprintf("codec for %q returned unexpected Go type %T", rec.Type, decoded)}
	}
	return typed, nil
}

func (s *encodedEventStore[E]) Append(ctx context.Context, to Position, events []E) (Position, error) {
	records, err := s.encode(ctx, events)
	if err != nil {
		return Position{}, err
	}
	return s.raw.Append(ctx, to, records)
}

func (s *encodedEventStore[E]) Read(ctx context.Context, from Position) ([]E, Position, error) {
	records, end, err := s.raw.Read(ctx, from)
	if err != nil {
		return nil, Position{}, err
	}
	out := make([]E, len(records))
	for i, r := range records {
		typed, err := s.decode(r)
		if err != nil {
			return nil, Position{}, err
		}
		out[i] = typed
	}
	return out, end, nil
}

func (s *encodedEventStore[E]) Subscribe(ctx context.Context, from Position) (*Subscription[E], error) {
	rawSub, err := s.raw.Subscribe(ctx, from)
	if err != nil {
		return nil, err
	}

	out := make(chan E)
	sub := NewSubscription(out, rawSub.Close)

	go func() {
		defer close(out)
		for rec := range rawSub.Events() {
			typed, err := s.decode(rec)
			if err != nil {
				// I5: a decode failure is stream-fatal; it must not skip
				// the offending event and resume.
				sub.Fail(err)
				return
			}
			select {
			case out <- typed:
			case <-ctx.Done():
				sub.Fail(ctx.Err())
				return
			}
		}
		if err := rawSub.Err(); err != nil {
			sub.Fail(err)
		}
	}()

	return sub, nil
}

func (s *encodedEventStore[E]) CurrentEnd(ctx context.Context, id StreamID) (Position, error) {
	return s.raw.CurrentEnd(ctx, id)
}
