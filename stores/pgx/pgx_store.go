// Package pgx provides a PostgreSQL-backed EventStore using pgx/pgxpool.
// It implements evently.RawEventStore directly (append/read/subscribe in
// terms of evently.Record) and is meant to be lifted into a typed store
// with evently.NewEncodedEventStore.
package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	evently "github.com/kodabas/go-evently"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel is the single LISTEN/NOTIFY channel shared by every
// stream; notifications carry the stream id in their payload so
// listeners can filter client-side. A fixed channel avoids the need to
// sanitize arbitrary stream ids into SQL identifiers.
const notifyChannel = "evently_events"

// EventStore is a concrete RawEventStore backed by PostgreSQL. It
// persists Records with JSON-encoded payload/metadata and uses
// transactional pg_notify for live subscriber fan-out (spec §4.3).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a Postgres-backed RawEventStore over pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// New wraps a Postgres-backed RawEventStore with reg, producing a typed
// EventStore[evently.Event] — the usual way applications construct this
// backend.
func New(pool *pgxpool.Pool, reg evently.CodecRegistry) evently.EventStore[evently.Event] {
	return evently.NewEncodedEventStore[evently.Event](NewEventStore(pool), reg)
}

// NewWithMetadata is New plus a MetadataExtractor: every event appended
// through the returned store is row-tagged with metaFn(ctx), so a
// consumer can later recover "who/what caused this" straight off the
// events table without decoding payloads.
func NewWithMetadata(pool *pgxpool.Pool, reg evently.CodecRegistry, metaFn evently.MetadataExtractor) evently.EventStore[evently.Event] {
	return evently.NewEncodedEventStoreWithMetadata[evently.Event](NewEventStore(pool), reg, metaFn)
}

var _ evently.RawEventStore = (*EventStore)(nil)

func (s *EventStore) Append(ctx context.Context, to evently.Position, records []evently.Record) (evently.Position, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return evently.Position{}, &evently.ConnectionError{Operation: evently.OpAppend, Cause: err, Retryable: true}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	if err := tx.QueryRow(
		ctx,
		`SELECT COALESCE(MAX(event_number), 0) FROM events WHERE stream_id = $1`,
		string(to.StreamID),
	).Scan(&current); err != nil {
		return evently.Position{}, &evently.StoreError{Operation: evently.OpAppend, StreamID: to.StreamID, Details: "reading current event number", Cause: err}
	}
	if evently.EventNumber(current) != to.EventNumber {
		return evently.Position{}, &evently.ConcurrencyConflictError{
			StreamID: to.StreamID,
			Expected: to.EventNumber,
			Actual:   evently.EventNumber(current),
		}
	}

	if len(records) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return evently.Position{}, &evently.StoreError{Operation: evently.OpAppend, StreamID: to.StreamID, Cause: err}
		}
		return to, nil
	}

	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return evently.Position{}, &evently.ParseError{Reason: "encoding metadata", Cause: err}
		}

		current++
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO events (stream_id, event_number, event_type, payload, metadata)
			 VALUES ($1, $2, $3, $4, $5)`,
			string(to.StreamID), current, rec.Type, rec.Payload, meta,
		); err != nil {
			// The events table's (stream_id, event_number) unique index is
			// this store's concurrency check at the database level: a
			// racing Append that read the same `current` commits its insert
			// first and wins the slot, so ours surfaces as 23505 here
			// rather than the SELECT above, and must map to the same
			// ConcurrencyConflictError a caught-early conflict would give.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return evently.Position{}, &evently.ConcurrencyConflictError{
					StreamID: to.StreamID,
					Expected: to.EventNumber,
					Actual:   evently.EventNumber(current),
				}
			}
			return evently.Position{}, &evently.StoreError{Operation: evently.OpAppend, StreamID: to.StreamID, Details: "inserting event", Cause: err}
		}
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(to.StreamID)); err != nil {
		return evently.Position{}, &evently.StoreError{Operation: evently.OpAppend, StreamID: to.StreamID, Details: "notifying subscribers", Cause: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return evently.Position{}, &evently.StoreError{Operation: evently.OpAppend, StreamID: to.StreamID, Details: "committing transaction", Cause: err}
	}

	return evently.Position{StreamID: to.StreamID, EventNumber: evently.EventNumber(current)}, nil
}

func (s *EventStore) Read(ctx context.Context, from evently.Position) ([]evently.Record, evently.Position, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT event_number, event_type, payload, metadata
		 FROM events
		 WHERE stream_id = $1 AND event_number > $2
		 ORDER BY event_number ASC`,
		string(from.StreamID), int64(from.EventNumber),
	)
	if err != nil {
		return nil, evently.Position{}, &evently.StoreError{Operation: evently.OpRead, StreamID: from.StreamID, Cause: err}
	}
	defer rows.Close()

	last := from.EventNumber
	var out []evently.Record
	for rows.Next() {
		var (
			eventNumber int64
			eventType   string
			payload     []byte
			metaRaw     []byte
		)
		if err := rows.Scan(&eventNumber, &eventType, &payload, &metaRaw); err != nil {
			return nil, evently.Position{}, &evently.StoreError{Operation: evently.OpRead, StreamID: from.StreamID, Cause: err}
		}
		var meta evently.Metadata
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &meta); err != nil {
				return nil, evently.Position{}, &evently.ParseError{Reason: "decoding metadata", Cause: err}
			}
		}
		out = append(out, evently.Record{
			Type:        eventType,
			Payload:     payload,
			Metadata:    meta,
			StreamID:    from.StreamID,
			EventNumber: evently.EventNumber(eventNumber),
		})
		last = evently.EventNumber(eventNumber)
	}
	if err := rows.Err(); err != nil {
		return nil, evently.Position{}, &evently.StoreError{Operation: evently.OpRead, StreamID: from.StreamID, Cause: err}
	}

	return out, evently.Position{StreamID: from.StreamID, EventNumber: last}, nil
}

func (s *EventStore) CurrentEnd(ctx context.Context, id evently.StreamID) (evently.Position, error) {
	return evently.CurrentEndViaRead[evently.Record](ctx, rawAdapter{s}, id)
}

// rawAdapter satisfies evently.EventStore[Record] so CurrentEndViaRead
// (written against the typed interface) can be reused here without
// duplicating the "read to find the end" logic.
type rawAdapter struct{ s *EventStore }

func (a rawAdapter) Append(ctx context.Context, to evently.Position, events []evently.Record) (evently.Position, error) {
	return a.s.Append(ctx, to, events)
}
func (a rawAdapter) Read(ctx context.Context, from evently.Position) ([]evently.Record, evently.Position, error) {
	return a.s.Read(ctx, from)
}
func (a rawAdapter) Subscribe(ctx context.Context, from evently.Position) (*evently.Subscription[evently.Record], error) {
	return a.s.Subscribe(ctx, from)
}
func (a rawAdapter) CurrentEnd(ctx context.Context, id evently.StreamID) (evently.Position, error) {
	return a.s.CurrentEnd(ctx, id)
}

// Subscribe acquires a dedicated connection, LISTENs on notifyChannel,
// replays the requested history, then bridges to live notifications:
// each notification for this stream triggers a Read of whatever has
// been appended since the last position seen (spec §4.3/I4). The
// dedicated connection is released when the subscription ends.
func (s *EventStore) Subscribe(ctx context.Context, from evently.Position) (*evently.Subscription[evently.Record], error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, &evently.ConnectionError{Operation: evently.OpSubscribe, Cause: err, Retryable: true}
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, &evently.ConnectionError{Operation: evently.OpSubscribe, Cause: err, Retryable: true}
	}

	ch := make(chan evently.Record)
	sub := evently.NewSubscription(ch, func() { conn.Release() })

	go s.pump(ctx, conn, from, ch, sub)

	return sub, nil
}

func (s *EventStore) pump(ctx context.Context, conn *pgxpool.Conn, from evently.Position, ch chan evently.Record, sub *evently.Subscription[evently.Record]) {
	defer close(ch)

	cursor := from
	emit := func() error {
		records, end, err := s.Read(ctx, cursor)
		if err != nil {
			return err
		}
		for _, rec := range records {
			select {
			case ch <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		cursor = end
		return nil
	}

	if err := emit(); err != nil {
		sub.Fail(err)
		return
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				sub.Fail(err)
				return
			}
			sub.Fail(&evently.ConnectionError{Operation: evently.OpSubscribe, Cause: err, Retryable: true})
			return
		}
		if notification.Payload != string(cursor.StreamID) {
			continue
		}
		if err := emit(); err != nil {
			sub.Fail(err)
			return
		}
	}
}

func (s *EventStore) SaveSnapshot(ctx context.Context, streamID evently.StreamID, eventNumber evently.EventNumber, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return &evently.SnapshotError{StreamID: streamID, Cause: err}
	}
	_, err = s.pool.Exec(
		ctx,
		`INSERT INTO snapshots (stream_id, event_number, state, at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (stream_id) DO UPDATE
		 SET event_number = EXCLUDED.event_number,
		     state = EXCLUDED.state,
		     at = EXCLUDED.at`,
		string(streamID), int64(eventNumber), data,
	)
	if err != nil {
		return &evently.SnapshotError{StreamID: streamID, Cause: err}
	}
	return nil
}

func (s *EventStore) LoadSnapshot(ctx context.Context, streamID evently.StreamID) (evently.Snapshot, error) {
	row := s.pool.QueryRow(
		ctx,
		`SELECT event_number, state, at FROM snapshots WHERE stream_id = $1`,
		string(streamID),
	)

	var (
		eventNumber int64
		raw         []byte
		at          time.Time
	)
	if err := row.Scan(&eventNumber, &raw, &at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evently.Snapshot{Found: false}, nil
		}
		return evently.Snapshot{}, &evently.SnapshotError{StreamID: streamID, Cause: err}
	}

	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return evently.Snapshot{}, &evently.SnapshotError{StreamID: streamID, Cause: err}
	}

	return evently.Snapshot{State: state, EventNumber: evently.EventNumber(eventNumber), Found: true, At: at}, nil
}

var _ evently.SnapshotStore = (*EventStore)(nil)
