package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no observation exists for a station/date pair.
// Callers map it to a 404; it is a lookup outcome, not a storage failure.
var ErrNotFound = errors.New("no observation for station and date")

// Store is the contract the Postgres gateway (and any future persistent
// store) must satisfy.
type Store interface {
	// UpsertObservation inserts or replaces the payload for (stationID,
	// obsDateISO). Last writer wins; the unique constraint on the pair is
	// the only concurrency-correctness mechanism needed.
	UpsertObservation(ctx context.Context, stationID, obsDateISO string, payload json.RawMessage) (int64, error)

	// GetObservation returns the stored payload for (stationID, obsDateISO),
	// or ErrNotFound when no row matches.
	GetObservation(ctx context.Context, stationID, obsDateISO string) (json.RawMessage, error)
}
