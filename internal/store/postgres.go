package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// The table name carries over from the original deployment, space and all;
// renaming it would orphan existing data.
const (
	upsertObservationSQL = `INSERT INTO "observaciones diarias" (station_id, obs_date, payload)
VALUES ($1, $2, $3)
ON CONFLICT (station_id, obs_date)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	getObservationSQL = `SELECT payload FROM "observaciones diarias" WHERE station_id=$1 AND obs_date=$2`
)

// Postgres implements Store on top of a pooled database/sql connection.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres and verifies connectivity with a bounded ping.
func Open(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) UpsertObservation(ctx context.Context, stationID, obsDateISO string, payload json.RawMessage) (int64, error) {
	res, err := p.db.ExecContext(ctx, upsertObservationSQL, stationID, obsDateISO, []byte(payload))
	if err != nil {
		return 0, fmt.Errorf("upsert observation %s %s: %w", stationID, obsDateISO, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Postgres) GetObservation(ctx context.Context, stationID, obsDateISO string) (json.RawMessage, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, getObservationSQL, stationID, obsDateISO).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get observation %s %s: %w", stationID, obsDateISO, err)
	}
	return payload, nil
}
