// Package collector runs the daily fetch-and-persist pass over the
// configured station list.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pws-historial/internal/common"
	"pws-historial/internal/wunderground"
)

// Fetcher is the slice of the upstream client the collector needs.
type Fetcher interface {
	DailyHistory(ctx context.Context, stationID, dateYYYYMMDD string) (*wunderground.HistoryResponse, error)
}

// Upserter is the slice of the persistence gateway the collector needs.
type Upserter interface {
	UpsertObservation(ctx context.Context, stationID, obsDateISO string, payload json.RawMessage) (int64, error)
}

// Success records one station that was fetched and persisted.
type Success struct {
	StationID string `json:"stationId"`
	Inserted  int64  `json:"inserted"`
}

// Failure records one station whose attempt failed, with the reason kept as
// data rather than raised.
type Failure struct {
	StationID string `json:"stationId"`
	Error     string `json:"error"`
}

// Details lists every per-station outcome of a run.
type Details struct {
	OK []Success `json:"ok"`
	KO []Failure `json:"ko"`
}

// Result is the aggregate report of one collection run.
type Result struct {
	Attempted int     `json:"attempted"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Details   Details `json:"details"`
}

// Service orchestrates the per-station fetch+upsert pairs.
type Service struct {
	stations []string
	fetcher  Fetcher
	store    Upserter
	now      func() time.Time
}

func NewService(stations []string, fetcher Fetcher, store Upserter) *Service {
	return &Service{
		stations: stations,
		fetcher:  fetcher,
		store:    store,
		now:      time.Now,
	}
}

type outcome struct {
	inserted int64
	err      error
}

// Run collects today's observation for every configured station. Today is
// resolved once, at the start of the run, so every station shares the same
// date even when the run straddles midnight.
//
// Stations settle independently: one station's failure never blocks or fails
// another's attempt. The run as a whole only errors when every station
// failed; partial success is success, with the failure detail preserved in
// the Result for the caller to log or alert on.
func (s *Service) Run(ctx context.Context) (Result, error) {
	now := s.now()
	dateWU := common.TodayCompact(now)
	dateISO := common.TodayISO(now)

	// One slot per station; disjoint writes, so no lock is needed for the
	// join and outcome order matches station order.
	outcomes := make([]outcome, len(s.stations))

	var wg sync.WaitGroup
	for i, stationID := range s.stations {
		wg.Add(1)
		go func(i int, stationID string) {
			defer wg.Done()
			inserted, err := s.collectStation(ctx, stationID, dateWU, dateISO)
			outcomes[i] = outcome{inserted: inserted, err: err}
		}(i, stationID)
	}
	wg.Wait()

	result := Result{Attempted: len(s.stations)}
	for i, stationID := range s.stations {
		if outcomes[i].err != nil {
			slog.Error("collect station failed", "stationId", stationID, "date", dateWU, "error", outcomes[i].err)
			result.Details.KO = append(result.Details.KO, Failure{StationID: stationID, Error: outcomes[i].err.Error()})
			continue
		}
		result.Details.OK = append(result.Details.OK, Success{StationID: stationID, Inserted: outcomes[i].inserted})
	}
	result.Succeeded = len(result.Details.OK)
	result.Failed = len(result.Details.KO)

	if result.Succeeded == 0 {
		ko, _ := json.Marshal(result.Details.KO)
		return result, fmt.Errorf("no se insertó nada. Errores: %s", ko)
	}
	return result, nil
}

func (s *Service) collectStation(ctx context.Context, stationID, dateWU, dateISO string) (int64, error) {
	resp, err := s.fetcher.DailyHistory(ctx, stationID, dateWU)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("weather.com %d", resp.StatusCode)
	}
	if resp.Payload == nil {
		return 0, fmt.Errorf("weather.com returned an unparseable body for %s %s", stationID, dateWU)
	}
	return s.store.UpsertObservation(ctx, stationID, dateISO, resp.Payload)
}
