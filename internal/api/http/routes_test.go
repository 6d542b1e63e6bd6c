package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"pws-historial/internal/collector"
	"pws-historial/internal/config"
	"pws-historial/internal/store"
	"pws-historial/internal/wunderground"
)

type mockFetcher struct {
	resp *wunderground.HistoryResponse
	err  error
}

func (m *mockFetcher) DailyHistory(ctx context.Context, stationID, dateYYYYMMDD string) (*wunderground.HistoryResponse, error) {
	return m.resp, m.err
}

type mockStore struct {
	rows       map[string]json.RawMessage // "stationID|obsDateISO" -> payload
	upsertErr  error
	getErr     error
	upsertKeys []string
}

func storeKey(stationID, obsDateISO string) string { return stationID + "|" + obsDateISO }

func (m *mockStore) UpsertObservation(ctx context.Context, stationID, obsDateISO string, payload json.RawMessage) (int64, error) {
	m.upsertKeys = append(m.upsertKeys, storeKey(stationID, obsDateISO))
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	if m.rows == nil {
		m.rows = make(map[string]json.RawMessage)
	}
	m.rows[storeKey(stationID, obsDateISO)] = payload
	return 1, nil
}

func (m *mockStore) GetObservation(ctx context.Context, stationID, obsDateISO string) (json.RawMessage, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	payload, ok := m.rows[storeKey(stationID, obsDateISO)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return payload, nil
}

type mockCollector struct {
	res collector.Result
	err error
}

func (m *mockCollector) Run(ctx context.Context) (collector.Result, error) {
	return m.res, m.err
}

func newTestApp(cfg *config.Config, f Fetcher, st store.Store, coll Collector) *fiber.App {
	app := fiber.New()
	app.Use(NoCache())
	RegisterRoutes(app, cfg, f, st, coll)
	return app
}

func doGet(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestHealth(t *testing.T) {
	app := newTestApp(&config.Config{}, &mockFetcher{}, &mockStore{}, &mockCollector{})
	resp := doGet(t, app, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if b := body(t, resp); !strings.Contains(b, `"ok":true`) {
		t.Errorf("body = %q, want ok:true", b)
	}
}

func TestHistoryRedirectPreservesQuery(t *testing.T) {
	app := newTestApp(&config.Config{}, &mockFetcher{}, &mockStore{}, &mockCollector{})
	resp := doGet(t, app, "/history?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/api/wu/history?") {
		t.Fatalf("Location = %q, want /api/wu/history prefix", loc)
	}
	if !strings.Contains(loc, "stationId=IALFAR32") || !strings.Contains(loc, "date=20240115") {
		t.Errorf("Location = %q lost query parameters", loc)
	}
}

func TestHistoryValidation(t *testing.T) {
	cfg := &config.Config{APIKey: "k"} // no default station
	app := newTestApp(cfg, &mockFetcher{}, &mockStore{}, &mockCollector{})

	resp := doGet(t, app, "/api/wu/history?date=20240115")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing stationId: status = %d, want 400", resp.StatusCode)
	}

	resp = doGet(t, app, "/api/wu/history?stationId=IALFAR32&date=2024011")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("7-char date: status = %d, want 400", resp.StatusCode)
	}

	resp = doGet(t, app, "/api/wu/history?stationId=IALFAR32")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing date: status = %d, want 400", resp.StatusCode)
	}
}

func TestHistoryDefaultStation(t *testing.T) {
	cfg := &config.Config{APIKey: "k", DefaultStation: "IDEFAULT"}
	st := &mockStore{}
	fetcher := &mockFetcher{resp: &wunderground.HistoryResponse{
		StatusCode: http.StatusOK,
		Raw:        []byte(`{}`),
		Payload:    json.RawMessage(`{}`),
	}}
	app := newTestApp(cfg, fetcher, st, &mockCollector{})

	resp := doGet(t, app, "/api/wu/history?date=20240115")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(st.upsertKeys) != 1 || st.upsertKeys[0] != "IDEFAULT|2024-01-15" {
		t.Errorf("upserts = %v, want the default station with ISO date", st.upsertKeys)
	}
}

func TestHistoryMissingCredential(t *testing.T) {
	app := newTestApp(&config.Config{}, &mockFetcher{}, &mockStore{}, &mockCollector{})
	resp := doGet(t, app, "/api/wu/history?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHistoryUnparseablePassthrough(t *testing.T) {
	raw := "<html>403 Forbidden</html>"
	cfg := &config.Config{APIKey: "k"}
	st := &mockStore{}
	fetcher := &mockFetcher{resp: &wunderground.HistoryResponse{
		StatusCode: http.StatusForbidden,
		Raw:        []byte(raw),
	}}
	app := newTestApp(cfg, fetcher, st, &mockCollector{})

	resp := doGet(t, app, "/api/wu/history?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want upstream 403", resp.StatusCode)
	}
	if b := body(t, resp); b != raw {
		t.Errorf("body = %q, want exact upstream bytes %q", b, raw)
	}
	if len(st.upsertKeys) != 0 {
		t.Errorf("no storage write may happen for an unparseable body, got %v", st.upsertKeys)
	}
}

func TestHistoryPersistsAndEchoes(t *testing.T) {
	payload := `{"observations":[{"stationID":"IALFAR32"}]}`
	cfg := &config.Config{APIKey: "k"}
	st := &mockStore{}
	fetcher := &mockFetcher{resp: &wunderground.HistoryResponse{
		StatusCode: http.StatusOK,
		Raw:        []byte(payload),
		Payload:    json.RawMessage(payload),
	}}
	app := newTestApp(cfg, fetcher, st, &mockCollector{})

	resp := doGet(t, app, "/api/wu/history?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if b := body(t, resp); b != payload {
		t.Errorf("body = %q, want upstream payload", b)
	}
	if got, ok := st.rows["IALFAR32|2024-01-15"]; !ok || string(got) != payload {
		t.Errorf("stored rows = %v, want payload under normalized ISO date", st.rows)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store on API routes", cc)
	}
}

func TestHistorySwallowsWriteFailure(t *testing.T) {
	payload := `{"observations":[]}`
	cfg := &config.Config{APIKey: "k"}
	st := &mockStore{upsertErr: errors.New("connection reset")}
	fetcher := &mockFetcher{resp: &wunderground.HistoryResponse{
		StatusCode: http.StatusOK,
		Raw:        []byte(payload),
		Payload:    json.RawMessage(payload),
	}}
	app := newTestApp(cfg, fetcher, st, &mockCollector{})

	resp := doGet(t, app, "/api/wu/history?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite write failure", resp.StatusCode)
	}
	if b := body(t, resp); b != payload {
		t.Errorf("body = %q, response must reflect upstream, not storage", b)
	}
}

func TestHistoryUpstreamTransportError(t *testing.T) {
	cfg := &config.Config{APIKey: "k"}
	fetcher := &mockFetcher{err: errors.New("dial tcp: connection refused")}
	app := newTestApp(cfg, fetcher, &mockStore{}, &mockCollector{})

	resp := doGet(t, app, "/api/wu/history?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if b := body(t, resp); !strings.Contains(b, "connection refused") {
		t.Errorf("body = %q, want the underlying detail", b)
	}
}

func TestLookupValidationAndNotFound(t *testing.T) {
	app := newTestApp(&config.Config{}, &mockFetcher{}, &mockStore{}, &mockCollector{})

	resp := doGet(t, app, "/api/db/daily?stationId=IALFAR32")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing date: status = %d, want 400", resp.StatusCode)
	}

	resp = doGet(t, app, "/api/db/daily?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if b := body(t, resp); !strings.Contains(b, "No encontrado") {
		t.Errorf("body = %q, want the No encontrado message", b)
	}
}

func TestLookupAcceptsBothDateForms(t *testing.T) {
	payload := json.RawMessage(`{"observations":[1]}`)
	st := &mockStore{rows: map[string]json.RawMessage{"IALFAR32|2024-01-15": payload}}
	app := newTestApp(&config.Config{}, &mockFetcher{}, st, &mockCollector{})

	for _, date := range []string{"20240115", "2024-01-15"} {
		resp := doGet(t, app, "/api/db/daily?stationId=IALFAR32&date="+date)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("date %q: status = %d, want 200", date, resp.StatusCode)
		}
		if b := body(t, resp); b != string(payload) {
			t.Errorf("date %q: body = %q, want stored payload", date, b)
		}
	}
}

func TestLookupReadError(t *testing.T) {
	st := &mockStore{getErr: errors.New("db down")}
	app := newTestApp(&config.Config{}, &mockFetcher{}, st, &mockCollector{})

	resp := doGet(t, app, "/api/db/daily?stationId=IALFAR32&date=20240115")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if b := body(t, resp); !strings.Contains(b, "db down") {
		t.Errorf("body = %q, want the underlying detail", b)
	}
}

func TestCronDaily(t *testing.T) {
	ok := collector.Result{Attempted: 2, Succeeded: 1, Failed: 1}
	app := newTestApp(&config.Config{}, &mockFetcher{}, &mockStore{}, &mockCollector{res: ok})

	resp := doGet(t, app, "/cron/daily")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	b := body(t, resp)
	if !strings.Contains(b, `"ok":true`) || !strings.Contains(b, `"attempted":2`) {
		t.Errorf("body = %q, want ok:true with the collection report", b)
	}

	app = newTestApp(&config.Config{}, &mockFetcher{}, &mockStore{}, &mockCollector{err: errors.New("todo falló")})
	resp = doGet(t, app, "/cron/daily")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if b := body(t, resp); !strings.Contains(b, `"ok":false`) {
		t.Errorf("body = %q, want ok:false", b)
	}
}
