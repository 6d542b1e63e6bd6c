// Package wunderground is the client for the Weather Underground PWS
// daily-history endpoint on api.weather.com.
package wunderground

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const defaultBaseURL = "https://api.weather.com/v2/pws/history/all"

// HistoryResponse carries one upstream answer. Payload is set only when the
// body is valid JSON; Raw always holds the exact body bytes so callers can
// forward an unparseable upstream response verbatim.
type HistoryResponse struct {
	StatusCode int
	Raw        []byte
	Payload    json.RawMessage
}

// Client issues single, non-retried GETs for daily station history.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewClient(httpClient *http.Client, apiKey string) *Client {
	// The breaker only sees transport failures; upstream HTTP statuses pass
	// through it untouched so passthrough responses stay byte-exact.
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather.com",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httpClient,
		circuit: cb,
	}
}

// DailyHistory fetches the full observation document for one station and one
// calendar day (YYYYMMDD). It returns whatever upstream answered, success or
// not; the error return covers request construction and transport failures
// only.
func (c *Client) DailyHistory(ctx context.Context, stationID, dateYYYYMMDD string) (*HistoryResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("wunderground api key is not configured")
	}

	values := url.Values{}
	values.Set("stationId", stationID)
	values.Set("date", dateYYYYMMDD)
	values.Set("format", "json")
	values.Set("units", "m")
	values.Set("apiKey", c.apiKey)

	u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("weather.com request for %s %s: %w", stationID, dateYYYYMMDD, err)
	}
	resp := result.(*http.Response)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weather.com body for %s %s: %w", stationID, dateYYYYMMDD, err)
	}

	out := &HistoryResponse{StatusCode: resp.StatusCode, Raw: body}
	if json.Valid(body) {
		out.Payload = json.RawMessage(body)
	}
	return out, nil
}
