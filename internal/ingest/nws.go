package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/heatlock/internal/httputil"
	"github.com/lox/heatlock/internal/metrics"
	"github.com/lox/heatlock/internal/models"
)

const nwsAPIBase = "https://api.weather.gov"

// NWSClient fetches the latest observation from the National Weather Service
// station API. NWS is the settlement authority for the markets, so its
// station reading is always worth having even though it lags a little.
type NWSClient struct {
	client *http.Client
}

func NewNWSClient() *NWSClient {
	return &NWSClient{client: httputil.NewClient()}
}

type nwsObservationResponse struct {
	Properties struct {
		Timestamp   string `json:"timestamp"`
		Temperature struct {
			Value *float64 `json:"value"` // celsius
		} `json:"temperature"`
	} `json:"properties"`
}

// FetchLatest returns the most recent observation for the city's settlement
// station, or nil if the station has no usable temperature right now.
func (c *NWSClient) FetchLatest(ctx context.Context, city models.City) (*models.Reading, error) {
	url := fmt.Sprintf("%s/stations/%s/observations/latest", nwsAPIBase, city.StationID)

	start := time.Now()
	body, err := fetchWithRetry(ctx, c.client, url, nil)
	metrics.SourceLatency.WithLabelValues("nws").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceCallsTotal.WithLabelValues("nws", city.StationID, "error").Inc()
		return nil, fmt.Errorf("nws %s: %w", city.StationID, err)
	}
	metrics.SourceCallsTotal.WithLabelValues("nws", city.StationID, "ok").Inc()

	var data nwsObservationResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("nws %s: unmarshal: %w", city.StationID, err)
	}

	if data.Properties.Temperature.Value == nil {
		return nil, nil
	}

	observedAt := time.Now().UTC()
	if ts := data.Properties.Timestamp; ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			observedAt = parsed
		}
	}

	return &models.Reading{
		Source:     "nws",
		StationID:  city.StationID,
		City:       city.Key,
		TempF:      celsiusToFahrenheit(*data.Properties.Temperature.Value),
		ObservedAt: observedAt,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// fetchWithRetry GETs a URL with exponential backoff on transient statuses.
// Client errors and transport failures are permanent: the poll loop will come
// around again soon enough.
func fetchWithRetry(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", httputil.UserAgent)
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
