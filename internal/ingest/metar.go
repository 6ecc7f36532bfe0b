package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/lox/heatlock/internal/httputil"
	"github.com/lox/heatlock/internal/metrics"
	"github.com/lox/heatlock/internal/models"
)

const metarAPIBase = "https://aviationweather.gov/api/data"

// METARClient fetches the latest aviation routine weather report for a
// station. METARs land a few minutes after the hour, so this is usually the
// freshest source available.
type METARClient struct {
	client *http.Client
}

func NewMETARClient() *METARClient {
	return &METARClient{client: httputil.NewClient()}
}

type metarReport struct {
	Temp    *float64 `json:"temp"` // celsius
	ObsTime *int64   `json:"obsTime"`
	RawOb   string   `json:"rawOb"`
}

func (c *METARClient) FetchLatest(ctx context.Context, city models.City) (*models.Reading, error) {
	url := fmt.Sprintf("%s/metar?ids=%s&format=json", metarAPIBase, city.MetarID)

	start := time.Now()
	body, err := fetchWithRetry(ctx, c.client, url, nil)
	metrics.SourceLatency.WithLabelValues("metar").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceCallsTotal.WithLabelValues("metar", city.MetarID, "error").Inc()
		return nil, fmt.Errorf("metar %s: %w", city.MetarID, err)
	}
	metrics.SourceCallsTotal.WithLabelValues("metar", city.MetarID, "ok").Inc()

	var reports []metarReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, fmt.Errorf("metar %s: unmarshal: %w", city.MetarID, err)
	}
	if len(reports) == 0 {
		return nil, nil
	}

	report := reports[0]
	tempC := report.Temp
	if tempC == nil {
		// Structured temp missing: fall back to the raw METAR group.
		if parsed, ok := ParseMETARTemp(report.RawOb); ok {
			tempC = &parsed
		}
	}
	if tempC == nil {
		return nil, nil
	}

	observedAt := time.Now().UTC()
	if report.ObsTime != nil {
		observedAt = time.Unix(*report.ObsTime, 0).UTC()
	}

	return &models.Reading{
		Source:     "metar",
		StationID:  city.MetarID,
		City:       city.Key,
		TempF:      celsiusToFahrenheit(*tempC),
		ObservedAt: observedAt,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// metarTempGroup matches the temperature/dewpoint group of a raw METAR,
// e.g. " 26/18 " or " M04/M09 " (M prefix marks negative).
var metarTempGroup = regexp.MustCompile(`\s(M?\d{2})/(M?\d{2})\s`)

// ParseMETARTemp extracts the temperature (°C) from a raw METAR string.
func ParseMETARTemp(raw string) (float64, bool) {
	m := metarTempGroup.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	s := m[1]
	neg := false
	if s[0] == 'M' {
		neg = true
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
