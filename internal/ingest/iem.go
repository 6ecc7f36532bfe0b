package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lox/heatlock/internal/httputil"
	"github.com/lox/heatlock/internal/metrics"
	"github.com/lox/heatlock/internal/models"
)

const iemAPIBase = "https://mesonet.agron.iastate.edu"

// IEMClient fetches ASOS observations from the Iowa Environmental Mesonet.
// Unlike the latest-only sources, IEM offers a lookback across the whole day,
// including SPECI observations between the hourly reports, so it is the
// source that catches a daily max the bot wasn't running for.
type IEMClient struct {
	client *http.Client
}

func NewIEMClient() *IEMClient {
	return &IEMClient{client: httputil.NewClient()}
}

// FetchSinceMidnight returns all observations for the city's station since
// local midnight. Observations carry their original timestamps; the fetch
// time is what staleness filtering considers, so a 6 AM reading fetched now
// is still usable for the daily max.
func (c *IEMClient) FetchSinceMidnight(ctx context.Context, city models.City, now time.Time) ([]models.Reading, error) {
	loc, err := time.LoadLocation(city.Timezone)
	if err != nil {
		return nil, fmt.Errorf("iem %s: load timezone: %w", city.Key, err)
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := midnight.UTC()
	end := now.UTC()

	// IEM wants the station code without the K prefix.
	station := strings.TrimPrefix(city.MetarID, "K")

	q := url.Values{}
	q.Set("station", station)
	q.Set("data", "tmpf")
	q.Set("year1", strconv.Itoa(start.Year()))
	q.Set("month1", strconv.Itoa(int(start.Month())))
	q.Set("day1", strconv.Itoa(start.Day()))
	q.Set("year2", strconv.Itoa(end.Year()))
	q.Set("month2", strconv.Itoa(int(end.Month())))
	q.Set("day2", strconv.Itoa(end.Day()))
	q.Set("tz", "Etc/UTC")
	q.Set("format", "onlycomma")
	q.Set("latlon", "no")
	q.Set("elev", "no")
	q.Set("missing", "empty")
	q.Set("trace", "empty")
	q.Set("direct", "no")

	fetchURL := fmt.Sprintf("%s/cgi-bin/request/asos.py?%s", iemAPIBase, q.Encode())

	startFetch := time.Now()
	body, err := fetchWithRetry(ctx, c.client, fetchURL, map[string]string{"Accept": "text/plain"})
	metrics.SourceLatency.WithLabelValues("iem").Observe(time.Since(startFetch).Seconds())
	if err != nil {
		metrics.SourceCallsTotal.WithLabelValues("iem", city.MetarID, "error").Inc()
		return nil, fmt.Errorf("iem %s: %w", city.MetarID, err)
	}
	metrics.SourceCallsTotal.WithLabelValues("iem", city.MetarID, "ok").Inc()

	fetchedAt := time.Now().UTC()
	readings := ParseIEMCSV(string(body), city, fetchedAt)

	// Keep only observations belonging to today in the city's timezone; the
	// date-bounded query can include a tail of yesterday.
	var today []models.Reading
	for _, r := range readings {
		o := r.ObservedAt.In(loc)
		if o.Year() == local.Year() && o.YearDay() == local.YearDay() {
			today = append(today, r)
		}
	}
	return today, nil
}

// ParseIEMCSV parses the "onlycomma" ASOS response: a header line followed by
// station,valid,tmpf rows. Rows with missing temperatures are skipped.
func ParseIEMCSV(body string, city models.City, fetchedAt time.Time) []models.Reading {
	var readings []models.Reading

	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		tempStr := strings.TrimSpace(parts[2])
		if tempStr == "" {
			continue
		}
		temp, err := strconv.ParseFloat(tempStr, 64)
		if err != nil {
			continue
		}
		observedAt, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(parts[1]), time.UTC)
		if err != nil {
			continue
		}
		readings = append(readings, models.Reading{
			Source:     "iem",
			StationID:  city.MetarID,
			City:       city.Key,
			TempF:      temp,
			ObservedAt: observedAt,
			FetchedAt:  fetchedAt,
		})
	}
	return readings
}
