package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/heatlock/internal/metrics"
	"github.com/lox/heatlock/internal/models"
)

const climateFTPHost = "tgftp.nws.noaa.gov:21"

// ClimateClient retrieves the NWS daily climate (CLI) text product over FTP.
// The CLI report carries the official maximum the market settles on, so when
// it confirms a value the API sources only implied, that value is as good as
// settled. Issued a few times a day; cities without a product path are
// skipped.
type ClimateClient struct {
	host string
}

func NewClimateClient() *ClimateClient {
	return &ClimateClient{host: climateFTPHost}
}

// FetchDailyMax retrieves and parses the city's CLI product. Returns nil if
// the city has no product configured or the report carries no maximum yet.
func (c *ClimateClient) FetchDailyMax(city models.City) (*models.Reading, error) {
	if city.ClimatePath == "" {
		return nil, nil
	}

	start := time.Now()
	body, err := c.retrieve(city.ClimatePath)
	metrics.SourceLatency.WithLabelValues("cli").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceCallsTotal.WithLabelValues("cli", city.StationID, "error").Inc()
		return nil, fmt.Errorf("cli %s: %w", city.Key, err)
	}
	metrics.SourceCallsTotal.WithLabelValues("cli", city.StationID, "ok").Inc()

	maxF, ok := ParseClimateMax(string(body))
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	return &models.Reading{
		Source:     "cli",
		StationID:  city.StationID,
		City:       city.Key,
		TempF:      maxF,
		ObservedAt: now,
		FetchedAt:  now,
	}, nil
}

func (c *ClimateClient) retrieve(path string) ([]byte, error) {
	conn, err := ftp.Dial(c.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// climateMaxLine matches the temperature section's MAXIMUM row, e.g.
// "  MAXIMUM         95    228 PM" or "  MAXIMUM        -4R   1151 AM".
var climateMaxLine = regexp.MustCompile(`(?m)^\s*MAXIMUM\s+(-?\d+)`)

// ParseClimateMax extracts the reported maximum temperature (°F) from a CLI
// product body. Only the TODAY section is considered; reports that have
// rolled over to YESTERDAY describe the prior day and are ignored.
func ParseClimateMax(body string) (float64, bool) {
	upper := strings.ToUpper(body)

	// After midnight the product reports under a YESTERDAY heading; that
	// maximum belongs to the prior trading day and must be ignored.
	idx := strings.Index(upper, "TEMPERATURE (F)")
	if idx < 0 {
		return 0, false
	}
	section := upper[idx:]
	if y := strings.Index(section, "YESTERDAY"); y >= 0 {
		m := strings.Index(section, "MAXIMUM")
		if m < 0 || y < m {
			return 0, false
		}
	}

	m := climateMaxLine.FindStringSubmatch(section)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
