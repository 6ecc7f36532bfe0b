package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lox/heatlock/internal/metrics"
	"github.com/lox/heatlock/internal/models"
)

type marketsResponse struct {
	Markets []rawMarket `json:"markets"`
}

type rawMarket struct {
	Ticker         string `json:"ticker"`
	Status         string `json:"status"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	YesBid         *int   `json:"yes_bid"` // cents
	YesAsk         *int   `json:"yes_ask"`
	NoBid          *int   `json:"no_bid"`
	NoAsk          *int   `json:"no_ask"`
	Volume         int    `json:"volume"`
	OpenInterest   int    `json:"open_interest"`
	ExpirationTime string `json:"expiration_time"`
}

// GetWeatherMarkets fetches the active daily-high markets for the city's
// series and returns snapshots for today's event only. Markets whose
// threshold cannot be parsed from the title are skipped.
func (c *Client) GetWeatherMarkets(ctx context.Context, city models.City, now time.Time) ([]models.Snapshot, error) {
	loc, err := time.LoadLocation(city.Timezone)
	if err != nil {
		return nil, fmt.Errorf("markets %s: load timezone: %w", city.Key, err)
	}
	today := now.In(loc)

	path := apiPrefix + "/markets"
	q := url.Values{}
	q.Set("series_ticker", city.SeriesTicker)
	q.Set("limit", "100")

	data, err := c.do(ctx, http.MethodGet, path, q.Encode(), nil)
	metrics.KalshiCallsTotal.WithLabelValues("markets", status(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("markets %s: %w", city.SeriesTicker, err)
	}

	var resp marketsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("markets %s: unmarshal: %w", city.SeriesTicker, err)
	}

	var snaps []models.Snapshot
	for _, m := range resp.Markets {
		if m.Status != "active" {
			continue
		}
		expiry, err := time.Parse(time.RFC3339, m.ExpirationTime)
		if err != nil {
			continue
		}

		// Daily-high markets settle days after the event, so the expiry
		// alone can't tell today's contract apart. The event date lives in
		// the title, e.g. "Highest temperature in NYC on Jul 14, 2026".
		eventDate, ok := parseEventDate(m.Title, today.Year())
		if !ok {
			continue
		}
		if eventDate.Year() != today.Year() || eventDate.Month() != today.Month() || eventDate.Day() != today.Day() {
			continue
		}

		low, high, kind, ok := parseThreshold(m.Title, m.Subtitle)
		if !ok {
			continue
		}

		snaps = append(snaps, models.Snapshot{
			Ticker:       m.Ticker,
			City:         city.Key,
			Title:        m.Title,
			Subtitle:     m.Subtitle,
			Kind:         kind,
			LowF:         low,
			HighF:        high,
			YesBid:       centsOr(m.YesBid, 0),
			YesAsk:       centsOr(m.YesAsk, 100),
			NoBid:        centsOr(m.NoBid, 0),
			NoAsk:        centsOr(m.NoAsk, 100),
			Volume:       m.Volume,
			OpenInterest: m.OpenInterest,
			Expiry:       expiry,
		})
	}
	return snaps, nil
}

// centsOr converts an optional cents price to dollars, defaulting missing
// values so an absent ask reads as unbuyable rather than free.
func centsOr(v *int, def int) float64 {
	if v == nil {
		return float64(def) / 100.0
	}
	return float64(*v) / 100.0
}

var (
	gtPattern      = regexp.MustCompile(`>(\d+)°?`)
	ltPattern      = regexp.MustCompile(`<(\d+)°?`)
	abovePattern   = regexp.MustCompile(`(\d+)\s*°?\s*f?\s*(?:or\s+)?(?:above|higher|more|at\s+least)`)
	belowPattern   = regexp.MustCompile(`(\d+)\s*°?\s*f?\s*(?:or\s+)?(?:below|lower|less|at\s+most)`)
	rangePattern   = regexp.MustCompile(`(\d+)\s*°?\s*f?\s*(?:to|-)\s*(\d+)\s*°?\s*f?`)
	numberPattern  = regexp.MustCompile(`(\d+)`)
	eventDateMatch = regexp.MustCompile(`on\s+(\w+)\s+(\d+),?\s*(\d{4})?`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseEventDate extracts the event date from a market title like
// "... on Jul 14, 2026". Titles without a year assume defaultYear.
func parseEventDate(title string, defaultYear int) (time.Time, bool) {
	m := eventDateMatch.FindStringSubmatch(strings.ToLower(title))
	if m == nil {
		return time.Time{}, false
	}
	monthStr := m[1]
	if len(monthStr) < 3 {
		return time.Time{}, false
	}
	month, ok := monthsByPrefix[monthStr[:3]]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := defaultYear
	if m[3] != "" {
		year, err = strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, false
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

// parseThreshold extracts the temperature boundary from a market's title and
// subtitle. Above markets carry a low bound, below markets a high bound,
// between markets both.
func parseThreshold(title, subtitle string) (low, high float64, kind models.MarketKind, ok bool) {
	text := strings.ToLower(title + " " + subtitle)

	if m := gtPattern.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return v, 0, models.KindAbove, true
	}
	if m := ltPattern.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return 0, v, models.KindBelow, true
	}
	if m := abovePattern.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return v, 0, models.KindAbove, true
	}
	if m := belowPattern.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return 0, v, models.KindBelow, true
	}
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		return lo, hi, models.KindBetween, true
	}

	// Last resort: a bare number with an explicit direction keyword.
	if m := numberPattern.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		switch {
		case strings.Contains(text, "above") || strings.Contains(text, "over") || strings.Contains(text, "higher"):
			return v, 0, models.KindAbove, true
		case strings.Contains(text, "below") || strings.Contains(text, "under") || strings.Contains(text, "lower"):
			return 0, v, models.KindBelow, true
		}
	}
	return 0, 0, "", false
}
