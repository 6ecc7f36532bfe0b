package aggregate

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lox/heatlock/internal/models"
)

// Rejection reasons. Rejected readings are dropped, never stored.
var (
	ErrImplausibleReading = errors.New("implausible reading")
	ErrStaleReading       = errors.New("stale reading")
	ErrUnknownCity        = errors.New("unknown city")
)

// Config bounds what the aggregator will accept.
type Config struct {
	MinPlausibleF float64       // default -50
	MaxPlausibleF float64       // default 140
	Staleness     time.Duration // default 90m, measured against FetchedAt
}

// DefaultConfig matches the historical variance of US station data: the
// plausibility band covers continental extremes, and 90 minutes allows for
// hourly observation cadence plus delay without accepting a dead station.
func DefaultConfig() Config {
	return Config{
		MinPlausibleF: -50,
		MaxPlausibleF: 140,
		Staleness:     90 * time.Minute,
	}
}

// Aggregator folds readings from multiple sources into one running daily
// maximum per city. It is owned by a single polling loop; it is not safe for
// concurrent writers.
type Aggregator struct {
	cfg   Config
	zones map[string]*time.Location // city key -> tz
	maxes map[string]*models.DayMax // city key -> current day state
}

// New builds an aggregator for the given cities. Timezones are resolved once
// here; an unresolvable zone is a configuration fault.
func New(cfg Config, cities []models.City) (*Aggregator, error) {
	zones := make(map[string]*time.Location, len(cities))
	for _, c := range cities {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("aggregate: load timezone %q for %s: %w", c.Timezone, c.Key, err)
		}
		zones[c.Key] = loc
	}
	return &Aggregator{
		cfg:   cfg,
		zones: zones,
		maxes: make(map[string]*models.DayMax),
	}, nil
}

// Ingest applies one reading. It returns the city's current DayMax (updated
// or not) on acceptance, or a rejection error. Readings at or below the
// tracked max are accepted but leave the state unchanged: a daily maximum
// only ratchets upward.
func (a *Aggregator) Ingest(r models.Reading, now time.Time) (*models.DayMax, error) {
	loc, ok := a.zones[r.City]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCity, r.City)
	}

	if r.TempF < a.cfg.MinPlausibleF || r.TempF > a.cfg.MaxPlausibleF {
		return nil, fmt.Errorf("%w: %.1f°F from %s/%s", ErrImplausibleReading, r.TempF, r.Source, r.StationID)
	}

	if age := now.Sub(r.FetchedAt); age > a.cfg.Staleness {
		return nil, fmt.Errorf("%w: %s/%s fetched %.0f mins ago (limit %.0f)",
			ErrStaleReading, r.Source, r.StationID, age.Minutes(), a.cfg.Staleness.Minutes())
	}

	dayStart := localMidnight(now, loc)

	state := a.maxes[r.City]
	if state == nil || !state.DayStart.Equal(dayStart) {
		// Midnight rollover: the new day's max is seeded from this reading,
		// never from yesterday's value.
		state = &models.DayMax{
			City:          r.City,
			DayStart:      dayStart,
			Max:           r.TempF,
			MaxObservedAt: r.ObservedAt,
			Source:        r.Source,
			LastUpdateAt:  now,
		}
		a.maxes[r.City] = state
		log.Printf("aggregate: %s new day %s, seeded max %.1f°F from %s",
			r.City, dayStart.Format("2006-01-02"), r.TempF, r.Source)
		return state, nil
	}

	if r.TempF > state.Max {
		log.Printf("aggregate: %s new high %.1f°F via %s (was %.1f°F)", r.City, r.TempF, r.Source, state.Max)
		state.Max = r.TempF
		state.MaxObservedAt = r.ObservedAt
		state.Source = r.Source
	}
	state.LastUpdateAt = now
	return state, nil
}

// Max returns the current daily maximum for a city, or false if no valid
// reading has arrived yet today. A DayMax left over from a prior day is never
// returned.
func (a *Aggregator) Max(city string, now time.Time) (models.DayMax, bool) {
	loc, ok := a.zones[city]
	if !ok {
		return models.DayMax{}, false
	}
	state := a.maxes[city]
	if state == nil || !state.DayStart.Equal(localMidnight(now, loc)) {
		return models.DayMax{}, false
	}
	return *state, true
}

// Snapshot returns a copy of every city's current-day state, for status
// reporting and persistence.
func (a *Aggregator) Snapshot(now time.Time) []models.DayMax {
	var out []models.DayMax
	for city := range a.maxes {
		if m, ok := a.Max(city, now); ok {
			out = append(out, m)
		}
	}
	return out
}

func localMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
