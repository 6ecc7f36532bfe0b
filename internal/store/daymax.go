package store

import (
	"database/sql"

	"github.com/lox/heatlock/internal/models"
)

// UpsertDayMax writes the current daily max for a city. The primary key on
// (city, day_start) preserves one row per local day, so history survives the
// midnight rollover.
func (s *Store) UpsertDayMax(m models.DayMax) error {
	_, err := s.db.Exec(`
		INSERT INTO day_maxes (city, day_start, max_f, max_observed_at, source, last_update_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(city, day_start) DO UPDATE SET
			max_f = excluded.max_f,
			max_observed_at = excluded.max_observed_at,
			source = excluded.source,
			last_update_at = excluded.last_update_at
	`, m.City, m.DayStart.UTC(), m.Max, m.MaxObservedAt.UTC(), m.Source, m.LastUpdateAt.UTC())
	return err
}

// GetLatestDayMax returns the most recent recorded day max for a city, or
// nil if none exists.
func (s *Store) GetLatestDayMax(city string) (*models.DayMax, error) {
	row := s.db.QueryRow(`
		SELECT city, day_start, max_f, max_observed_at, source, last_update_at
		FROM day_maxes
		WHERE city = ?
		ORDER BY day_start DESC
		LIMIT 1
	`, city)

	var m models.DayMax
	err := row.Scan(&m.City, &m.DayStart, &m.Max, &m.MaxObservedAt, &m.Source, &m.LastUpdateAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
