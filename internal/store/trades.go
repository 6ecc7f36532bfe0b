package store

import (
	"time"

	"github.com/lox/heatlock/internal/models"
)

func (s *Store) InsertTrade(t models.Trade) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO trades (ticker, city, side, contracts, price_cents, cost, edge, max_temp_f, kind, mode, order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Ticker, t.City, string(t.Side), t.Contracts, t.PriceCents, t.Cost, t.Edge, t.MaxTempF, string(t.Kind), t.Mode, t.OrderID, t.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListTrades(since time.Time) ([]models.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, city, side, contracts, price_cents, cost, edge, max_temp_f, kind, mode, order_id, created_at
		FROM trades
		WHERE created_at >= ?
		ORDER BY created_at ASC
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var side, kind string
		if err := rows.Scan(&t.ID, &t.Ticker, &t.City, &side, &t.Contracts, &t.PriceCents, &t.Cost, &t.Edge, &t.MaxTempF, &kind, &t.Mode, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Side = models.Side(side)
		t.Kind = models.MarketKind(kind)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// TradedTickers returns the tickers already traded since the given time.
// Used to rebuild dedup state after a restart.
func (s *Store) TradedTickers(since time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT ticker FROM trades WHERE created_at >= ?`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickers := make(map[string]bool)
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		tickers[ticker] = true
	}
	return tickers, rows.Err()
}
