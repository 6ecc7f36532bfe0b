package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/lox/heatlock/internal/models"
)

// OrderResult reports the outcome of placing an order.
type OrderResult struct {
	OrderID   string
	Price     float64 // dollars per contract
	Filled    int
	Simulated bool
}

// Order is a buy request for one side of a market at a limit price.
type Order struct {
	Ticker     string
	Side       models.Side
	Count      int
	PriceCents int // 1-99
	Paper      bool
}

// PlaceOrder submits a limit buy. Paper orders are acknowledged locally
// without touching the exchange and report a fill at the limit price.
func (c *Client) PlaceOrder(ctx context.Context, o Order) (*OrderResult, error) {
	if o.PriceCents < 1 || o.PriceCents > 99 {
		return nil, fmt.Errorf("order %s: price %d¢ out of range", o.Ticker, o.PriceCents)
	}
	if o.Paper {
		log.Printf("paper order: %s %dx %s @ %d¢", o.Side, o.Count, o.Ticker, o.PriceCents)
		return &OrderResult{
			OrderID:   "paper-" + o.Ticker,
			Price:     float64(o.PriceCents) / 100.0,
			Filled:    o.Count,
			Simulated: true,
		}, nil
	}

	payload := map[string]any{
		"ticker": o.Ticker,
		"action": "buy",
		"side":   string(o.Side),
		"type":   "limit",
		"count":  o.Count,
	}
	if o.Side == models.SideYes {
		payload["yes_price"] = o.PriceCents
	} else {
		payload["no_price"] = o.PriceCents
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("order %s: marshal: %w", o.Ticker, err)
	}

	// One attempt, no retry: resubmitting an order that may have reached the
	// exchange risks a duplicate fill.
	path := apiPrefix + "/portfolio/orders"
	data, err := c.attempt(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.Ticker, err)
	}

	var resp struct {
		Order struct {
			OrderID      string `json:"order_id"`
			AvgFillPrice *int   `json:"avg_fill_price"` // cents
			FilledCount  int    `json:"filled_count"`
		} `json:"order"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("order %s: unmarshal: %w", o.Ticker, err)
	}

	price := float64(o.PriceCents) / 100.0
	if resp.Order.AvgFillPrice != nil {
		price = float64(*resp.Order.AvgFillPrice) / 100.0
	}
	return &OrderResult{
		OrderID: resp.Order.OrderID,
		Price:   price,
		Filled:  resp.Order.FilledCount,
	}, nil
}
