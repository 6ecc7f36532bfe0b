package bot

import (
	"context"
	"testing"
	"time"

	"github.com/lox/heatlock/internal/aggregate"
	"github.com/lox/heatlock/internal/config"
	"github.com/lox/heatlock/internal/kalshi"
	"github.com/lox/heatlock/internal/models"
	"github.com/lox/heatlock/internal/notify"
	"github.com/lox/heatlock/internal/risk"
)

var testCity = models.City{
	Key: "nyc", Name: "New York City", SeriesTicker: "KXHIGHNY",
	StationID: "KNYC", MetarID: "KNYC", Timezone: "America/New_York",
}

type fakeExchange struct {
	snaps   []models.Snapshot
	balance float64
	orders  []kalshi.Order
}

func (f *fakeExchange) GetWeatherMarkets(ctx context.Context, city models.City, now time.Time) ([]models.Snapshot, error) {
	return f.snaps, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, o kalshi.Order) (*kalshi.OrderResult, error) {
	f.orders = append(f.orders, o)
	return &kalshi.OrderResult{
		OrderID:   "paper-" + o.Ticker,
		Price:     float64(o.PriceCents) / 100.0,
		Filled:    o.Count,
		Simulated: true,
	}, nil
}

func (f *fakeExchange) GetBalance(ctx context.Context) (float64, error) {
	return f.balance, nil
}

type fakeLatest struct {
	reading *models.Reading
}

func (f *fakeLatest) FetchLatest(ctx context.Context, city models.City) (*models.Reading, error) {
	return f.reading, nil
}

func testConfig() config.Config {
	return config.Config{
		Mode:             "paper",
		Cities:           []string{"nyc"},
		MaxPositionUSD:   50,
		MaxContracts:     50,
		MinEdge:          0.03,
		BufferAboveF:     0,
		BufferBelowF:     0.5,
		BufferBetweenF:   0.5,
		Staleness:        90 * time.Minute,
		MinPlausibleF:    -50,
		MaxPlausibleF:    140,
		LossLimit:        0.5,
		PollInterval:     5 * time.Minute,
		PeakPollInterval: time.Minute,
		PaperBalance:     1000,
	}
}

func newTestBot(t *testing.T, cfg config.Config, ex *fakeExchange, sources Sources) *Bot {
	t.Helper()
	agg, err := aggregate.New(aggregate.Config{
		MinPlausibleF: cfg.MinPlausibleF,
		MaxPlausibleF: cfg.MaxPlausibleF,
		Staleness:     cfg.Staleness,
	}, []models.City{testCity})
	if err != nil {
		t.Fatalf("aggregate.New: %v", err)
	}
	guard := risk.NewGuard(cfg.LossLimit, risk.NewSession(cfg.PaperBalance))
	return New(cfg, []models.City{testCity}, agg, guard, ex, sources, nil, notify.New(""))
}

func TestCycleExecutesCertainMarket(t *testing.T) {
	now := time.Date(2026, 7, 14, 19, 0, 0, 0, time.UTC) // 15:00 in New York

	ex := &fakeExchange{snaps: []models.Snapshot{{
		Ticker: "KXHIGHNY-26JUL14-B85", City: "nyc",
		Title: "Highest temperature in NYC on Jul 14, 2026", Subtitle: "85°F or above",
		Kind: models.KindAbove, LowF: 85,
		YesAsk: 0.45, NoAsk: 0.60,
	}}}
	reading := &models.Reading{
		Source: "metar", StationID: "KNYC", City: "nyc",
		TempF: 86.0, ObservedAt: now.Add(-10 * time.Minute), FetchedAt: now,
	}
	b := newTestBot(t, testConfig(), ex, Sources{METAR: &fakeLatest{reading: reading}})

	b.Cycle(context.Background(), now)

	if len(ex.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(ex.orders))
	}
	o := ex.orders[0]
	if o.Side != models.SideYes || o.PriceCents != 45 {
		t.Errorf("order = %+v", o)
	}
	if !o.Paper {
		t.Error("paper mode placed a live order")
	}
	// floor(50 / 0.45) = 111, capped at 50 contracts.
	if o.Count != 50 {
		t.Errorf("contracts = %d, want 50", o.Count)
	}

	s := b.guard.Session()
	if !s.Traded["KXHIGHNY-26JUL14-B85"] {
		t.Error("ticker not marked traded")
	}
	if want := 1000 - 22.50; s.Balance != want {
		t.Errorf("balance = %v, want %v", s.Balance, want)
	}
}

func TestCycleDeduplicatesAcrossCycles(t *testing.T) {
	now := time.Date(2026, 7, 14, 19, 0, 0, 0, time.UTC)

	ex := &fakeExchange{snaps: []models.Snapshot{{
		Ticker: "KXHIGHNY-26JUL14-B85", City: "nyc",
		Kind: models.KindAbove, LowF: 85, YesAsk: 0.45, NoAsk: 0.60,
	}}}
	reading := &models.Reading{
		Source: "metar", StationID: "KNYC", City: "nyc",
		TempF: 86.0, ObservedAt: now.Add(-10 * time.Minute), FetchedAt: now,
	}
	b := newTestBot(t, testConfig(), ex, Sources{METAR: &fakeLatest{reading: reading}})

	b.Cycle(context.Background(), now)
	b.Cycle(context.Background(), now.Add(time.Minute))

	if len(ex.orders) != 1 {
		t.Errorf("orders = %d, want 1 (second cycle must be vetoed as duplicate)", len(ex.orders))
	}
}

func TestCycleSkipsUncertainMarket(t *testing.T) {
	now := time.Date(2026, 7, 14, 19, 0, 0, 0, time.UTC)

	ex := &fakeExchange{snaps: []models.Snapshot{{
		Ticker: "KXHIGHNY-26JUL14-B85", City: "nyc",
		Kind: models.KindAbove, LowF: 85, YesAsk: 0.45, NoAsk: 0.60,
	}}}
	reading := &models.Reading{
		Source: "metar", StationID: "KNYC", City: "nyc",
		TempF: 84.9, ObservedAt: now.Add(-10 * time.Minute), FetchedAt: now,
	}
	b := newTestBot(t, testConfig(), ex, Sources{METAR: &fakeLatest{reading: reading}})

	b.Cycle(context.Background(), now)

	if len(ex.orders) != 0 {
		t.Errorf("orders = %d, want 0", len(ex.orders))
	}
}

func TestCycleSkipsMarketsWithoutReadings(t *testing.T) {
	now := time.Date(2026, 7, 14, 19, 0, 0, 0, time.UTC)

	ex := &fakeExchange{snaps: []models.Snapshot{{
		Ticker: "KXHIGHNY-26JUL14-B85", City: "nyc",
		Kind: models.KindAbove, LowF: 85, YesAsk: 0.45, NoAsk: 0.60,
	}}}
	b := newTestBot(t, testConfig(), ex, Sources{})

	b.Cycle(context.Background(), now)

	if len(ex.orders) != 0 {
		t.Errorf("orders = %d, want 0 (no readings, nothing is certain)", len(ex.orders))
	}
}

func TestCycleTrippedBreakerBlocksTrades(t *testing.T) {
	now := time.Date(2026, 7, 14, 19, 0, 0, 0, time.UTC)

	ex := &fakeExchange{snaps: []models.Snapshot{{
		Ticker: "KXHIGHNY-26JUL14-B85", City: "nyc",
		Kind: models.KindAbove, LowF: 85, YesAsk: 0.45, NoAsk: 0.60,
	}}}
	reading := &models.Reading{
		Source: "metar", StationID: "KNYC", City: "nyc",
		TempF: 86.0, ObservedAt: now.Add(-10 * time.Minute), FetchedAt: now,
	}
	b := newTestBot(t, testConfig(), ex, Sources{METAR: &fakeLatest{reading: reading}})

	// 60% loss trips the breaker before the scan.
	b.guard.SetBalance(400)

	b.Cycle(context.Background(), now)

	if len(ex.orders) != 0 {
		t.Errorf("orders = %d, want 0 (breaker tripped)", len(ex.orders))
	}
}

func TestIntervalPeakHours(t *testing.T) {
	ex := &fakeExchange{}
	b := newTestBot(t, testConfig(), ex, Sources{})

	// 15:00 in New York is peak.
	peak := time.Date(2026, 7, 14, 19, 0, 0, 0, time.UTC)
	if got := b.interval(peak); got != time.Minute {
		t.Errorf("interval at peak = %v, want 1m", got)
	}

	// 05:00 in New York is off-peak.
	off := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	if got := b.interval(off); got != 5*time.Minute {
		t.Errorf("interval off-peak = %v, want 5m", got)
	}
}
