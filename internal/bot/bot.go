// Package bot runs the polling loop: fetch observations, fold them into the
// per-city daily max, scan the markets, and execute on outcomes that are
// already locked.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/lox/heatlock/internal/aggregate"
	"github.com/lox/heatlock/internal/config"
	"github.com/lox/heatlock/internal/engine"
	"github.com/lox/heatlock/internal/kalshi"
	"github.com/lox/heatlock/internal/metrics"
	"github.com/lox/heatlock/internal/models"
	"github.com/lox/heatlock/internal/notify"
	"github.com/lox/heatlock/internal/risk"
	"github.com/lox/heatlock/internal/store"
)

// LatestSource fetches the most recent observation for a station.
type LatestSource interface {
	FetchLatest(ctx context.Context, city models.City) (*models.Reading, error)
}

// LookbackSource fetches all observations since local midnight.
type LookbackSource interface {
	FetchSinceMidnight(ctx context.Context, city models.City, now time.Time) ([]models.Reading, error)
}

// ClimateSource fetches the official daily climate report maximum.
type ClimateSource interface {
	FetchDailyMax(city models.City) (*models.Reading, error)
}

// Exchange is the market side: snapshots in, orders out.
type Exchange interface {
	GetWeatherMarkets(ctx context.Context, city models.City, now time.Time) ([]models.Snapshot, error)
	PlaceOrder(ctx context.Context, o kalshi.Order) (*kalshi.OrderResult, error)
	GetBalance(ctx context.Context) (float64, error)
}

// Sources groups the weather inputs. Any nil source is skipped, so a partial
// set still runs. CLI is polled on its own slower cadence.
type Sources struct {
	NWS     LatestSource
	METAR   LatestSource
	IEM     LookbackSource
	Climate ClimateSource
}

const climateInterval = 30 * time.Minute

type Bot struct {
	cfg       config.Config
	cities    []models.City
	zones     map[string]*time.Location
	agg       *aggregate.Aggregator
	evaluator *engine.Evaluator
	guard     *risk.Guard
	exchange  Exchange
	sources   Sources
	store     *store.Store
	notifier  *notify.Notifier

	statusSink      func(models.StatusReport)
	cycles          int
	lastClimatePoll time.Time
}

// SetStatusSink registers a receiver for the per-cycle status report.
func (b *Bot) SetStatusSink(sink func(models.StatusReport)) {
	b.statusSink = sink
}

func New(cfg config.Config, cities []models.City, agg *aggregate.Aggregator, guard *risk.Guard,
	exchange Exchange, sources Sources, st *store.Store, notifier *notify.Notifier) *Bot {
	zones := make(map[string]*time.Location, len(cities))
	for _, c := range cities {
		// Resolved successfully by the aggregator already.
		loc, _ := time.LoadLocation(c.Timezone)
		zones[c.Key] = loc
	}
	return &Bot{
		cfg:    cfg,
		cities: cities,
		zones:  zones,
		agg:    agg,
		evaluator: engine.NewEvaluator(engine.Buffers{
			AboveF:   cfg.BufferAboveF,
			BelowF:   cfg.BufferBelowF,
			BetweenF: cfg.BufferBetweenF,
		}, cfg.MinEdge),
		guard:    guard,
		exchange: exchange,
		sources:  sources,
		store:    st,
		notifier: notifier,
	}
}

// Run polls until the context is cancelled. The interval tightens during
// peak heating hours, when the daily max is most likely to move.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("bot: starting in %s mode, cities %v, min edge %.1f%%, breaker at %.0f%% loss",
		b.cfg.Mode, b.cfg.Cities, b.cfg.MinEdge*100, b.cfg.LossLimit*100)

	for {
		b.Cycle(ctx, time.Now().UTC())

		b.cycles++
		if b.cycles%5 == 0 {
			b.logStatus()
		}

		select {
		case <-ctx.Done():
			b.logStatus()
			return ctx.Err()
		case <-time.After(b.interval(time.Now().UTC())):
		}
	}
}

// Cycle runs one full scan: refresh balance, ingest weather, scan markets,
// trade. Errors are logged and contained per city; one bad source or city
// never stops the others.
func (b *Bot) Cycle(ctx context.Context, now time.Time) {
	if b.cfg.Mode == "live" {
		if balance, err := b.exchange.GetBalance(ctx); err != nil {
			log.Printf("bot: balance refresh failed: %v", err)
		} else {
			b.guard.SetBalance(balance)
		}
	}
	metrics.SessionBalance.Set(b.guard.Session().Balance)

	readings := b.collectReadings(ctx, now)
	for _, r := range readings {
		state, err := b.agg.Ingest(r, now)
		if err != nil {
			metrics.ReadingsRejected.WithLabelValues(r.City, rejectReason(err)).Inc()
			log.Printf("bot: dropped reading: %v", err)
			continue
		}
		metrics.ReadingsAccepted.WithLabelValues(r.City, r.Source).Inc()
		metrics.DailyMaxTemp.WithLabelValues(r.City).Set(state.Max)
		if b.store != nil {
			if err := b.store.UpsertDayMax(*state); err != nil {
				log.Printf("bot: persist day max for %s: %v", r.City, err)
			}
		}
	}

	for _, city := range b.cities {
		b.scanCity(ctx, city, now)
	}

	if b.statusSink != nil {
		s := b.guard.Session()
		b.statusSink(models.StatusReport{
			Mode:            b.cfg.Mode,
			Cycles:          b.cycles + 1,
			DayMaxes:        b.agg.Snapshot(now),
			Balance:         s.Balance,
			StartingBalance: s.StartingBalance,
			LossFraction:    s.LossFraction,
			Tripped:         s.Tripped,
			TradedMarkets:   len(s.Traded),
			UpdatedAt:       now,
		})
	}
}

// collectReadings fetches from every source for every city concurrently and
// returns the combined batch. The aggregator itself is only touched by the
// caller, on one goroutine.
func (b *Bot) collectReadings(ctx context.Context, now time.Time) []models.Reading {
	pollClimate := b.sources.Climate != nil && now.Sub(b.lastClimatePoll) >= climateInterval
	if pollClimate {
		b.lastClimatePoll = now
	}

	var mu sync.Mutex
	var readings []models.Reading
	add := func(batch ...models.Reading) {
		mu.Lock()
		readings = append(readings, batch...)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, city := range b.cities {
		if b.sources.NWS != nil {
			wg.Add(1)
			go func(city models.City) {
				defer wg.Done()
				if r, err := b.sources.NWS.FetchLatest(ctx, city); err != nil {
					log.Printf("bot: nws %s: %v", city.Key, err)
				} else if r != nil {
					add(*r)
				}
			}(city)
		}
		if b.sources.METAR != nil {
			wg.Add(1)
			go func(city models.City) {
				defer wg.Done()
				if r, err := b.sources.METAR.FetchLatest(ctx, city); err != nil {
					log.Printf("bot: metar %s: %v", city.Key, err)
				} else if r != nil {
					add(*r)
				}
			}(city)
		}
		if b.sources.IEM != nil {
			wg.Add(1)
			go func(city models.City) {
				defer wg.Done()
				if batch, err := b.sources.IEM.FetchSinceMidnight(ctx, city, now); err != nil {
					log.Printf("bot: iem %s: %v", city.Key, err)
				} else {
					add(batch...)
				}
			}(city)
		}
		if pollClimate {
			wg.Add(1)
			go func(city models.City) {
				defer wg.Done()
				if r, err := b.sources.Climate.FetchDailyMax(city); err != nil {
					log.Printf("bot: cli %s: %v", city.Key, err)
				} else if r != nil {
					add(*r)
				}
			}(city)
		}
	}
	wg.Wait()
	return readings
}

// scanCity evaluates every active market for one city against its daily max
// and executes the actionable ones.
func (b *Bot) scanCity(ctx context.Context, city models.City, now time.Time) {
	dayMax, ok := b.agg.Max(city.Key, now)
	if !ok {
		log.Printf("bot: %s: no valid reading yet today, skipping markets", city.Key)
		return
	}

	snaps, err := b.exchange.GetWeatherMarkets(ctx, city, now)
	if err != nil {
		log.Printf("bot: markets %s: %v", city.Key, err)
		return
	}
	if len(snaps) == 0 {
		return
	}

	for _, snap := range snaps {
		metrics.MarketsEvaluated.WithLabelValues(city.Key).Inc()

		d := b.evaluator.Evaluate(snap, dayMax, now)
		if !d.Actionable(b.cfg.MinEdge) {
			continue
		}
		metrics.OpportunitiesFound.WithLabelValues(city.Key, string(d.Kind)).Inc()
		b.notifier.Opportunity(ctx, city.Key, d.Ticker, d.Edge, "BUY "+string(d.Side))

		b.execute(ctx, d)
	}
}

// execute sizes, authorizes, and places one trade, then records the result.
func (b *Bot) execute(ctx context.Context, d models.Decision) {
	session := b.guard.Session()
	d.Contracts, d.Cost = engine.SizePosition(d.Price, b.cfg.MaxPositionUSD, b.cfg.MaxContracts, session.Balance)
	if d.Contracts == 0 {
		log.Printf("bot: %s: no viable size at $%.2f", d.Ticker, d.Price)
		return
	}

	if err := b.guard.Authorize(d); err != nil {
		metrics.TradesVetoed.WithLabelValues(rejectReason(err)).Inc()
		log.Printf("bot: vetoed %s: %v", d.Ticker, err)
		return
	}

	priceCents := int(math.Round(d.Price * 100))
	result, err := b.exchange.PlaceOrder(ctx, kalshi.Order{
		Ticker:     d.Ticker,
		Side:       d.Side,
		Count:      d.Contracts,
		PriceCents: priceCents,
		Paper:      b.cfg.Mode == "paper",
	})
	if err != nil {
		log.Printf("bot: order %s failed: %v", d.Ticker, err)
		return
	}

	b.guard.RecordExecution(d.Ticker, -d.Cost)
	metrics.TradesExecuted.WithLabelValues(d.City, string(d.Side), b.cfg.Mode).Inc()
	metrics.SessionBalance.Set(b.guard.Session().Balance)

	log.Printf("bot: executed %s %dx %s @ %d¢, cost $%.2f, edge %.1f%%",
		d.Side, result.Filled, d.Ticker, priceCents, d.Cost, d.Edge*100)
	b.notifier.Alert(ctx,
		"Trade executed: "+d.Ticker,
		fmt.Sprintf("%s %dx @ %d¢ (edge %.1f%%)", d.Side, d.Contracts, priceCents, d.Edge*100), true)

	if b.store != nil {
		_, err := b.store.InsertTrade(models.Trade{
			Ticker:     d.Ticker,
			City:       d.City,
			Side:       d.Side,
			Contracts:  d.Contracts,
			PriceCents: priceCents,
			Cost:       d.Cost,
			Edge:       d.Edge,
			MaxTempF:   d.MaxTempF,
			Kind:       d.Kind,
			Mode:       b.cfg.Mode,
			OrderID:    result.OrderID,
			CreatedAt:  d.At,
		})
		if err != nil {
			log.Printf("bot: record trade %s: %v", d.Ticker, err)
		}
	}
}

// interval returns the wait before the next cycle: the peak interval when any
// monitored city is inside its 12:00-18:00 local window, off-peak otherwise.
func (b *Bot) interval(now time.Time) time.Duration {
	for _, city := range b.cities {
		loc := b.zones[city.Key]
		if loc == nil {
			continue
		}
		h := now.In(loc).Hour()
		if h >= 12 && h < 18 {
			return b.cfg.PeakPollInterval
		}
	}
	return b.cfg.PollInterval
}

func (b *Bot) logStatus() {
	s := b.guard.Session()
	pnl := s.Balance - s.StartingBalance
	log.Printf("bot: status: cycles=%d balance=$%.2f pnl=$%+.2f traded=%d tripped=%v",
		b.cycles, s.Balance, pnl, len(s.Traded), s.Tripped)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, aggregate.ErrImplausibleReading):
		return "implausible"
	case errors.Is(err, aggregate.ErrStaleReading):
		return "stale"
	case errors.Is(err, aggregate.ErrUnknownCity):
		return "unknown_city"
	case errors.Is(err, risk.ErrCircuitTripped):
		return "circuit_tripped"
	case errors.Is(err, risk.ErrDuplicateMarket):
		return "duplicate"
	case errors.Is(err, risk.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "other"
	}
}
