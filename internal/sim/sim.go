// Package sim runs a seeded paper-trading simulation. Real opportunities are
// rare and timing dependent, so the simulation shows what the strategy does
// over a stretch of days when they do appear.
package sim

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/lox/heatlock/internal/engine"
)

// Params controls a simulation run. Zero values are replaced by defaults.
type Params struct {
	Seed                int64
	StartingBalance     float64
	Days                int
	OpportunitiesPerDay float64 // chance per day of any opportunity appearing
	MaxPositionFraction float64 // cap per trade as a fraction of balance
	MaxContracts        int
}

func DefaultParams() Params {
	return Params{
		Seed:                1,
		StartingBalance:     1000,
		Days:                30,
		OpportunitiesPerDay: 0.5,
		MaxPositionFraction: 0.10,
		MaxContracts:        500,
	}
}

// TradeRecord is one simulated execution.
type TradeRecord struct {
	Day       int
	City      string
	Ticker    string
	Price     float64
	Edge      float64
	Contracts int
	Cost      float64
	Profit    float64
	Won       bool
}

// Result summarizes a run.
type Result struct {
	StartingBalance float64
	FinalBalance    float64
	Trades          []TradeRecord
	Wins            int
}

func (r Result) Profit() float64 {
	return r.FinalBalance - r.StartingBalance
}

func (r Result) ROI() float64 {
	if r.StartingBalance == 0 {
		return 0
	}
	return r.Profit() / r.StartingBalance
}

var simCities = []string{"nyc", "chicago", "miami"}

// edge distribution: usually small, occasionally larger.
var edgeChoices = []struct {
	edge   float64
	weight float64
}{
	{0.02, 0.30},
	{0.03, 0.25},
	{0.05, 0.20},
	{0.08, 0.15},
	{0.10, 0.07},
	{0.15, 0.03},
}

// Run simulates Days of trading with the given seed. The same seed always
// produces the same trades.
func Run(p Params) Result {
	p = fill(p)
	rng := rand.New(rand.NewSource(p.Seed))

	balance := p.StartingBalance
	res := Result{StartingBalance: p.StartingBalance}
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for day := 0; day < p.Days; day++ {
		date := start.AddDate(0, 0, day)

		numOpps := 0
		if rng.Float64() < p.OpportunitiesPerDay {
			numOpps = weightedInt(rng, []int{1, 2, 3}, []float64{0.70, 0.25, 0.05})
		}

		for i := 0; i < numOpps; i++ {
			city := simCities[rng.Intn(len(simCities))]
			edge := pickEdge(rng)
			price := 1.0 - edge

			contracts, cost := engine.SizePosition(price, balance*p.MaxPositionFraction, p.MaxContracts, balance)
			if contracts < 1 {
				continue
			}

			// Not every order fills; thin books swallow some.
			if rng.Float64() > 0.90 {
				continue
			}

			// Locked outcomes still lose on rare settlement disputes or a
			// wrong settlement station reading.
			won := rng.Float64() < 0.99
			profit := -cost
			if won {
				profit = float64(contracts) - cost
			}
			balance += profit

			res.Trades = append(res.Trades, TradeRecord{
				Day:       day + 1,
				City:      city,
				Ticker:    fmt.Sprintf("KXHIGH%s-%s", strings.ToUpper(city[:3]), strings.ToUpper(date.Format("02Jan"))),
				Price:     price,
				Edge:      edge,
				Contracts: contracts,
				Cost:      cost,
				Profit:    profit,
				Won:       won,
			})
			if won {
				res.Wins++
			}
		}
	}

	res.FinalBalance = balance
	return res
}

// Report writes a human-readable summary of the run.
func Report(w io.Writer, r Result) {
	fmt.Fprintf(w, "simulation: %d trades, %d wins\n", len(r.Trades), r.Wins)
	for _, t := range r.Trades {
		outcome := "win"
		if !t.Won {
			outcome = "LOSS"
		}
		fmt.Fprintf(w, "day %2d  %-8s %-20s edge %4.1f%%  %3d contracts  profit $%+8.2f  (%s)\n",
			t.Day, t.City, t.Ticker, t.Edge*100, t.Contracts, t.Profit, outcome)
	}
	fmt.Fprintf(w, "starting $%.2f  final $%.2f  profit $%+.2f  roi %+.1f%%\n",
		r.StartingBalance, r.FinalBalance, r.Profit(), r.ROI()*100)
}

func fill(p Params) Params {
	d := DefaultParams()
	if p.StartingBalance == 0 {
		p.StartingBalance = d.StartingBalance
	}
	if p.Days == 0 {
		p.Days = d.Days
	}
	if p.OpportunitiesPerDay == 0 {
		p.OpportunitiesPerDay = d.OpportunitiesPerDay
	}
	if p.MaxPositionFraction == 0 {
		p.MaxPositionFraction = d.MaxPositionFraction
	}
	if p.MaxContracts == 0 {
		p.MaxContracts = d.MaxContracts
	}
	return p
}

func pickEdge(rng *rand.Rand) float64 {
	r := rng.Float64()
	acc := 0.0
	for _, c := range edgeChoices {
		acc += c.weight
		if r < acc {
			return c.edge
		}
	}
	return edgeChoices[len(edgeChoices)-1].edge
}

func weightedInt(rng *rand.Rand, values []int, weights []float64) int {
	r := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}
