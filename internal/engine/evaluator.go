package engine

import (
	"time"

	"github.com/lox/heatlock/internal/models"
)

// Buffers is the extra margin (°F) beyond a contract's literal threshold
// required before an outcome counts as locked. Above markets tolerate a zero
// buffer: hitting the threshold is an exact, already-recorded fact. Below and
// between markets lean on the max staying under a ceiling, so they carry a
// positive buffer against sensor variance at the boundary.
type Buffers struct {
	AboveF   float64
	BelowF   float64
	BetweenF float64
}

// DefaultBuffers matches the values the strategy has run with historically.
func DefaultBuffers() Buffers {
	return Buffers{AboveF: 0, BelowF: 0.5, BetweenF: 0.5}
}

// Evaluator decides whether a market's outcome is already certain given the
// day's running maximum.
type Evaluator struct {
	Buffers Buffers
	MinEdge float64
}

func NewEvaluator(buffers Buffers, minEdge float64) *Evaluator {
	return &Evaluator{Buffers: buffers, MinEdge: minEdge}
}

// Evaluate classifies one market against the current daily max. The returned
// decision has Certain=false when no locking condition holds; the caller takes
// no action on such markets.
//
// Boundary operators are deliberate and asymmetric: >= for above (reaching
// the threshold settles YES), strictly > for below/between (the max must have
// cleared the buffered ceiling before NO is locked).
func (e *Evaluator) Evaluate(snap models.Snapshot, dayMax models.DayMax, now time.Time) models.Decision {
	d := models.Decision{
		Ticker:   snap.Ticker,
		City:     snap.City,
		Kind:     snap.Kind,
		MaxTempF: dayMax.Max,
		At:       now,
	}

	switch snap.Kind {
	case models.KindAbove:
		boundary := snap.LowF + e.Buffers.AboveF
		if dayMax.Max >= boundary {
			// The high already reached the threshold: YES cannot lose.
			return e.certain(d, models.SideYes, snap.YesAsk, boundary)
		}

	case models.KindBelow:
		boundary := snap.HighF + e.Buffers.BelowF
		if dayMax.Max > boundary {
			// The high already exceeded the ceiling: NO cannot lose.
			return e.certain(d, models.SideNo, snap.NoAsk, boundary)
		}

	case models.KindBetween:
		boundary := snap.HighF + e.Buffers.BetweenF
		if dayMax.Max > boundary {
			// Past the top of the range: NO is locked. There is no certain
			// YES for a range before the day ends.
			return e.certain(d, models.SideNo, snap.NoAsk, boundary)
		}
	}

	return d
}

func (e *Evaluator) certain(d models.Decision, side models.Side, ask, boundary float64) models.Decision {
	d.Certain = true
	d.Side = side
	d.FairValue = 1
	d.Price = ask
	d.Edge = d.FairValue - ask
	d.ThresholdF = boundary
	return d
}
