package risk

import (
	"errors"
	"fmt"
	"log"

	"github.com/lox/heatlock/internal/models"
)

// Veto reasons. These are expected outcomes reported to the caller, not
// faults; a vetoed market never blocks evaluation of the others.
var (
	ErrCircuitTripped      = errors.New("circuit breaker tripped")
	ErrDuplicateMarket     = errors.New("market already traded this session")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Session is the risk state for one bot run. It is created at startup and
// dies with the process: losses never carry across sessions.
type Session struct {
	StartingBalance float64
	Balance         float64
	Traded          map[string]bool // tickers traded this session
	LossFraction    float64         // (starting - current) / starting, never negative
	Tripped         bool            // one-way
}

func NewSession(startingBalance float64) *Session {
	return &Session{
		StartingBalance: startingBalance,
		Balance:         startingBalance,
		Traded:          make(map[string]bool),
	}
}

// Guard is the session-scoped gatekeeper for proposed trades. Owned by the
// polling loop; not safe for concurrent writers.
type Guard struct {
	LossLimitFraction float64 // trip the breaker past this fraction of starting balance
	session           *Session
}

func NewGuard(lossLimitFraction float64, session *Session) *Guard {
	return &Guard{LossLimitFraction: lossLimitFraction, session: session}
}

func (g *Guard) Session() *Session {
	return g.session
}

// Authorize approves or vetoes a sized decision. Checks run in a fixed order:
// breaker, duplicate, balance.
func (g *Guard) Authorize(d models.Decision) error {
	if g.session.Tripped {
		return fmt.Errorf("%w: lost %.1f%% of starting balance", ErrCircuitTripped, g.session.LossFraction*100)
	}
	if g.session.Traded[d.Ticker] {
		return fmt.Errorf("%w: %s", ErrDuplicateMarket, d.Ticker)
	}
	if g.session.Balance < d.Cost {
		return fmt.Errorf("%w: need $%.2f, have $%.2f", ErrInsufficientBalance, d.Cost, g.session.Balance)
	}
	return nil
}

// RecordExecution applies the result of an executed trade: balanceDelta is
// the signed change reported by the exchange (negative for the premium paid).
// The ticker is marked traded whatever the delta.
func (g *Guard) RecordExecution(ticker string, balanceDelta float64) {
	g.session.Traded[ticker] = true
	g.applyDelta(balanceDelta)
}

// SetBalance overwrites the tracked balance from an authoritative exchange
// query and re-applies the breaker check. Used in live mode where fills and
// fees move the balance outside our own accounting.
func (g *Guard) SetBalance(balance float64) {
	g.applyDelta(balance - g.session.Balance)
}

func (g *Guard) applyDelta(delta float64) {
	s := g.session
	s.Balance += delta

	s.LossFraction = 0
	if s.StartingBalance > 0 && s.Balance < s.StartingBalance {
		s.LossFraction = (s.StartingBalance - s.Balance) / s.StartingBalance
	}

	if !s.Tripped && s.LossFraction > g.LossLimitFraction {
		s.Tripped = true
		log.Printf("risk: circuit breaker tripped, lost %.1f%% of $%.2f, halting trading for this session",
			s.LossFraction*100, s.StartingBalance)
	}
}
