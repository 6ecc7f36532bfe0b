package risk

import (
	"errors"
	"testing"

	"github.com/lox/heatlock/internal/models"
)

func decision(ticker string, cost float64) models.Decision {
	return models.Decision{
		Ticker:    ticker,
		Side:      models.SideYes,
		Certain:   true,
		FairValue: 1,
		Price:     0.90,
		Edge:      0.10,
		Contracts: int(cost / 0.90),
		Cost:      cost,
	}
}

func TestAuthorize_Approves(t *testing.T) {
	g := NewGuard(0.5, NewSession(1000))
	if err := g.Authorize(decision("KXHIGHNY-T85", 19.80)); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestAuthorize_DuplicateMarket(t *testing.T) {
	g := NewGuard(0.5, NewSession(1000))
	d := decision("KXHIGHNY-T85", 19.80)

	if err := g.Authorize(d); err != nil {
		t.Fatalf("first Authorize: %v", err)
	}
	g.RecordExecution(d.Ticker, -d.Cost)

	// Second attempt is vetoed even with a better edge.
	better := d
	better.Price = 0.50
	better.Edge = 0.50
	if err := g.Authorize(better); !errors.Is(err, ErrDuplicateMarket) {
		t.Fatalf("err = %v, want ErrDuplicateMarket", err)
	}

	// Other markets are unaffected.
	if err := g.Authorize(decision("KXHIGHCHI-T90", 10)); err != nil {
		t.Fatalf("other market vetoed: %v", err)
	}
}

func TestAuthorize_InsufficientBalance(t *testing.T) {
	g := NewGuard(0.5, NewSession(15))
	if err := g.Authorize(decision("KXHIGHNY-T85", 19.80)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestCircuitBreaker_TripsAndSticks(t *testing.T) {
	g := NewGuard(0.5, NewSession(1000))

	// Lose 40%: still under the limit.
	g.RecordExecution("A", -400)
	if g.Session().Tripped {
		t.Fatal("tripped at 40% loss with 50% limit")
	}
	if got := g.Session().LossFraction; got != 0.4 {
		t.Fatalf("LossFraction = %v, want 0.4", got)
	}

	// Lose another 20%: past the limit.
	g.RecordExecution("B", -200)
	if !g.Session().Tripped {
		t.Fatal("not tripped at 60% loss")
	}

	// Every subsequent authorization is vetoed, positive edge or not.
	for _, ticker := range []string{"C", "D", "E"} {
		if err := g.Authorize(decision(ticker, 1)); !errors.Is(err, ErrCircuitTripped) {
			t.Errorf("Authorize(%s) err = %v, want ErrCircuitTripped", ticker, err)
		}
	}

	// Recovery does not reset the breaker.
	g.SetBalance(2000)
	if err := g.Authorize(decision("F", 1)); !errors.Is(err, ErrCircuitTripped) {
		t.Errorf("breaker reset after balance recovery: %v", err)
	}
}

func TestCircuitBreaker_ExactLimitDoesNotTrip(t *testing.T) {
	g := NewGuard(0.5, NewSession(1000))
	g.RecordExecution("A", -500)
	if g.Session().Tripped {
		t.Error("tripped at exactly the loss limit, want strictly-greater")
	}
}

func TestLossFraction_NeverNegative(t *testing.T) {
	g := NewGuard(0.5, NewSession(1000))

	// A winning session keeps the breaker dormant whatever the magnitude.
	g.RecordExecution("A", 5000)
	if got := g.Session().LossFraction; got != 0 {
		t.Errorf("LossFraction = %v after profit, want 0", got)
	}
	if g.Session().Tripped {
		t.Error("breaker tripped on a profitable session")
	}
}

func TestSetBalance_TracksLiveBalance(t *testing.T) {
	g := NewGuard(0.5, NewSession(1000))
	g.SetBalance(300)
	if got := g.Session().LossFraction; got != 0.7 {
		t.Errorf("LossFraction = %v, want 0.7", got)
	}
	if !g.Session().Tripped {
		t.Error("breaker not tripped at 70% loss")
	}
}
