package sim

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestRunDeterministicForSeed(t *testing.T) {
	p := DefaultParams()
	a := Run(p)
	b := Run(p)

	if a.FinalBalance != b.FinalBalance {
		t.Errorf("final balance differs: %v vs %v", a.FinalBalance, b.FinalBalance)
	}
	if !reflect.DeepEqual(a.Trades, b.Trades) {
		t.Error("trade sequences differ for the same seed")
	}
}

func TestRunSeedsDiffer(t *testing.T) {
	p1 := DefaultParams()
	p2 := DefaultParams()
	p2.Seed = 2

	a := Run(p1)
	b := Run(p2)
	if reflect.DeepEqual(a.Trades, b.Trades) && len(a.Trades) > 0 {
		t.Error("different seeds produced identical trade sequences")
	}
}

func TestRunInvariants(t *testing.T) {
	p := DefaultParams()
	p.Days = 200 // enough days to exercise wins and the rare loss path
	r := Run(p)

	if len(r.Trades) == 0 {
		t.Fatal("no trades over 200 days")
	}

	balance := r.StartingBalance
	wins := 0
	for i, tr := range r.Trades {
		if tr.Contracts < 1 {
			t.Errorf("trade %d: %d contracts", i, tr.Contracts)
		}
		if tr.Price <= 0 || tr.Price >= 1 {
			t.Errorf("trade %d: price %v out of range", i, tr.Price)
		}
		// Cost respects the per-trade fraction of the balance at the time.
		if tr.Cost > balance*p.MaxPositionFraction+1e-9 {
			t.Errorf("trade %d: cost %v exceeds %v%% of balance %v", i, tr.Cost, p.MaxPositionFraction*100, balance)
		}
		if tr.Won {
			wins++
			if want := float64(tr.Contracts) - tr.Cost; tr.Profit != want {
				t.Errorf("trade %d: win profit %v, want %v", i, tr.Profit, want)
			}
		} else if tr.Profit != -tr.Cost {
			t.Errorf("trade %d: loss profit %v, want %v", i, tr.Profit, -tr.Cost)
		}
		balance += tr.Profit
	}

	if wins != r.Wins {
		t.Errorf("wins = %d, recomputed %d", r.Wins, wins)
	}
	if balance != r.FinalBalance {
		t.Errorf("final balance = %v, replayed %v", r.FinalBalance, balance)
	}
}

func TestZeroParamsFilled(t *testing.T) {
	r := Run(Params{})
	if r.StartingBalance != 1000 {
		t.Errorf("starting balance = %v, want default 1000", r.StartingBalance)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, Run(DefaultParams()))

	out := buf.String()
	if !strings.Contains(out, "simulation:") || !strings.Contains(out, "roi") {
		t.Errorf("report missing summary lines:\n%s", out)
	}
}
