package models

import (
	"time"
)

// City describes a tracked city and its Kalshi daily-high market series.
type City struct {
	Key          string // short identifier, e.g. "nyc"
	Name         string
	SeriesTicker string // e.g. "KXHIGHNY"
	StationID    string // NWS station used for settlement, e.g. "KNYC"
	MetarID      string // METAR/IEM station, usually same as StationID
	Timezone     string // IANA name, e.g. "America/New_York"
	ClimatePath  string // NWS CLI product path on tgftp, empty if none
}

// Reading is a single temperature observation from one source.
type Reading struct {
	Source     string // "nws", "metar", "iem", "cli"
	StationID  string
	City       string
	TempF      float64
	ObservedAt time.Time
	FetchedAt  time.Time
}

// DayMax tracks the running maximum temperature for a city for one local
// calendar day. Max never decreases for the life of the value; a new DayMax
// replaces it at local midnight.
type DayMax struct {
	City          string
	DayStart      time.Time // local midnight for the city's timezone
	Max           float64
	MaxObservedAt time.Time
	Source        string // source of the reading that set Max
	LastUpdateAt  time.Time
}

// MarketKind classifies a daily-high contract's threshold semantics.
type MarketKind string

const (
	KindAbove   MarketKind = "above"   // settles YES if high >= threshold
	KindBelow   MarketKind = "below"   // settles YES if high <= threshold
	KindBetween MarketKind = "between" // settles YES if low <= high temp <= high
)

// Side is the contract side being bought.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Snapshot is a market's state at one fetch. Immutable; a later fetch for the
// same ticker supersedes it. LowF is set for above/between markets, HighF for
// below/between markets (per Kind).
type Snapshot struct {
	Ticker       string
	City         string
	Title        string
	Subtitle     string
	Kind         MarketKind
	LowF         float64
	HighF        float64
	YesBid       float64 // dollars, 0-1
	YesAsk       float64
	NoBid        float64
	NoAsk        float64
	Volume       int
	OpenInterest int
	Expiry       time.Time
}

// Decision is the evaluator's verdict on one market for one cycle, extended
// with sizing once a position has been computed. Not persisted by the engine;
// executed decisions are written to the trade log as a Trade.
type Decision struct {
	Ticker     string
	City       string
	Side       Side
	Certain    bool
	FairValue  float64 // 1 for a certain outcome
	Price      float64 // ask of the side being bought
	Edge       float64 // FairValue - Price
	MaxTempF   float64 // daily max that locked the outcome
	ThresholdF float64 // buffered boundary that was crossed
	Kind       MarketKind
	Contracts  int
	Cost       float64
	At         time.Time
}

// Actionable reports whether the decision is a certain outcome with enough
// edge to be worth buying.
func (d Decision) Actionable(minEdge float64) bool {
	return d.Certain && d.Edge >= minEdge
}

// StatusReport is a point-in-time view of the bot for the status endpoint.
// Built by the polling loop at the end of each cycle and handed to the
// server, so readers never touch live engine state.
type StatusReport struct {
	Mode            string    `json:"mode"`
	Cycles          int       `json:"cycles"`
	DayMaxes        []DayMax  `json:"day_maxes"`
	Balance         float64   `json:"balance"`
	StartingBalance float64   `json:"starting_balance"`
	LossFraction    float64   `json:"loss_fraction"`
	Tripped         bool      `json:"circuit_tripped"`
	TradedMarkets   int       `json:"traded_markets"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Trade is the persisted record of an executed decision.
type Trade struct {
	ID         int64
	Ticker     string
	City       string
	Side       Side
	Contracts  int
	PriceCents int
	Cost       float64
	Edge       float64
	MaxTempF   float64
	Kind       MarketKind
	Mode       string // "paper" or "live"
	OrderID    string
	CreatedAt  time.Time
}
