package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/lox/heatlock/internal/models"
)

// Config is everything the bot reads at startup. Validated once by Validate;
// the engine packages receive the relevant pieces as immutable values and
// never re-read the environment.
type Config struct {
	Mode   string   `help:"Trading mode." enum:"paper,live" default:"paper" env:"TRADING_MODE"`
	Cities []string `help:"City keys to monitor." default:"nyc,chicago,miami" env:"CITIES"`

	MaxPositionUSD float64 `name:"max-position" help:"Dollar cap per trade." default:"50" env:"MAX_POSITION_SIZE"`
	MaxContracts   int     `name:"max-contracts" help:"Contract cap per trade." default:"50" env:"MAX_CONTRACT_LIMIT"`
	MinEdge        float64 `help:"Minimum fractional edge to act on." default:"0.03" env:"MIN_EDGE"`

	BufferAboveF   float64 `help:"Safety buffer (°F) for above markets." default:"0" env:"BUFFER_ABOVE_F"`
	BufferBelowF   float64 `help:"Safety buffer (°F) for below markets." default:"0.5" env:"BUFFER_BELOW_F"`
	BufferBetweenF float64 `help:"Safety buffer (°F) for between markets." default:"0.5" env:"BUFFER_BETWEEN_F"`

	Staleness     time.Duration `help:"Max age of a reading's fetch time." default:"90m" env:"STALENESS_WINDOW"`
	MinPlausibleF float64       `help:"Lower plausibility bound (°F)." default:"-50" env:"MIN_PLAUSIBLE_F"`
	MaxPlausibleF float64       `help:"Upper plausibility bound (°F)." default:"140" env:"MAX_PLAUSIBLE_F"`

	LossLimit float64 `help:"Circuit breaker: halt past this fraction of starting balance lost." default:"0.5" env:"MAX_LOSS_FRACTION"`

	PollInterval     time.Duration `help:"Off-peak polling interval." default:"5m" env:"POLL_INTERVAL"`
	PeakPollInterval time.Duration `help:"Polling interval during peak heating hours (12:00-18:00 local)." default:"1m" env:"PEAK_POLL_INTERVAL"`

	PaperBalance float64 `help:"Starting balance for paper mode." default:"1000" env:"PAPER_BALANCE"`

	KalshiKeyID   string `help:"Kalshi API key id (live mode)." env:"KALSHI_API_KEY_ID"`
	KalshiKeyPath string `help:"Path to Kalshi RSA private key PEM (live mode)." default:"kalshi.key" env:"KALSHI_PRIVATE_KEY_PATH"`

	WebhookURL string `help:"Optional alert webhook (ntfy.sh or JSON endpoint)." env:"ALERT_WEBHOOK_URL"`
	DBPath     string `name:"db" help:"Path to SQLite database." default:"data/heatlock.db" env:"DB_PATH"`
	ListenAddr string `help:"Address for the status/metrics server." default:":8080" env:"LISTEN_ADDR"`
}

// cityTable maps city keys to their Kalshi series and settlement stations.
// Kept as data rather than engine constants so a series rename or station
// change is a config edit, not a code change.
var cityTable = map[string]models.City{
	"nyc":     {Key: "nyc", Name: "New York City", SeriesTicker: "KXHIGHNY", StationID: "KNYC", MetarID: "KNYC", Timezone: "America/New_York", ClimatePath: "/data/raw/cd/cdus41.kokx.cli.nyc.txt"},
	"chicago": {Key: "chicago", Name: "Chicago", SeriesTicker: "KXHIGHCHI", StationID: "KMDW", MetarID: "KMDW", Timezone: "America/Chicago", ClimatePath: "/data/raw/cd/cdus43.klot.cli.mdw.txt"},
	"miami":   {Key: "miami", Name: "Miami", SeriesTicker: "KXHIGHMIA", StationID: "KMIA", MetarID: "KMIA", Timezone: "America/New_York", ClimatePath: "/data/raw/cd/cdus42.kmfl.cli.mia.txt"},
	"la":      {Key: "la", Name: "Los Angeles", SeriesTicker: "KXHIGHLAX", StationID: "KLAX", MetarID: "KLAX", Timezone: "America/Los_Angeles", ClimatePath: "/data/raw/cd/cdus46.klox.cli.lax.txt"},
	"austin":  {Key: "austin", Name: "Austin", SeriesTicker: "KXHIGHAUS", StationID: "KAUS", MetarID: "KAUS", Timezone: "America/Chicago", ClimatePath: "/data/raw/cd/cdus44.kewx.cli.aus.txt"},
	"denver":  {Key: "denver", Name: "Denver", SeriesTicker: "KXHIGHDEN", StationID: "KDEN", MetarID: "KDEN", Timezone: "America/Denver", ClimatePath: "/data/raw/cd/cdus45.kbou.cli.den.txt"},
	"houston": {Key: "houston", Name: "Houston", SeriesTicker: "KXHIGHOU", StationID: "KIAH", MetarID: "KIAH", Timezone: "America/Chicago", ClimatePath: "/data/raw/cd/cdus44.khgx.cli.iah.txt"},
	"philly":  {Key: "philly", Name: "Philadelphia", SeriesTicker: "KXHIGHPHIL", StationID: "KPHL", MetarID: "KPHL", Timezone: "America/New_York", ClimatePath: "/data/raw/cd/cdus41.kphi.cli.phl.txt"},
	"dc":      {Key: "dc", Name: "Washington DC", SeriesTicker: "KXHIGHTDC", StationID: "KDCA", MetarID: "KDCA", Timezone: "America/New_York", ClimatePath: "/data/raw/cd/cdus41.klwx.cli.dca.txt"},
	"seattle": {Key: "seattle", Name: "Seattle", SeriesTicker: "KXHIGHTSEA", StationID: "KSEA", MetarID: "KSEA", Timezone: "America/Los_Angeles", ClimatePath: "/data/raw/cd/cdus46.ksew.cli.sea.txt"},
	"vegas":   {Key: "vegas", Name: "Las Vegas", SeriesTicker: "KXHIGHTLV", StationID: "KLAS", MetarID: "KLAS", Timezone: "America/Los_Angeles", ClimatePath: "/data/raw/cd/cdus45.kvef.cli.las.txt"},
	"sf":      {Key: "sf", Name: "San Francisco", SeriesTicker: "KXHIGHTSFO", StationID: "KSFO", MetarID: "KSFO", Timezone: "America/Los_Angeles", ClimatePath: "/data/raw/cd/cdus46.kmtr.cli.sfo.txt"},
	"nola":    {Key: "nola", Name: "New Orleans", SeriesTicker: "KXHIGHTNOLA", StationID: "KMSY", MetarID: "KMSY", Timezone: "America/Chicago", ClimatePath: "/data/raw/cd/cdus44.klix.cli.msy.txt"},
}

// KnownCities returns all configured city keys, sorted.
func KnownCities() []string {
	keys := make([]string, 0, len(cityTable))
	for k := range cityTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveCities maps the configured city keys to their full definitions.
func (c *Config) ResolveCities() ([]models.City, error) {
	if len(c.Cities) == 0 {
		return nil, fmt.Errorf("config: no cities configured")
	}
	cities := make([]models.City, 0, len(c.Cities))
	for _, key := range c.Cities {
		city, ok := cityTable[key]
		if !ok {
			return nil, fmt.Errorf("config: unknown city %q (known: %v)", key, KnownCities())
		}
		cities = append(cities, city)
	}
	return cities, nil
}

// Validate rejects configurations the engine must never run with. Called once
// at startup; any error here is fatal.
func (c *Config) Validate() error {
	if c.MaxPositionUSD <= 0 {
		return fmt.Errorf("config: max-position must be positive, got %v", c.MaxPositionUSD)
	}
	if c.MaxContracts <= 0 {
		return fmt.Errorf("config: max-contracts must be positive, got %d", c.MaxContracts)
	}
	if c.MinEdge <= 0 || c.MinEdge >= 1 {
		return fmt.Errorf("config: min-edge must be in (0, 1), got %v", c.MinEdge)
	}
	if c.BufferAboveF < 0 || c.BufferBelowF < 0 || c.BufferBetweenF < 0 {
		return fmt.Errorf("config: buffers must be non-negative, got above=%v below=%v between=%v",
			c.BufferAboveF, c.BufferBelowF, c.BufferBetweenF)
	}
	if c.Staleness <= 0 {
		return fmt.Errorf("config: staleness window must be positive, got %v", c.Staleness)
	}
	if c.MinPlausibleF >= c.MaxPlausibleF {
		return fmt.Errorf("config: plausibility bounds inverted: [%v, %v]", c.MinPlausibleF, c.MaxPlausibleF)
	}
	if c.LossLimit <= 0 || c.LossLimit > 1 {
		return fmt.Errorf("config: loss-limit must be in (0, 1], got %v", c.LossLimit)
	}
	if c.PollInterval <= 0 || c.PeakPollInterval <= 0 {
		return fmt.Errorf("config: poll intervals must be positive")
	}
	if c.Mode == "live" {
		if c.KalshiKeyID == "" {
			return fmt.Errorf("config: live mode requires kalshi-key-id")
		}
		if c.PaperBalance < 0 {
			return fmt.Errorf("config: paper balance must be non-negative")
		}
	}
	if c.Mode == "paper" && c.PaperBalance <= 0 {
		return fmt.Errorf("config: paper balance must be positive, got %v", c.PaperBalance)
	}
	if _, err := c.ResolveCities(); err != nil {
		return err
	}
	return nil
}
