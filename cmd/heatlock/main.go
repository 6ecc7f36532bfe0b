package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/heatlock/internal/aggregate"
	"github.com/lox/heatlock/internal/api"
	"github.com/lox/heatlock/internal/bot"
	"github.com/lox/heatlock/internal/config"
	"github.com/lox/heatlock/internal/ingest"
	"github.com/lox/heatlock/internal/kalshi"
	"github.com/lox/heatlock/internal/notify"
	"github.com/lox/heatlock/internal/risk"
	"github.com/lox/heatlock/internal/sim"
	"github.com/lox/heatlock/internal/store"
)

var cli struct {
	config.Config

	Run      runCmd      `cmd:"" default:"withargs" help:"Run the polling loop and status server."`
	Once     onceCmd     `cmd:"" help:"Run a single scan cycle and exit."`
	Simulate simulateCmd `cmd:"" help:"Run a seeded paper-trading simulation."`
	Version  versionCmd  `cmd:"" help:"Print the version."`
}

var version = "dev"

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("heatlock"),
		kong.Description("Certainty arbitrage on Kalshi daily-high weather markets."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Config); err != nil {
		log.Fatal(err)
	}
}

type runCmd struct{}

func (r *runCmd) Run(cfg *config.Config) error {
	b, server, cleanup, err := build(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := server.Run(ctx); err != nil {
			log.Printf("server: %v", err)
		}
	}()

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Println("shut down")
	return nil
}

type onceCmd struct{}

func (o *onceCmd) Run(cfg *config.Config) error {
	b, _, cleanup, err := build(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b.Cycle(ctx, time.Now().UTC())
	return nil
}

type simulateCmd struct {
	Seed    int64   `help:"Random seed." default:"1"`
	Days    int     `help:"Days to simulate." default:"30"`
	Balance float64 `help:"Starting balance." default:"1000"`
}

func (s *simulateCmd) Run(cfg *config.Config) error {
	p := sim.DefaultParams()
	p.Seed = s.Seed
	p.Days = s.Days
	p.StartingBalance = s.Balance

	sim.Report(os.Stdout, sim.Run(p))
	return nil
}

type versionCmd struct{}

func (v *versionCmd) Run(cfg *config.Config) error {
	fmt.Println(version)
	return nil
}

// build assembles the bot from config: store, exchange, weather sources,
// risk session, and the status server.
func build(cfg *config.Config) (*bot.Bot, *api.Server, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	cities, err := cfg.ResolveCities()
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := func() { st.Close() }

	var exchange *kalshi.Client
	if cfg.Mode == "live" {
		exchange, err = kalshi.New(cfg.KalshiKeyID, cfg.KalshiKeyPath)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("kalshi client: %w", err)
		}
	} else {
		exchange = kalshi.NewPublic()
	}

	startingBalance := cfg.PaperBalance
	if cfg.Mode == "live" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		startingBalance, err = exchange.GetBalance(ctx)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("initial balance: %w", err)
		}
		log.Printf("live balance: $%.2f", startingBalance)
	}

	session := risk.NewSession(startingBalance)
	guard := risk.NewGuard(cfg.LossLimit, session)

	// A restart inside the same day must not re-buy markets already
	// traded, so the dedup set is rebuilt from the trade log.
	if traded, err := st.TradedTickers(todayStartUTC()); err != nil {
		log.Printf("rebuild traded set: %v", err)
	} else {
		for ticker := range traded {
			session.Traded[ticker] = true
		}
		if len(traded) > 0 {
			log.Printf("restored %d traded markets from today's log", len(traded))
		}
	}

	agg, err := aggregate.New(aggregate.Config{
		MinPlausibleF: cfg.MinPlausibleF,
		MaxPlausibleF: cfg.MaxPlausibleF,
		Staleness:     cfg.Staleness,
	}, cities)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	sources := bot.Sources{
		NWS:     ingest.NewNWSClient(),
		METAR:   ingest.NewMETARClient(),
		IEM:     ingest.NewIEMClient(),
		Climate: ingest.NewClimateClient(),
	}

	server := api.NewServer(cfg.ListenAddr)
	b := bot.New(*cfg, cities, agg, guard, exchange, sources, st, notify.New(cfg.WebhookURL))
	b.SetStatusSink(server.Publish)

	return b, server, cleanup, nil
}

func todayStartUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
