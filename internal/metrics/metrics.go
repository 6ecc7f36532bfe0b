package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_source_calls_total",
			Help: "Weather source API calls",
		},
		[]string{"source", "station", "status"},
	)

	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heatlock_source_latency_seconds",
			Help:    "Weather source call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	ReadingsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_readings_accepted_total",
			Help: "Readings accepted by the aggregator",
		},
		[]string{"city", "source"},
	)

	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_readings_rejected_total",
			Help: "Readings rejected by the aggregator",
		},
		[]string{"city", "reason"},
	)

	KalshiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_kalshi_calls_total",
			Help: "Kalshi API calls",
		},
		[]string{"endpoint", "status"},
	)

	MarketsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_markets_evaluated_total",
			Help: "Market evaluations performed",
		},
		[]string{"city"},
	)

	OpportunitiesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_opportunities_total",
			Help: "Certain opportunities with actionable edge",
		},
		[]string{"city", "kind"},
	)

	TradesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_trades_executed_total",
			Help: "Trades executed",
		},
		[]string{"city", "side", "mode"},
	)

	TradesVetoed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatlock_trades_vetoed_total",
			Help: "Trades vetoed by the risk guard",
		},
		[]string{"reason"},
	)

	DailyMaxTemp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "heatlock_daily_max_fahrenheit",
			Help: "Current tracked daily maximum per city",
		},
		[]string{"city"},
	)

	SessionBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heatlock_session_balance_dollars",
			Help: "Tracked session balance",
		},
	)
)
