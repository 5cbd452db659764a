package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for bet-simulator-service
type Metrics struct {
	// Ledger operations
	BetsPlacedTotal   *prometheus.CounterVec
	BetsRejectedTotal *prometheus.CounterVec
	BetsSettledTotal  *prometheus.CounterVec
	DepositsTotal     prometheus.Counter

	// Ledger amounts
	StakeTotal    prometheus.Counter
	PayoutTotal   prometheus.Counter
	PendingBets   prometheus.Gauge
	WalletBalance prometheus.Gauge

	// Performance
	BetPlacementDuration *prometheus.HistogramVec

	// Database
	DatabaseOperationDuration *prometheus.HistogramVec
	DatabaseErrors            *prometheus.CounterVec

	// Market cache
	MarketCacheDecisions *prometheus.CounterVec
	MarketRefreshTotal   *prometheus.CounterVec

	// Remote odds gateway
	GatewayRequestDuration  *prometheus.HistogramVec
	GatewayRequestsTotal    *prometheus.CounterVec
	GatewayCreditsRemaining prometheus.Gauge

	// Settlement
	SettlementRunsTotal     *prometheus.CounterVec
	SettlementRunDuration   prometheus.Histogram
	SettlementRetriesTotal  prometheus.Counter
	SettlementJobsScheduled prometheus.Counter

	// Outbox publisher
	OutboxEventsPublished *prometheus.CounterVec
	OutboxEventsFailed    *prometheus.CounterVec

	// HTTP API
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics with a custom registry (useful for testing)
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BetsPlacedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_bets_placed_total",
				Help: "Total number of bets placed",
			},
			[]string{"sport"},
		),
		BetsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_bets_rejected_total",
				Help: "Total number of bet placements rejected by a ledger precondition",
			},
			[]string{"reason"},
		),
		BetsSettledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_bets_settled_total",
				Help: "Total number of bets settled",
			},
			[]string{"result"}, // WON, LOST
		),
		DepositsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "betsim_deposits_total",
				Help: "Total number of wallet deposits",
			},
		),
		StakeTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "betsim_stake_amount_total",
				Help: "Total amount staked",
			},
		),
		PayoutTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "betsim_payout_amount_total",
				Help: "Total payout amount for winning bets",
			},
		),
		PendingBets: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsim_pending_bets_amount",
				Help: "Sum of stakes currently awaiting settlement",
			},
		),
		WalletBalance: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsim_wallet_balance",
				Help: "Current wallet balance",
			},
		),
		BetPlacementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betsim_bet_placement_duration_seconds",
				Help:    "Duration of bet placement operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"}, // success, failure
		),
		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betsim_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"}, // place, settle, deposit
		),
		DatabaseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_database_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"operation", "error_type"},
		),
		MarketCacheDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_market_cache_decisions_total",
				Help: "Cache-first decisions taken when serving markets",
			},
			[]string{"sport", "decision"},
		),
		MarketRefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_market_refresh_total",
				Help: "Market cache refresh attempts",
			},
			[]string{"sport", "status"},
		),
		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betsim_gateway_request_duration_seconds",
				Help:    "Duration of remote odds API calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		GatewayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_gateway_requests_total",
				Help: "Remote odds API calls by result kind",
			},
			[]string{"endpoint", "kind"},
		),
		GatewayCreditsRemaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsim_gateway_credits_remaining",
				Help: "Remaining request credits reported by the odds API",
			},
		),
		SettlementRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_settlement_runs_total",
				Help: "Settlement job runs by outcome",
			},
			[]string{"outcome"},
		),
		SettlementRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "betsim_settlement_run_duration_seconds",
				Help:    "Duration of settlement job runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		SettlementRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "betsim_settlement_retries_total",
				Help: "Settlement runs retried after an error",
			},
		),
		SettlementJobsScheduled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "betsim_settlement_jobs_scheduled_total",
				Help: "Settlement jobs scheduled or replaced",
			},
		),
		OutboxEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_outbox_events_published_total",
				Help: "Total number of outbox events successfully published",
			},
			[]string{"event_type"},
		),
		OutboxEventsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsim_outbox_events_failed_total",
				Help: "Total number of outbox events failed to publish",
			},
			[]string{"event_type"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betsim_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}
