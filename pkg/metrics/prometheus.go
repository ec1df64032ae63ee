package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry              *prometheus.Registry
	transactionsProcessed prometheus.Counter
	transactionsFailed    prometheus.Counter
	transactionDuration   prometheus.Histogram
	executionsTotal       *prometheus.CounterVec
	schedulerRunDuration  *prometheus.HistogramVec
	allocationShortfall   prometheus.Histogram
	logger                *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		transactionsProcessed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_processed_total",
			Help: "Total number of successfully applied transactions",
		}),
		transactionsFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_failed_total",
			Help: "Total number of rejected or failed transactions",
		}),
		transactionDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "Time taken to validate and apply a transaction",
			Buckets: prometheus.DefBuckets,
		}),
		executionsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_recurring_executions_total",
			Help: "Recurring definition executions by scheduler and status",
		}, []string{"scheduler", "status"}),
		schedulerRunDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_scheduler_run_duration_seconds",
			Help:    "Duration of one scheduler tick",
			Buckets: prometheus.DefBuckets,
		}, []string{"scheduler"}),
		allocationShortfall: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_allocation_shortfall",
			Help:    "Unallocated remainder after waterfall allocation",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000},
		}),
		logger: logger,
	}
}

func (c *Collector) RecordTransaction(duration time.Duration, success bool) {
	if c == nil {
		return
	}
	if success {
		c.transactionsProcessed.Inc()
	} else {
		c.transactionsFailed.Inc()
	}
	c.transactionDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordExecution(scheduler, status string) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(scheduler, status).Inc()
}

func (c *Collector) RecordSchedulerRun(scheduler string, duration time.Duration) {
	if c == nil {
		return
	}
	c.schedulerRunDuration.WithLabelValues(scheduler).Observe(duration.Seconds())
}

func (c *Collector) RecordShortfall(shortfall float64) {
	if c == nil {
		return
	}
	c.allocationShortfall.Observe(shortfall)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics on its own listener and returns the
// server so the caller can shut it down.
func (c *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		c.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}
