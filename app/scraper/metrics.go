package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scrape runs partitioned by trigger and outcome (ok, fallback, rejected, error)
	scrapeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_runs_total",
			Help: "Total number of scrape runs",
		},
		[]string{"trigger", "outcome"},
	)

	scrapeRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_run_duration_seconds",
			Help:    "Duration of complete scrape runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Plans contributed per source partitioned by status
	scrapeSourcePlans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_source_plans_total",
			Help: "Plans written per listing source",
		},
		[]string{"source", "status"},
	)

	scrapeSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_source_failures_total",
			Help: "Listing source fetch failures",
		},
		[]string{"source"},
	)

	planStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plan_store_size",
			Help: "Number of plans in the store after the last scrape run",
		},
	)
)
