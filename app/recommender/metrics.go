package recommender

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ranking attempts per model partitioned by outcome
	rankingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_attempts_total",
			Help: "Ranking model attempts",
		},
		[]string{"model", "outcome"},
	)

	rankingAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_attempt_duration_seconds",
			Help:    "Ranking model attempt latencies in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model"},
	)

	// Recommendations served partitioned by mode and by who produced the ranking
	recommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendations served",
		},
		[]string{"mode", "ranked_by"},
	)

	// Chat replies partitioned by whether a model or the local rule answered
	chatRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Advisor chat replies",
		},
		[]string{"answered_by"},
	)
)
