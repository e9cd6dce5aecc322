package metrics

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ChannelHTTP = "http"
	ChannelFeed = "feed"
)

var (
	RecordsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydration_records_received_total",
			Help: "Total raw records received",
		},
		[]string{"channel"},
	)

	RecordsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydration_records_discarded_total",
			Help: "Total records discarded during normalization and merging",
		},
		[]string{"reason"},
	)

	StatusEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydration_status_evaluations_total",
			Help: "Total patient status evaluations by resulting status",
		},
		[]string{"status"},
	)

	MergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydration_merge_duration_seconds",
			Help:    "Timeline merge duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	FeedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydration_feed_messages_total",
			Help: "Total device feed messages by outcome",
		},
		[]string{"result"},
	)

	CohortCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydration_cohort_cache_total",
			Help: "Cohort dashboard cache lookups by outcome",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. It is safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RecordsReceived)
		prometheus.MustRegister(RecordsDiscarded)
		prometheus.MustRegister(StatusEvaluations)
		prometheus.MustRegister(MergeDuration)
		prometheus.MustRegister(FeedMessages)
		prometheus.MustRegister(CohortCache)
	})
}

func Handler() echo.HandlerFunc {
	Register()
	return echo.WrapHandler(promhttp.Handler())
}
