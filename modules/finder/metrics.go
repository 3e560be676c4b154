package finder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "finder",
		Name:      "searches_total",
		Help:      "Station searches by outcome.",
	}, []string{"result"})

	metricSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "radiogo",
		Subsystem: "finder",
		Name:      "search_duration_seconds",
		Help:      "Time spent waiting for the station directory.",
		Buckets:   prometheus.DefBuckets,
	})
)
