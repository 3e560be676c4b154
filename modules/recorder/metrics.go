package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRecordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "recorder",
		Name:      "recordings_total",
		Help:      "Recording sessions by outcome.",
	}, []string{"result"})

	metricActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "radiogo",
		Subsystem: "recorder",
		Name:      "active",
		Help:      "1 while a recording session is active.",
	})

	metricRecordedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "recorder",
		Name:      "recorded_bytes_total",
		Help:      "Audio bytes appended to recording sessions.",
	})

	metricEmptyChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "recorder",
		Name:      "empty_chunks_total",
		Help:      "Zero size chunks discarded by the recorder.",
	})
)
