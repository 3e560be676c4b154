package player

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPlaying = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "radiogo",
		Subsystem: "player",
		Name:      "playing",
		Help:      "1 while a stream is playing.",
	})

	metricStreamBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "player",
		Name:      "stream_bytes_total",
		Help:      "Audio bytes read from stations.",
	})

	metricDroppedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "player",
		Name:      "dropped_chunks_total",
		Help:      "Chunks not delivered to a subscriber whose buffer was full.",
	})

	metricPlayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiogo",
		Subsystem: "player",
		Name:      "play_failures_total",
		Help:      "Attempts to start playback that failed.",
	})
)
