package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forge_sessions_created_total",
		Help: "Number of agent sessions created.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forge_sessions_active",
		Help: "Number of live agent sessions.",
	})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_events_emitted_total",
		Help: "Number of stream events emitted, by event type.",
	}, []string{"event"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_turn_duration_seconds",
		Help:    "Wall-clock duration of one streamed turn.",
		Buckets: prometheus.DefBuckets,
	})
)
