// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_commands_total", Help: "Session commands by name and result"},
		[]string{"command", "result"},
	)
	TracksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jukebox_tracks_started_total", Help: "Decoder starts that succeeded"},
	)
	Skips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_skipped_items_total", Help: "Queue items skipped during advance"},
		[]string{"reason"},
	)
	ResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jukebox_resolve_duration_seconds",
			Help:    "Time spent in the media resolver",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"op"},
	)
	Sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "jukebox_sessions", Help: "Live playback sessions"},
	)
	Disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_disconnects_total", Help: "Session teardowns by cause"},
		[]string{"cause"},
	)
)

var once sync.Once

// Register adds every collector to reg. Later calls are no-ops.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(Commands, TracksStarted, Skips, ResolveDuration, Sessions, Disconnects)
	})
}
