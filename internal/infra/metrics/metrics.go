// Package metrics exposes playback metrics for Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/guildbox/internal/app/playback"
)

// Recorder turns playback events into metrics.
type Recorder struct {
	registry *prometheus.Registry

	tracksStarted   prometheus.Counter
	songsQueued     prometheus.Counter
	resolveFailures prometheus.Counter
	skips           prometheus.Counter
	events          *prometheus.CounterVec
	guilds          prometheus.Gauge
	playingGuilds   prometheus.Gauge

	mu      sync.Mutex
	playing map[snowflake.ID]bool
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildbox_tracks_started_total",
			Help: "Tracks started",
		}),
		songsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildbox_songs_queued_total",
			Help: "Songs appended to a queue",
		}),
		resolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildbox_resolve_failures_total",
			Help: "Songs that could not be resolved or started",
		}),
		skips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildbox_skips_total",
			Help: "Skip requests",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbox_playback_events_total",
			Help: "Playback events by type",
		}, []string{"type"}),
		guilds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guildbox_guilds",
			Help: "Guilds with music state",
		}),
		playingGuilds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guildbox_playing_guilds",
			Help: "Guilds currently playing or paused",
		}),
		playing: make(map[snowflake.ID]bool),
	}

	r.registry.MustRegister(
		r.tracksStarted,
		r.songsQueued,
		r.resolveFailures,
		r.skips,
		r.events,
		r.guilds,
		r.playingGuilds,
	)
	return r
}

// Observe records one playback event.
func (r *Recorder) Observe(e playback.Event) {
	r.events.WithLabelValues(e.Type.String()).Inc()

	switch e.Type {
	case playback.EventTrackStarted:
		r.tracksStarted.Inc()
	case playback.EventSongQueued:
		r.songsQueued.Inc()
	case playback.EventResolveFailed:
		r.resolveFailures.Inc()
	case playback.EventSongsSkipped:
		r.skips.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Status.State == playback.StateStopped {
		delete(r.playing, e.GuildID)
	} else {
		r.playing[e.GuildID] = true
	}
	r.playingGuilds.Set(float64(len(r.playing)))
}

// SetGuilds records the number of guilds with state.
func (r *Recorder) SetGuilds(n int) {
	r.guilds.Set(float64(n))
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
