// Package metrics exposes Prometheus instruments for the voice pipeline.
//
// All methods are safe to call on a nil *Metrics, so components can take an
// optional instance.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame kinds for FrameSent.
const (
	FrameAudio         = "audio"
	FrameActivityStart = "activity_start"
	FrameActivityEnd   = "activity_end"
	FrameText          = "text"
)

// Metrics contains the Prometheus metrics of one process.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Upstream
	FramesSent    *prometheus.CounterVec
	FramesDropped prometheus.Counter
	SendErrors    prometheus.Counter

	// Downstream
	EventsReceived *prometheus.CounterVec
	ProtocolErrors prometheus.Counter
	ServerErrors   prometheus.Counter
	Turns          *prometheus.CounterVec

	// Playback
	ChunksPlayed     prometheus.Counter
	PlaybackSeconds  prometheus.Counter
	DecodeErrors     prometheus.Counter
	Interruptions    prometheus.Counter
	PlaybackQueueLen prometheus.Gauge

	// Session
	SessionState    prometheus.Gauge
	ConnectDuration prometheus.Histogram
	ActivityLength  prometheus.Histogram
}

// New creates and registers the metrics with reg. A nil reg uses the default
// registry.
func New(reg *prometheus.Registry) *Metrics {
	var (
		r prometheus.Registerer = prometheus.DefaultRegisterer
		g prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		r, g = reg, reg
	}
	f := promauto.With(r)
	return &Metrics{
		gatherer: g,

		FramesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderchat_frames_sent_total",
			Help: "Total number of frames sent to the Live service",
		}, []string{"kind"}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_capture_frames_dropped_total",
			Help: "Captured chunks dropped because no activity interval was open",
		}),
		SendErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_send_errors_total",
			Help: "Total number of failed sends",
		}),

		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderchat_events_received_total",
			Help: "Total number of decoded inbound events",
		}, []string{"type"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_protocol_errors_total",
			Help: "Total number of malformed inbound frames",
		}),
		ServerErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_server_errors_total",
			Help: "Total number of error frames from the service",
		}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderchat_turns_total",
			Help: "Total number of closed model turns",
		}, []string{"status"}),

		ChunksPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_chunks_played_total",
			Help: "Total number of audio chunks played to completion",
		}),
		PlaybackSeconds: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_playback_seconds_total",
			Help: "Total seconds of audio played",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_decode_errors_total",
			Help: "Total number of audio chunks skipped because they failed to decode",
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "wonderchat_interruptions_total",
			Help: "Total number of interrupted model turns",
		}),
		PlaybackQueueLen: f.NewGauge(prometheus.GaugeOpts{
			Name: "wonderchat_playback_queue_length",
			Help: "Audio parts waiting to be played",
		}),

		SessionState: f.NewGauge(prometheus.GaugeOpts{
			Name: "wonderchat_session_state",
			Help: "Current session state (0 disconnected, 1 connecting, 2 awaiting setup ack, 3 connected, 4 closing)",
		}),
		ConnectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wonderchat_connect_duration_seconds",
			Help:    "Time from Connect to setup acknowledgement",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		ActivityLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wonderchat_activity_duration_seconds",
			Help:    "Length of reported speech activity intervals",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~30s
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}

// EventReceived counts one inbound event by its type name.
func (m *Metrics) EventReceived(typ string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(typ).Inc()
}

func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

func (m *Metrics) ServerError() {
	if m == nil {
		return
	}
	m.ServerErrors.Inc()
}

func (m *Metrics) TurnClosed(status string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(status).Inc()
}

// ChunkPlayed records one chunk of the given duration.
func (m *Metrics) ChunkPlayed(d time.Duration) {
	if m == nil {
		return
	}
	m.ChunksPlayed.Inc()
	m.PlaybackSeconds.Add(d.Seconds())
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) Interrupted() {
	if m == nil {
		return
	}
	m.Interruptions.Inc()
}

func (m *Metrics) SetQueueLen(n int) {
	if m == nil {
		return
	}
	m.PlaybackQueueLen.Set(float64(n))
}

// SetSessionState records the numeric session state.
func (m *Metrics) SetSessionState(state int) {
	if m == nil {
		return
	}
	m.SessionState.Set(float64(state))
}

func (m *Metrics) Connected(d time.Duration) {
	if m == nil {
		return
	}
	m.ConnectDuration.Observe(d.Seconds())
}

func (m *Metrics) Activity(d time.Duration) {
	if m == nil {
		return
	}
	m.ActivityLength.Observe(d.Seconds())
}
