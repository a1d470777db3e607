// Package metrics exposes Prometheus counters for live sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "livemic"

// Metrics groups the session collectors. A nil *Metrics records nothing.
type Metrics struct {
	transitions    *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	chunksQueued   prometheus.Counter
	interruptions  prometheus.Counter
	decodeErrors   prometheus.Counter
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

// New creates the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Session status transitions by target status",
			},
			[]string{"status"},
		),
		framesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_sent_total",
				Help:      "Media frames sent to the live service",
			},
			[]string{"kind"}, // kind: audio, video
		),
		framesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Media frames captured but not sent",
			},
			[]string{"reason"}, // reason: muted, not_live, encode, snapshot
		),
		chunksQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_chunks_scheduled_total",
			Help:      "Received audio chunks scheduled for playback",
		}),
		interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_interruptions_total",
			Help:      "Playback resets caused by model interruption",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_decode_errors_total",
			Help:      "Received audio payloads dropped as undecodable",
		}),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool invocations by tool and outcome",
			},
			[]string{"tool", "status"}, // status: ok, error
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Duration of local tool execution in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"tool"},
		),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Number of sessions currently live",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.transitions,
			m.framesSent,
			m.framesDropped,
			m.chunksQueued,
			m.interruptions,
			m.decodeErrors,
			m.toolCalls,
			m.toolDuration,
			m.activeSessions,
		)
	}
	return m
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// SetLive records whether a session is currently live.
func (m *Metrics) SetLive(live bool) {
	if m == nil {
		return
	}
	if live {
		m.activeSessions.Set(1)
		return
	}
	m.activeSessions.Set(0)
}

func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChunkScheduled() {
	if m == nil {
		return
	}
	m.chunksQueued.Inc()
}

func (m *Metrics) Interrupted() {
	if m == nil {
		return
	}
	m.interruptions.Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// ToolCall records one tool dispatch.
func (m *Metrics) ToolCall(tool string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
