// Package metrics registers the runtime core's Prometheus metrics.
//
// Grounded on the teacher's internal/adapter/nlm.Metrics: a per-subsystem
// struct of Counter/Gauge/Histogram fields, all registered against a
// prometheus.Registerer in one constructor, with a consistent name prefix.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks the session lifecycle, frame pacing, and event-queue
// Prometheus metrics the control plane exposes. All metrics use the
// xrruntime_ prefix.
type Metrics struct {
	SessionsActive prometheus.Gauge

	FramesWaited    prometheus.Counter
	FramesBegun     prometheus.Counter
	FramesDiscarded prometheus.Counter
	FramesEnded     prometheus.Counter

	FrameLatency prometheus.Histogram

	EventsPushed     prometheus.Counter
	EventsDropped    prometheus.Counter
	EventQueueDepth  prometheus.Gauge

	LayersSubmitted *prometheus.CounterVec

	CompositorErrors *prometheus.CounterVec
}

// New creates runtime metrics and registers them against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrruntime_sessions_active",
			Help: "Current number of live sessions on the instance",
		}),
		FramesWaited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrruntime_frames_waited_total",
			Help: "Total waitFrame calls across all sessions",
		}),
		FramesBegun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrruntime_frames_begun_total",
			Help: "Total beginFrame calls that began a frame, including ones that discarded a stale frame",
		}),
		FramesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrruntime_frames_discarded_total",
			Help: "Total frames discarded by a second beginFrame, by endFrame, or by endSession",
		}),
		FramesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrruntime_frames_ended_total",
			Help: "Total endFrame calls that committed a layer submission",
		}),
		FrameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xrruntime_frame_latency_seconds",
			Help:    "Wall-clock time between waitFrame and endFrame",
			Buckets: prometheus.DefBuckets,
		}),
		EventsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrruntime_events_pushed_total",
			Help: "Total events pushed onto the instance event queue",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrruntime_events_dropped_total",
			Help: "Total events dropped because the event queue was full",
		}),
		EventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrruntime_event_queue_depth",
			Help: "Current depth of the instance event queue",
		}),
		LayersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xrruntime_layers_submitted_total",
			Help: "Total composition layers submitted by kind",
		}, []string{"kind"}),
		CompositorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xrruntime_compositor_errors_total",
			Help: "Total compositor call failures by operation",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.SessionsActive,
		m.FramesWaited,
		m.FramesBegun,
		m.FramesDiscarded,
		m.FramesEnded,
		m.FrameLatency,
		m.EventsPushed,
		m.EventsDropped,
		m.EventQueueDepth,
		m.LayersSubmitted,
		m.CompositorErrors,
	)

	return m
}
