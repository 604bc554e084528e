package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var feedStatuses = []string{"connected", "disconnected", "error"}

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	batches     *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	overlays    *prometheus.CounterVec
	active      prometheus.Gauge
	broadcasts  *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	feedStatus  *prometheus.GaugeVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		batches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_overlay_marker_batches_total",
				Help: "Marker batches processed",
			},
			[]string{"component"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_overlay_markers_skipped_total",
				Help: "Markers dropped while decoding a batch",
			},
			[]string{"reason"},
		),
		overlays: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_overlay_overlays_total",
				Help: "Overlays attached to or detached from the chart surface",
			},
			[]string{"op"},
		),
		active: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "session_overlay_active_overlays",
				Help: "Overlays of the current generation",
			},
		),
		broadcasts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "session_overlay_broadcast_clients",
				Help:    "Channel clients reached by one marker broadcast",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_overlay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "session_overlay_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		feedStatus: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "session_overlay_feed_status",
				Help: "1 for the current push channel status",
			},
			[]string{"status"},
		),
	}
}

func (r *Recorder) RecordBatch(component string, markers int) {
	r.batches.WithLabelValues(component).Inc()
}

func (r *Recorder) RecordSkipped(reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}

// RecordOverlays counts one generation switch and sets the active gauge.
func (r *Recorder) RecordOverlays(attached, detached int) {
	r.overlays.WithLabelValues("attach").Add(float64(attached))
	r.overlays.WithLabelValues("detach").Add(float64(detached))
	r.active.Set(float64(attached))
}

func (r *Recorder) RecordBroadcast(symbol string, clients int) {
	r.broadcasts.WithLabelValues(symbol).Observe(float64(clients))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordFeedStatus(status string) {
	for _, s := range feedStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		r.feedStatus.WithLabelValues(s).Set(v)
	}
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordBatch(string, int) {}
func (Noop) RecordSkipped(string) {}
func (Noop) RecordOverlays(int, int) {}
func (Noop) RecordBroadcast(string, int) {}
func (Noop) RecordError(string) {}
func (Noop) RecordLatency(string, float64) {}
func (Noop) RecordFeedStatus(string) {}
