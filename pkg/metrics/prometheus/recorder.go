// Package prometheus implements metrics.Recorder on top of
// github.com/prometheus/client_golang, mirroring the teacher's
// pkg/metrics/prometheus instrumentation style: promauto-registered
// counters/gauges/histograms against a package-level registry, with New
// returning nil when metrics are disabled so callers can pass the result
// straight through without a nil check of their own.
package prometheus

import (
	"time"

	"github.com/fbremote/fbremote/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// recorder is the Prometheus-backed implementation of metrics.Recorder.
type recorder struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	operationsTotal        *prometheus.CounterVec
	operationDuration      *prometheus.HistogramVec
}

// New creates a Prometheus-backed metrics.Recorder. Returns nil if
// InitRegistry(true) has not been called, so the engine runs with zero
// metrics overhead when metrics are configured off.
func New() metrics.Recorder {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &recorder{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fbremote_connections_accepted_total",
			Help: "Total number of accepted connections.",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fbremote_connections_closed_total",
			Help: "Total number of connections closed cleanly.",
		}),
		connectionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fbremote_connections_force_closed_total",
			Help: "Total number of connections force-closed past the shutdown timeout.",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fbremote_active_connections",
			Help: "Current number of live connections.",
		}),
		operationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fbremote_operations_total",
			Help: "Total number of dispatched wire operations by name and outcome.",
		}, []string{"operation", "error_code"}),
		operationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "fbremote_operation_duration_milliseconds",
			Help: "Duration of dispatched wire operations in milliseconds.",
			Buckets: []float64{
				0.5,  // sub-millisecond handshake/ping work
				1,    // attach, transaction start
				5,    // prepare, allocate statement
				10,   // execute
				50,   // fetch batch
				100,  // larger fetch batch
				500,  // service_info queries
				1000, // slow path
			},
		}, []string{"operation"}),
	}
}

func (r *recorder) RecordConnectionAccepted()    { r.connectionsAccepted.Inc() }
func (r *recorder) RecordConnectionClosed()      { r.connectionsClosed.Inc() }
func (r *recorder) RecordConnectionForceClosed() { r.connectionsForceClosed.Inc() }

func (r *recorder) SetActiveConnections(count int32) {
	r.activeConnections.Set(float64(count))
}

func (r *recorder) RecordOperation(op string, duration time.Duration, errorCode string) {
	r.operationsTotal.WithLabelValues(op, errorCode).Inc()
	r.operationDuration.WithLabelValues(op).Observe(float64(duration.Milliseconds()))
}
