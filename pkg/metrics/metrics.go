// Package metrics defines the engine's observability contract: an optional
// Recorder any connection or session layer can call into, and a package-level
// registry a concrete implementation (pkg/metrics/prometheus) registers
// against. Passing nil wherever a Recorder is accepted disables collection
// with zero overhead, matching the teacher's MetricsRecorder convention.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is implemented by anything that wants to observe connection
// lifecycle and per-operation latency for the Remote Protocol Engine. NFS and
// SMB adapters in the teacher's codebase take a nil-able recorder the same
// way; a nil Recorder here means metrics are off. Calling a method on a nil
// Recorder panics, so callers nil-check before each call (as pkg/server
// does); this package provides no no-op implementation.
type Recorder interface {
	// RecordConnectionAccepted increments the accepted-connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the cleanly-closed-connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed-connections
	// counter, incremented when a connection outlives the shutdown timeout.
	RecordConnectionForceClosed()

	// SetActiveConnections reports the current number of live connections.
	SetActiveConnections(count int32)

	// RecordOperation records one dispatched wire operation: its name (e.g.
	// "attach", "fetch", "que_events"), how long it took, and the gds error
	// code it returned, or an empty string on success.
	RecordOperation(op string, duration time.Duration, errorCode string)
}

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry enables or disables the package-level Prometheus registry.
// Call once during startup, before constructing a prometheus.Recorder.
func InitRegistry(on bool) *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
	if !on {
		registry = nil
		return nil
	}
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry(true) has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}
