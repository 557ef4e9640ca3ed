// Package faultinject implements the test-only fault-injection counter the
// original engine exposes as the INET_force_error environment variable: a
// countdown that, once exhausted, makes the next transport operation fail
// as if the peer had reset the connection. It lets integration tests drive
// the transport layer's error paths without actually killing a socket.
package faultinject

import "sync/atomic"

var counter atomic.Int64

// Set arms the fault injector to fail the Nth subsequent call to Trigger.
// A value of 0 disables injection.
func Set(n int64) {
	counter.Store(n)
}

// Enabled reports whether fault injection is currently armed.
func Enabled() bool {
	return counter.Load() > 0
}

// Trigger decrements the counter and reports whether this call should fail.
// Once the counter reaches exactly zero it fires once and disarms itself;
// a disabled injector (counter <= 0 already) never fires.
func Trigger() bool {
	for {
		n := counter.Load()
		if n <= 0 {
			return false
		}
		if counter.CompareAndSwap(n, n-1) {
			return n == 1
		}
	}
}

// Reset disables fault injection.
func Reset() {
	counter.Store(0)
}
