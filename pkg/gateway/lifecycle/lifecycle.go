// Package lifecycle tracks the process lifecycle state shared across
// handlers, used for readiness draining during graceful shutdown.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	draining atomic.Bool
}

// SetDraining flips the gateway into or out of drain mode. While draining,
// readiness fails and new live sessions are refused; established sessions
// keep running until the grace period ends.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
