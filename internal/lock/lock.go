// Package lock provides mutex types which can be switched to deadlock
// detecting implementations at runtime.
package lock

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

type Mutex = deadlock.Mutex
type RWMutex = deadlock.RWMutex

func init() {
	// detection is opt-in as it has a noticeable overhead
	deadlock.Opts.Disable = true
}

// EnableDetection turns on lock order and lock timeout checks for all
// the mutexes of this package. It should be called before any lock is used.
func EnableDetection(timeout time.Duration) {
	deadlock.Opts.Disable = false
	if timeout > 0 {
		deadlock.Opts.DeadlockTimeout = timeout
	}
}
