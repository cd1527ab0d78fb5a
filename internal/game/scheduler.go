// apps/go-server/internal/game/scheduler.go
//
// Deferred-callback abstraction used for card resolution.
// Production code uses the wall clock (time.AfterFunc); tests swap in a
// scheduler they can fire by hand.

package game

import "time"

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop prevents the callback from running. It reports false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// Scheduler runs f once after d elapses, without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules callbacks on real time.
type WallClock struct{}

// AfterFunc wraps time.AfterFunc.
func (WallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
