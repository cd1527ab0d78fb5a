// Package gametest provides test doubles for code that drives a game.Session.
package gametest

import (
	"sync"
	"time"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// Scheduler is a game.Scheduler whose callbacks only run when Fire is
// called. Safe for use from multiple goroutines.
type Scheduler struct {
	mu     sync.Mutex
	timers []*timer
}

type timer struct {
	s       *Scheduler
	f       func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc implements game.Scheduler; d is ignored.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) game.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &timer{s: s, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Pending reports how many callbacks are waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs every waiting callback and reports how many ran.
func (s *Scheduler) Fire() int {
	s.mu.Lock()
	var due []func()
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t.f)
		}
	}
	s.timers = nil
	s.mu.Unlock()

	for _, f := range due {
		f()
	}
	return len(due)
}
