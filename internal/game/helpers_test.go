package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
)

// manualScheduler records callbacks instead of running them; tests fire
// them explicitly.
type manualScheduler struct {
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// fire runs every live timer once and reports how many ran.
func (m *manualScheduler) fire() int {
	n := 0
	pending := m.timers
	m.timers = nil
	for _, t := range pending {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.f()
		n++
	}
	return n
}

// recorder is a Presenter that keeps everything it is told.
type recorder struct {
	cards    []CardView
	counters []Counters
	victory  int
}

func (r *recorder) CardStateChanged(c CardView) { r.cards = append(r.cards, c) }
func (r *recorder) CountersChanged(c Counters)  { r.counters = append(r.counters, c) }
func (r *recorder) Victory()                    { r.victory++ }

func testPool(n int) *symbols.Pool {
	list := make([]string, n)
	for i := range list {
		list[i] = fmt.Sprintf("s%02d", i)
	}
	p := symbols.NewPool(list)
	return &p
}

type fixture struct {
	s     *Session
	sched *manualScheduler
	rec   *recorder
}

func newFixture(pairs int, seed uint64) (*fixture, error) {
	f := &fixture{sched: &manualScheduler{}, rec: &recorder{}}
	s, err := New(Options{
		Pairs:     pairs,
		Pool:      testPool(12),
		Rand:      rand.New(rand.NewPCG(seed, seed+1)),
		Scheduler: f.sched,
		Presenter: f.rec,
	})
	if err != nil {
		return nil, err
	}
	f.s = s
	return f, nil
}

// pairIndices returns the deck positions of each match id.
func pairIndices(deck []Card) map[int][]int {
	out := make(map[int][]int)
	for i, c := range deck {
		out[c.ID] = append(out[c.ID], i)
	}
	return out
}
