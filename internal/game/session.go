// apps/go-server/internal/game/session.go
//
// Core game engine for a single memory-game session.
// Responsibilities:
//   - Deal a deck of 2×pairs cards from distinct symbols (Initialize).
//   - Shuffle the deck with an unbiased Fisher–Yates pass.
//   - Sequence selections: reveal, lock after the second card, resolve after
//     a fixed delay.
//   - Track matches and turns; declare victory once every pair is found.
//
// Selection sub-state:
//
//	Idle(0) --select--> One(1) --select--> Two(2, locked) --delay--> Idle(0)
//
// Notes:
//   - Resolution runs on a Scheduler callback; Reset/Initialize cancel it and
//     bump the generation so a callback already in flight is discarded.
//   - All state is guarded by one mutex; presenter callbacks run under it.
package game

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
)

// DefaultDelay is how long two face-up cards stay visible before resolution.
const DefaultDelay = 1000 * time.Millisecond

// ErrInvalidPairCount is returned for a pair count below one.
var ErrInvalidPairCount = errors.New("pair count must be positive")

// Options configures a new Session. Zero values select the defaults.
type Options struct {
	ID        string // random UUID when empty
	Pairs     int
	Delay     time.Duration // DefaultDelay when zero
	Pool      *symbols.Pool // symbols.Default() when nil
	Rand      *rand.Rand    // crypto-seeded ChaCha8 when nil
	Scheduler Scheduler     // WallClock when nil
	Presenter Presenter     // discards events when nil
}

// Session is one game: its deck, selection sequencing and scoreboard.
type Session struct {
	ID string

	mu        sync.Mutex
	pool      symbols.Pool
	rng       *rand.Rand
	delay     time.Duration
	scheduler Scheduler
	presenter Presenter

	pairs    int
	deck     []Card
	selected []int // deck indices, at most 2
	matches  int
	turns    int
	locked   bool
	complete bool

	gen     uint64
	pending Timer
}

// New constructs a session, deals it and shuffles the deck.
// It fails without creating a game if the pair count is invalid.
func New(opts Options) (*Session, error) {
	s := &Session{
		ID:        opts.ID,
		delay:     opts.Delay,
		rng:       opts.Rand,
		scheduler: opts.Scheduler,
		presenter: opts.Presenter,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.delay <= 0 {
		s.delay = DefaultDelay
	}
	if s.rng == nil {
		s.rng = newRand()
	}
	if s.scheduler == nil {
		s.scheduler = WallClock{}
	}
	if s.presenter == nil {
		s.presenter = nopPresenter{}
	}
	if opts.Pool != nil {
		s.pool = *opts.Pool
	} else {
		s.pool = symbols.Default()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initialize(opts.Pairs); err != nil {
		return nil, err
	}
	s.shuffle()
	s.presenter.CountersChanged(s.counters())
	return s, nil
}

// newRand returns a ChaCha8 source seeded from crypto/rand.
func newRand() *rand.Rand {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}

// Initialize deals a fresh, unshuffled deck of pairs pairs and zeroes the
// scoreboard. Any pending resolution is discarded. On error the current
// game is left untouched.
func (s *Session) Initialize(pairs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initialize(pairs); err != nil {
		return err
	}
	s.presenter.CountersChanged(s.counters())
	return nil
}

func (s *Session) initialize(pairs int) error {
	if pairs <= 0 {
		return fmt.Errorf("initialize with %d pairs: %w", pairs, ErrInvalidPairCount)
	}
	faces, err := s.pool.Draw(pairs, s.rng)
	if err != nil {
		return fmt.Errorf("initialize with %d pairs: %w", pairs, err)
	}

	deck := make([]Card, 0, 2*pairs)
	for i, sym := range faces {
		deck = append(deck,
			Card{ID: i + 1, Symbol: sym},
			Card{ID: i + 1, Symbol: sym},
		)
	}

	s.cancelPending()
	s.pairs = pairs
	s.deck = deck
	s.selected = s.selected[:0]
	s.matches, s.turns = 0, 0
	s.locked, s.complete = false, false
	return nil
}

// Shuffle permutes the deck uniformly at random.
func (s *Session) Shuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuffle()
}

func (s *Session) shuffle() { fisherYates(s.rng, s.deck) }

// fisherYates permutes xs in place: for i from the last index down to 1,
// swap element i with one drawn uniformly from [0, i].
func fisherYates[T any](rng *rand.Rand, xs []T) {
	for i := len(xs) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// Reset deals and shuffles a new game with the same pair count,
// cancelling any pending resolution.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initialize(s.pairs); err != nil {
		return err
	}
	s.shuffle()
	s.presenter.CountersChanged(s.counters())
	return nil
}

// SelectCard is the player-facing entry point. It reports whether the
// selection was honoured; selections while locked, after victory, out of
// range or on a card that is not face down are ignored.
func (s *Session) SelectCard(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked || s.complete || index < 0 || index >= len(s.deck) {
		return false
	}
	c := &s.deck[index]
	if c.Reveal() != nil {
		return false
	}
	s.presenter.CardStateChanged(c.view(index))
	s.selected = append(s.selected, index)

	if len(s.selected) == 2 {
		s.locked = true
		gen := s.gen
		s.pending = s.scheduler.AfterFunc(s.delay, func() { s.resolve(gen) })
	}
	return true
}

// resolve settles the two selected cards. It runs once per turn, on the
// scheduler, and is a no-op if the deal it was scheduled for is gone.
func (s *Session) resolve(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || len(s.selected) != 2 {
		return
	}
	s.pending = nil

	a, b := s.selected[0], s.selected[1]
	ca, cb := &s.deck[a], &s.deck[b]
	if ca.ID == cb.ID {
		_ = ca.MarkMatched()
		_ = cb.MarkMatched()
		s.presenter.CardStateChanged(ca.view(a))
		s.presenter.CardStateChanged(cb.view(b))
		s.matches++
		if s.matches == s.pairs && !s.complete {
			s.complete = true
			s.presenter.Victory()
		}
	} else {
		_ = ca.Hide()
		_ = cb.Hide()
		s.presenter.CardStateChanged(ca.view(a))
		s.presenter.CardStateChanged(cb.view(b))
	}

	s.turns++
	s.selected = s.selected[:0]
	s.locked = false
	s.presenter.CountersChanged(s.counters())
}

// cancelPending stops the resolution timer and invalidates any callback
// that already fired but has not taken the lock yet.
func (s *Session) cancelPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
}

// Close cancels any pending resolution. The session must not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPending()
}

func (s *Session) counters() Counters {
	return Counters{Matches: s.matches, Turns: s.turns, Pairs: s.pairs}
}

// Counters returns the current scoreboard.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters()
}

// Pending reports whether a resolution is scheduled.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Complete reports whether every pair has been found.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// Deck returns a copy of the deck in board order.
func (s *Session) Deck() []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Card(nil), s.deck...)
}

// View is the client-facing snapshot of a session.
type View struct {
	ID       string     `json:"id"`
	Cards    []CardView `json:"cards"`
	Selected []int      `json:"selected"`
	Counters
	Locked   bool `json:"locked"`
	Complete bool `json:"complete"`
}

// Snapshot returns the current state with face-down symbols withheld.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := make([]CardView, len(s.deck))
	for i, c := range s.deck {
		cards[i] = c.view(i)
	}
	return View{
		ID:       s.ID,
		Cards:    cards,
		Selected: append([]int{}, s.selected...),
		Counters: s.counters(),
		Locked:   s.locked,
		Complete: s.complete,
	}
}
