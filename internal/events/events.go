// apps/go-server/internal/events/events.go
//
// Per-game presentation event stream.
// Responsibilities:
//   - Implement game.Presenter for one game.
//   - Fan events out to live subscribers (SSE connections) without ever
//     blocking the game: a subscriber that falls behind loses events.
//   - Optionally forward every event, JSON-encoded, to a Publisher (NATS).

package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// Event types.
const (
	TypeCard     = "card"
	TypeCounters = "counters"
	TypeVictory  = "victory"
)

// subscriberBuffer bounds how far a subscriber may fall behind.
const subscriberBuffer = 32

// Event is one state change reported to the presentation layer.
type Event struct {
	Type     string         `json:"type"`
	Game     string         `json:"game"`
	Card     *game.CardView `json:"card,omitempty"`
	Counters *game.Counters `json:"counters,omitempty"`
	At       time.Time      `json:"at"`
}

// Publisher forwards encoded events to an external bus.
// *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Stream distributes the events of a single game.
type Stream struct {
	game    string
	subject string
	pub     Publisher

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewStream creates the stream for gameID. pub may be nil.
func NewStream(gameID string, pub Publisher) *Stream {
	return &Stream{
		game:    gameID,
		subject: Subject(gameID),
		pub:     pub,
		subs:    make(map[chan Event]struct{}),
	}
}

// Subject is the bus subject a game's events are published on.
func Subject(gameID string) string { return "memory.game." + gameID }

// Subscribe registers a new listener. The returned cancel func must be
// called when the listener goes away; the channel is closed either by
// cancel or by Close.
func (s *Stream) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers reports the number of live listeners.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close disconnects every subscriber. Later events are dropped.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

func (s *Stream) publish(ev Event) {
	ev.Game = s.game
	ev.At = time.Now().UTC()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("gameId", s.game).Str("type", ev.Type).Msg("subscriber behind, event dropped")
		}
	}
	s.mu.Unlock()

	if s.pub == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		log.Warn().Err(err).Str("subject", s.subject).Msg("publish event")
	}
}

// CardStateChanged implements game.Presenter.
func (s *Stream) CardStateChanged(c game.CardView) {
	s.publish(Event{Type: TypeCard, Card: &c})
}

// CountersChanged implements game.Presenter.
func (s *Stream) CountersChanged(c game.Counters) {
	s.publish(Event{Type: TypeCounters, Counters: &c})
}

// Victory implements game.Presenter.
func (s *Stream) Victory() {
	s.publish(Event{Type: TypeVictory})
}
