package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgs == nil {
		f.msgs = map[string][][]byte{}
	}
	f.msgs[subject] = append(f.msgs[subject], data)
	return f.err
}

func TestStreamFanOut(t *testing.T) {
	s := NewStream("g1", nil)
	a, cancelA := s.Subscribe()
	b, cancelB := s.Subscribe()
	defer cancelA()
	defer cancelB()

	s.CardStateChanged(game.CardView{Index: 2, State: game.Revealed, Symbol: "x", MatchID: 1})
	s.CountersChanged(game.Counters{Matches: 1, Turns: 2, Pairs: 3})
	s.Victory()

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		ev := <-ch
		if ev.Type != TypeCard || ev.Card == nil || ev.Card.Index != 2 || ev.Game != "g1" {
			t.Errorf("%s: first event %+v", name, ev)
		}
		ev = <-ch
		if ev.Type != TypeCounters || ev.Counters == nil || ev.Counters.Turns != 2 {
			t.Errorf("%s: second event %+v", name, ev)
		}
		ev = <-ch
		if ev.Type != TypeVictory {
			t.Errorf("%s: third event %+v", name, ev)
		}
	}
}

func TestStreamSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStream("g1", nil)
	ch, cancel := s.Subscribe()
	defer cancel()
	for range subscriberBuffer * 3 {
		s.Victory()
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected full buffer of %d, got %d", subscriberBuffer, len(ch))
	}
}

func TestStreamCancelAndClose(t *testing.T) {
	s := NewStream("g1", nil)
	a, cancelA := s.Subscribe()
	b, _ := s.Subscribe()

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatal("cancelled channel still open")
	}
	if s.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", s.Subscribers())
	}

	s.Close()
	if _, ok := <-b; ok {
		t.Fatal("closed stream left channel open")
	}
	s.Victory() // must not panic on closed channels

	c, _ := s.Subscribe()
	if _, ok := <-c; ok {
		t.Fatal("subscribe after close returned an open channel")
	}
}

func TestStreamPublishesToBus(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bus down")}
	s := NewStream("g7", pub)
	s.CountersChanged(game.Counters{Pairs: 4})

	msgs := pub.msgs[Subject("g7")]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message on %s, got %d", Subject("g7"), len(msgs))
	}
	var ev Event
	if err := json.Unmarshal(msgs[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypeCounters || ev.Game != "g7" || ev.Counters.Pairs != 4 {
		t.Fatalf("decoded %+v", ev)
	}
}

func TestStreamAsPresenter(t *testing.T) {
	var _ game.Presenter = (*Stream)(nil)
}
