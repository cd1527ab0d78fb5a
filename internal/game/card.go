// apps/go-server/internal/game/card.go
//
// Card type definitions for the memory game engine.
// Defines:
//   - CardState: hidden / revealed / matched.
//   - Card: one playing piece (match id, symbol, state).
//   - CardView: client-facing projection that hides face-down symbols.

package game

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a card is asked to move to a state
// it cannot reach from its current one.
var ErrInvalidTransition = errors.New("invalid card transition")

// CardState is the visibility state of a single card.
type CardState int

const (
	Hidden CardState = iota
	Revealed
	Matched
)

// String returns the lowercase wire name ("hidden", "revealed", "matched").
func (s CardState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	case Matched:
		return "matched"
	}
	return fmt.Sprintf("CardState(%d)", int(s))
}

// MarshalText encodes the state by name so JSON payloads stay readable.
func (s CardState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *CardState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hidden":
		*s = Hidden
	case "revealed":
		*s = Revealed
	case "matched":
		*s = Matched
	default:
		return fmt.Errorf("unknown card state %q", b)
	}
	return nil
}

// Card holds the state of one card on the board.
// Two cards share an ID exactly when they form a pair.
type Card struct {
	ID     int       // Match id, 1..pairs.
	Symbol string    // Emoji shown on the card face.
	State  CardState // Hidden until flipped; Matched is terminal.
}

// Reveal turns a hidden card face up.
func (c *Card) Reveal() error {
	if c.State != Hidden {
		return fmt.Errorf("reveal %s card: %w", c.State, ErrInvalidTransition)
	}
	c.State = Revealed
	return nil
}

// Hide turns a revealed card face down again.
func (c *Card) Hide() error {
	if c.State != Revealed {
		return fmt.Errorf("hide %s card: %w", c.State, ErrInvalidTransition)
	}
	c.State = Hidden
	return nil
}

// MarkMatched locks a revealed card as part of a found pair.
func (c *Card) MarkMatched() error {
	if c.State != Revealed {
		return fmt.Errorf("match %s card: %w", c.State, ErrInvalidTransition)
	}
	c.State = Matched
	return nil
}

// CardView is the client-facing representation of a card.
// Symbol and MatchID are only included once the card is face up.
type CardView struct {
	Index   int       `json:"index"`
	State   CardState `json:"state"`
	Symbol  string    `json:"symbol,omitempty"`
	MatchID int       `json:"matchId,omitempty"`
}

// view projects c at position i of the deck.
func (c Card) view(i int) CardView {
	v := CardView{Index: i, State: c.State}
	if c.State != Hidden {
		v.Symbol = c.Symbol
		v.MatchID = c.ID
	}
	return v
}
