// apps/go-server/internal/game/presenter.go
//
// Presentation contract between a Session and whatever renders it
// (SSE stream, NATS subject, tests). The session never touches the view
// directly; it only reports state changes through these callbacks.

package game

// Counters is the scoreboard reported after every completed turn.
type Counters struct {
	Matches int `json:"matches"`
	Turns   int `json:"turns"`
	Pairs   int `json:"pairs"`
}

// Presenter receives state changes from a Session.
//
// Callbacks run while the session lock is held and in the order the changes
// happened. Implementations must not call back into the Session.
type Presenter interface {
	// CardStateChanged fires after a card is revealed, hidden or matched.
	CardStateChanged(card CardView)
	// CountersChanged fires after a deal and after every resolution.
	CountersChanged(c Counters)
	// Victory fires once, when the last pair is matched.
	Victory()
}

type nopPresenter struct{}

func (nopPresenter) CardStateChanged(CardView) {}
func (nopPresenter) CountersChanged(Counters)  {}
func (nopPresenter) Victory()                  {}
