// apps/go-server/internal/store/memory.go
//
// In-memory registry of live games.
//
// Characteristics:
//   - Stores *Record values keyed by game ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts; nothing here is persisted.
//   - Idle games are evicted by Sweep, which also stops their timers and
//     disconnects their event subscribers.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/events"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

var (
	// ErrNotFound is returned by Get for unknown game IDs.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned by GetOwned when the game belongs to someone else.
	ErrForbidden = errors.New("forbidden")
)

// Record is one live game and everything attached to it.
type Record struct {
	ID        string
	Owner     string // user ID or anonymous cookie ID; guarded by the store once saved
	Daily     string // date key for daily games, empty otherwise
	Session   *game.Session
	Events    *events.Stream
	CreatedAt time.Time
	TouchedAt time.Time
}

// Store defines the registry interface for live games.
type Store interface {
	// Save adds or replaces a record.
	Save(ctx context.Context, r *Record) error

	// Get retrieves a record by ID and marks it as recently used.
	// Returns ErrNotFound if the game is unknown.
	Get(ctx context.Context, id string) (*Record, error)

	// GetOwned is Get plus an ownership check made under the store lock.
	// Returns ErrForbidden if owner does not own the game.
	GetOwned(ctx context.Context, id, owner string) (*Record, error)

	// Delete removes a record, closing its session and stream.
	Delete(ctx context.Context, id string) error

	// Sweep removes records untouched since cutoff and reports how many.
	Sweep(ctx context.Context, cutoff time.Time) int

	// Claim transfers every game owned by from to to and reports how many.
	Claim(ctx context.Context, from, to string) int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex       // guards games
	games map[string]*Record // keyed by Record.ID
	now   func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{games: make(map[string]*Record), now: time.Now}
}

func (m *memory) Save(ctx context.Context, r *Record) error {
	if r == nil || r.ID == "" {
		return errors.New("record without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.TouchedAt = now
	m.games[r.ID] = r
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.TouchedAt = m.now()
	return r, nil
}

func (m *memory) GetOwned(ctx context.Context, id, owner string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Owner != owner {
		return nil, ErrForbidden
	}
	r.TouchedAt = m.now()
	return r, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	r, ok := m.games[id]
	delete(m.games, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	release(r)
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	var idle []*Record
	for id, r := range m.games {
		if r.TouchedAt.Before(cutoff) {
			idle = append(idle, r)
			delete(m.games, id)
		}
	}
	m.mu.Unlock()

	for _, r := range idle {
		release(r)
	}
	return len(idle)
}

func (m *memory) Claim(ctx context.Context, from, to string) int {
	if from == "" || to == "" {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.games {
		if r.Owner == from {
			r.Owner = to
			n++
		}
	}
	return n
}

func release(r *Record) {
	if r.Session != nil {
		r.Session.Close()
	}
	if r.Events != nil {
		r.Events.Close()
	}
}

// Sweeper evicts games idle for longer than maxIdle every interval until
// ctx is cancelled.
func Sweeper(ctx context.Context, st Store, every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Sweep(ctx, now.Add(-maxIdle)); n > 0 {
				log.Info().Int("games", n).Msg("swept idle games")
			}
		}
	}
}
