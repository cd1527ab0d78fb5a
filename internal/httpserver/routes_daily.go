// apps/go-server/internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily" deal.
//   - POST /daily/new → start (or resume) today's game
//
// Every player gets the same symbols in the same order on a given UTC date
// (seeded from HMAC(salt, date)). Each owner has at most one daily game per
// date while it stays live in the store.

package httpserver

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/memory/apps/go-server/internal/daily"
)

// dailyDeal carries the seeded source and date of a daily game.
type dailyDeal struct {
	rng  *rand.Rand
	date string
}

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv   *Server
	now   func() time.Time
	date  string            // date the games map belongs to
	games map[string]string // owner|date → game ID
	mu    sync.Mutex        // guards date and games
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{srv: s, now: time.Now, games: make(map[string]string)}
	r.Post("/daily/new", dd.handleNew)
}

// dailyRes is returned by /daily/new.
type dailyRes struct {
	GameID  string `json:"gameId"`
	Date    string `json:"date"`
	Pairs   int    `json:"pairs"`
	Resumed bool   `json:"resumed"`
}

// handleNew returns the caller's live daily game for today, or deals one.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	now := d.now().UTC()
	date := daily.DateKey(now)
	owner := d.srv.ownerID(w, r)
	key := owner + "|" + date

	// Hold the lock across creation so a double click cannot deal twice.
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.date != date {
		d.date, d.games = date, make(map[string]string)
	}

	if id, ok := d.games[key]; ok {
		if rec, err := d.srv.store.GetOwned(r.Context(), id, owner); err == nil {
			_ = json.NewEncoder(w).Encode(dailyRes{GameID: id, Date: date, Pairs: rec.Session.Counters().Pairs, Resumed: true})
			return
		}
		delete(d.games, key)
	}

	deal := &dailyDeal{rng: daily.Rand(now, d.srv.cfg.DailySalt), date: date}
	rec, err := d.srv.startGame(r.Context(), owner, d.srv.cfg.DailyPairs, deal)
	if err != nil {
		writeGameError(w, err)
		return
	}
	d.games[key] = rec.ID
	_ = json.NewEncoder(w).Encode(dailyRes{GameID: rec.ID, Date: date, Pairs: d.srv.cfg.DailyPairs})
}
