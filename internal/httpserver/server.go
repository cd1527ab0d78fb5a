// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Memory backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     zerolog access logs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): create, view, select, reset, delete,
//     and a Server-Sent Events stream of presentation events.
//   - Daily deal endpoint: mounted under /daily.
//   - Auth endpoints: /auth/* (see auth.go).
//
// Notes:
//   - Every game belongs to whoever created it: the logged-in user, or the
//     anonymous cookie for guests. Other callers get 403.
//   - The SSE route is mounted outside the handler timeout.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/events"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
	"github.com/robalobadob/memory/apps/go-server/internal/users"
)

// Config holds the game settings the server applies to every new game.
type Config struct {
	DefaultPairs int              // used when /game/new omits pairs
	DailyPairs   int              // pair count of the daily deal
	Delay        time.Duration    // resolution delay; game.DefaultDelay when zero
	DailySalt    string           // HMAC key for the daily seed
	Publisher    events.Publisher // optional event mirror (NATS)
	Pool         *symbols.Pool    // symbols.Default() when nil
	Scheduler    game.Scheduler   // wall clock when nil
}

// Server bundles router, live game store and account store.
type Server struct {
	r     *chi.Mux
	store store.Store
	users *users.Store
	cfg   Config
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, us *users.Store, cfg Config) *Server {
	if cfg.DefaultPairs <= 0 {
		cfg.DefaultPairs = 8
	}
	if cfg.DailyPairs <= 0 {
		cfg.DailyPairs = cfg.DefaultPairs
	}
	if cfg.DailySalt == "" {
		cfg.DailySalt = "local_dev_salt"
	}
	s := &Server{r: chi.NewRouter(), store: st, users: us, cfg: cfg}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer)      // recover from panics
	s.r.Use(jsonContentType)      // default JSON responses
	s.r.Use(corsFromEnv)          // credentials-friendly CORS
	s.r.Use(s.withOptionalAuth()) // user context when a token is present

	// Long-lived event stream: no handler timeout.
	s.r.Get("/game/{id}/events", s.handleEvents)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"memory-go","endpoints":["/health","POST /game/new","POST /game/{id}/select","GET /game/{id}/events","POST /daily/new","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		// Game endpoints: guests can play
		r.Post("/game/new", s.handleNewGame)
		r.Get("/game/{id}", s.handleView)
		r.Post("/game/{id}/select", s.handleSelect)
		r.Post("/game/{id}/reset", s.handleReset)
		r.Delete("/game/{id}", s.handleDelete)

		s.mountDaily(r)
		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]string{"error": "not_found", "path": r.URL.Path})
		http.Error(w, string(body), http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// accessLog writes one line per request through the request-scoped logger.
func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("reqId", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Pairs *int `json:"pairs"` // optional; Config.DefaultPairs when absent
}
type newGameRes struct {
	GameID string    `json:"gameId"`
	Pairs  int       `json:"pairs"`
	View   game.View `json:"view"`
}

// handleNewGame deals a new game owned by the caller.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	// An empty body asks for the default pair count.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	pairs := s.cfg.DefaultPairs
	if req.Pairs != nil {
		pairs = *req.Pairs
	}

	rec, err := s.startGame(r.Context(), s.ownerID(w, r), pairs, nil)
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: rec.ID, Pairs: pairs, View: rec.Session.Snapshot()})
}

// startGame builds a session plus its event stream and registers it.
// deal is nil for a random deal.
func (s *Server) startGame(ctx context.Context, owner string, pairs int, deal *dailyDeal) (*store.Record, error) {
	id := uuid.NewString()
	stream := events.NewStream(id, s.cfg.Publisher)
	opts := game.Options{
		ID:        id,
		Pairs:     pairs,
		Delay:     s.cfg.Delay,
		Pool:      s.cfg.Pool,
		Scheduler: s.cfg.Scheduler,
		Presenter: stream,
	}
	if deal != nil {
		opts.Rand = deal.rng
	}
	sess, err := game.New(opts)
	if err != nil {
		stream.Close()
		return nil, err
	}
	rec := &store.Record{ID: id, Owner: owner, Session: sess, Events: stream}
	if deal != nil {
		rec.Daily = deal.date
	}
	if err := s.store.Save(ctx, rec); err != nil {
		sess.Close()
		stream.Close()
		return nil, err
	}
	log.Info().Str("gameId", id).Int("pairs", pairs).Str("daily", rec.Daily).Msg("game started")
	return rec, nil
}

// writeGameError maps game construction errors to HTTP responses.
func writeGameError(w http.ResponseWriter, err error) {
	if errors.Is(err, game.ErrInvalidPairCount) || errors.Is(err, symbols.ErrPoolExhausted) {
		http.Error(w, `{"error":"invalid_pairs"}`, http.StatusBadRequest)
		return
	}
	log.Error().Err(err).Msg("start game")
	http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
}

// ownedGame loads the game named in the URL and checks the caller owns it.
// It writes the error response itself and reports false on failure.
func (s *Server) ownedGame(w http.ResponseWriter, r *http.Request) (*store.Record, bool) {
	rec, err := s.store.GetOwned(r.Context(), chi.URLParam(r, "id"), s.callerID(r))
	switch {
	case errors.Is(err, store.ErrForbidden):
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return nil, false
	case err != nil:
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(rec.Session.Snapshot())
}

// selectReq/Res payloads for POST /game/{id}/select.
type selectReq struct {
	Index *int `json:"index"`
}
type selectRes struct {
	Accepted bool      `json:"accepted"`
	View     game.View `json:"view"`
}

// handleSelect forwards a card activation to the session. Ignored
// selections are not errors: they come back with accepted=false.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	rec, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	accepted := rec.Session.SelectCard(*req.Index)
	_ = json.NewEncoder(w).Encode(selectRes{Accepted: accepted, View: rec.Session.Snapshot()})
}

// handleReset deals a fresh deck with the same pair count.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	if err := rec.Session.Reset(); err != nil {
		log.Error().Err(err).Str("gameId", rec.ID).Msg("reset game")
		http.Error(w, `{"error":"reset_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rec.Session.Snapshot())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"delete_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
