// apps/go-server/internal/httpserver/auth.go
//
// Authentication for the Memory backend.
//   - POST /auth/signup, /auth/login, /auth/logout; GET /auth/me.
//   - HS256 JWTs carried as a bearer token or an HttpOnly cookie.
//   - Anonymous cookie identifying guests, so their games have an owner.
//   - On signup/login the guest's live games move to the account.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/users"
)

// credentials is the request payload for signup/login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func currentUser(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

// mountAuthRoutes registers /auth/*.
func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.With(s.requireAuth).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(currentUser(r))
	})
}

// handleSignup creates a new user, signs a JWT, sets the auth cookie and
// claims the guest's games.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.users.Create(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			http.Error(w, `{"error":"Username taken"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if !s.issueSession(w, r, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(u)
}

// handleLogin authenticates the user, sets the cookie and claims the guest's games.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.users.FindByUsername(r.Context(), body.Username)
	if err != nil || !users.CheckPassword(u, body.Password) {
		http.Error(w, `{"error":"Invalid username or password"}`, http.StatusUnauthorized)
		return
	}
	if !s.issueSession(w, r, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(authUser{ID: u.ID, Username: u.Username})
}

// issueSession signs a token for u, sets the cookie and moves the caller's
// anonymous games to u. It writes the error response itself on failure.
func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, u *users.User) bool {
	tok, exp, err := signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return false
	}
	setAuthCookie(w, tok, exp)
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		if n := s.store.Claim(r.Context(), c.Value, u.ID); n > 0 {
			log.Info().Str("user", u.ID).Int("games", n).Msg("claimed guest games")
		}
	}
	return true
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := s.userFromToken(r); u != nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth rejects requests that withOptionalAuth did not authenticate.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userFromToken validates the bearer/cookie JWT and checks the user still exists.
func (s *Server) userFromToken(r *http.Request) *authUser {
	tok := bearerOrCookie(r)
	if tok == "" || s.users == nil {
		return nil
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil
	}
	u, err := s.users.FindByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return &authUser{ID: u.ID, Username: u.Username}
}

const anonCookieName = "memory_anon"

// ownerID identifies the caller as a game owner: the user ID when logged in,
// otherwise the anonymous cookie, which is set if missing.
func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) string {
	if me := currentUser(r); me != nil {
		return me.ID
	}
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	secure := os.Getenv("NODE_ENV") == "production"
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// callerID is ownerID without side effects; empty for a fresh guest.
func (s *Server) callerID(r *http.Request) string {
	if me := currentUser(r); me != nil {
		return me.ID
	}
	if c, err := r.Cookie(anonCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ------------------------------ JWT & cookies ------------------------------

func jwtSecret() []byte {
	return []byte(getEnv("JWT_SECRET", "dev_secret_change_me"))
}

// signJWT creates an HS256 JWT with id/username and a configurable expiry (JWT_EXPIRES_DAYS; default 14).
func signJWT(id, username string) (string, time.Time, error) {
	days := 14
	if v := os.Getenv("JWT_EXPIRES_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	exp := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString(jwtSecret())
	return ss, exp, err
}

func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode // required for third‑party contexts when Secure
	}
	return http.SameSiteLaxMode
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	secure := os.Getenv("NODE_ENV") == "production"
	http.SetCookie(w, &http.Cookie{
		Name:     getEnv("COOKIE_NAME", "memory_token"),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func clearAuthCookie(w http.ResponseWriter) {
	secure := os.Getenv("NODE_ENV") == "production"
	http.SetCookie(w, &http.Cookie{
		Name:     getEnv("COOKIE_NAME", "memory_token"),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(getEnv("COOKIE_NAME", "memory_token")); err == nil {
		return c.Value
	}
	return ""
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
