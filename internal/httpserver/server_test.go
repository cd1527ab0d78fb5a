package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/game/gametest"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
	"github.com/robalobadob/memory/apps/go-server/internal/users"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	sched *gametest.Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	schema, err := fs.ReadFile(assets.Migrations(), "001_users.sql")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatal(err)
	}

	list := make([]string, 12)
	for i := range list {
		list[i] = fmt.Sprintf("sym%d", i)
	}
	pool := symbols.NewPool(list)

	env := &testEnv{store: store.NewMemoryStore(), sched: &gametest.Scheduler{}}
	srv := New(env.store, users.NewStore(db), Config{
		DefaultPairs: 4,
		DailyPairs:   6,
		Pool:         &pool,
		Scheduler:    env.sched,
	})
	env.ts = httptest.NewServer(srv.Router())
	t.Cleanup(env.ts.Close)
	return env
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return res.StatusCode
}

func (e *testEnv) newGame(t *testing.T, c *http.Client, pairs int) string {
	t.Helper()
	var res newGameRes
	if code := e.do(t, c, http.MethodPost, "/game/new", map[string]int{"pairs": pairs}, &res); code != http.StatusOK {
		t.Fatalf("new game: status %d", code)
	}
	return res.GameID
}

// pairsOf looks the deck up server-side, which the API deliberately hides.
func (e *testEnv) pairsOf(t *testing.T, id string) map[int][]int {
	t.Helper()
	rec, err := e.store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	out := map[int][]int{}
	for i, c := range rec.Session.Deck() {
		out[c.ID] = append(out[c.ID], i)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]bool
	if code := env.do(t, newClient(t), http.MethodGet, "/health", nil, &body); code != http.StatusOK || !body["ok"] {
		t.Fatalf("health: %d %v", code, body)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	env := newTestEnv(t)
	res, err := newClient(t).Get(env.ts.URL + "/nope%22x")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("404 body is not JSON: %v", err)
	}
	if body["error"] != "not_found" || body["path"] != `/nope"x` {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestNewGame(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)

	t.Run("default pairs", func(t *testing.T) {
		var res newGameRes
		if code := env.do(t, c, http.MethodPost, "/game/new", nil, &res); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if res.Pairs != 4 || len(res.View.Cards) != 8 {
			t.Fatalf("unexpected game %+v", res)
		}
		for _, card := range res.View.Cards {
			if card.Symbol != "" {
				t.Fatalf("face-down symbol leaked: %+v", card)
			}
		}
	})

	for _, pairs := range []int{0, -1, 13} {
		t.Run(fmt.Sprintf("invalid %d", pairs), func(t *testing.T) {
			code := env.do(t, c, http.MethodPost, "/game/new", map[string]int{"pairs": pairs}, nil)
			if code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestPlayThroughHTTP(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	id := env.newGame(t, c, 2)
	byID := env.pairsOf(t, id)
	sel := "/game/" + id + "/select"

	var res selectRes
	env.do(t, c, http.MethodPost, sel, map[string]int{"index": byID[1][0]}, &res)
	if !res.Accepted {
		t.Fatal("first card rejected")
	}
	env.do(t, c, http.MethodPost, sel, map[string]int{"index": byID[1][1]}, &res)
	if !res.Accepted || !res.View.Locked {
		t.Fatalf("second card: %+v", res)
	}
	env.do(t, c, http.MethodPost, sel, map[string]int{"index": byID[2][0]}, &res)
	if res.Accepted {
		t.Fatal("third card accepted while locked")
	}

	if n := env.sched.Fire(); n != 1 {
		t.Fatalf("expected one resolution, ran %d", n)
	}

	var view game.View
	env.do(t, c, http.MethodGet, "/game/"+id, nil, &view)
	if view.Matches != 1 || view.Turns != 1 || view.Locked {
		t.Fatalf("after resolution: %+v", view)
	}
	if view.Cards[byID[1][0]].State != game.Matched {
		t.Fatalf("pair not matched: %+v", view.Cards[byID[1][0]])
	}

	env.do(t, c, http.MethodPost, sel, map[string]int{"index": byID[2][0]}, &res)
	env.do(t, c, http.MethodPost, sel, map[string]int{"index": byID[2][1]}, &res)
	env.sched.Fire()
	env.do(t, c, http.MethodGet, "/game/"+id, nil, &view)
	if !view.Complete || view.Turns != 2 || view.Matches != 2 {
		t.Fatalf("expected completed game, got %+v", view)
	}
}

func TestSelectValidation(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	id := env.newGame(t, c, 2)

	if code := env.do(t, c, http.MethodPost, "/game/"+id+"/select", map[string]string{}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing index: expected 400, got %d", code)
	}
	var res selectRes
	if code := env.do(t, c, http.MethodPost, "/game/"+id+"/select", map[string]int{"index": 99}, &res); code != http.StatusOK || res.Accepted {
		t.Fatalf("out of range: %d %+v", code, res)
	}
	if code := env.do(t, c, http.MethodGet, "/game/nope", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown game: expected 404, got %d", code)
	}
}

func TestOtherPlayersAreForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner, stranger := newClient(t), newClient(t)
	id := env.newGame(t, owner, 2)

	if code := env.do(t, stranger, http.MethodPost, "/game/"+id+"/select", map[string]int{"index": 0}, nil); code != http.StatusForbidden {
		t.Fatalf("select: expected 403, got %d", code)
	}
	if code := env.do(t, stranger, http.MethodGet, "/game/"+id, nil, nil); code != http.StatusForbidden {
		t.Fatalf("view: expected 403, got %d", code)
	}
	if code := env.do(t, stranger, http.MethodDelete, "/game/"+id, nil, nil); code != http.StatusForbidden {
		t.Fatalf("delete: expected 403, got %d", code)
	}
}

func TestResetDropsPendingTurn(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	id := env.newGame(t, c, 3)
	byID := env.pairsOf(t, id)

	env.do(t, c, http.MethodPost, "/game/"+id+"/select", map[string]int{"index": byID[1][0]}, nil)
	env.do(t, c, http.MethodPost, "/game/"+id+"/select", map[string]int{"index": byID[1][1]}, nil)

	var view game.View
	if code := env.do(t, c, http.MethodPost, "/game/"+id+"/reset", nil, &view); code != http.StatusOK {
		t.Fatalf("reset: %d", code)
	}
	if env.sched.Pending() != 0 {
		t.Fatal("reset left a resolution pending")
	}
	if view.Locked || view.Turns != 0 || len(view.Cards) != 6 {
		t.Fatalf("after reset: %+v", view)
	}
}

func TestDeleteGame(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	id := env.newGame(t, c, 2)
	if code := env.do(t, c, http.MethodDelete, "/game/"+id, nil, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code := env.do(t, c, http.MethodGet, "/game/"+id, nil, nil); code != http.StatusNotFound {
		t.Fatalf("after delete: expected 404, got %d", code)
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	id := env.newGame(t, c, 2)
	byID := env.pairsOf(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/game/"+id+"/events", nil)
	res, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type %q", ct)
	}

	sc := bufio.NewScanner(res.Body)
	next := func() string {
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				return name
			}
		}
		t.Fatalf("stream ended: %v", sc.Err())
		return ""
	}

	if got := next(); got != "snapshot" {
		t.Fatalf("first event %q", got)
	}

	env.do(t, c, http.MethodPost, "/game/"+id+"/select", map[string]int{"index": byID[1][0]}, nil)
	env.do(t, c, http.MethodPost, "/game/"+id+"/select", map[string]int{"index": byID[1][1]}, nil)
	env.sched.Fire()

	want := []string{"card", "card", "card", "card", "counters"}
	for i, w := range want {
		if got := next(); got != w {
			t.Fatalf("event %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestDailyDeal(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := newClient(t), newClient(t)

	var a1, a2, b1 dailyRes
	env.do(t, alice, http.MethodPost, "/daily/new", nil, &a1)
	env.do(t, alice, http.MethodPost, "/daily/new", nil, &a2)
	env.do(t, bob, http.MethodPost, "/daily/new", nil, &b1)

	if a1.GameID == "" || a1.Pairs != 6 || a1.Resumed {
		t.Fatalf("first daily: %+v", a1)
	}
	if a2.GameID != a1.GameID || !a2.Resumed {
		t.Fatalf("second daily call did not resume: %+v", a2)
	}
	if b1.GameID == a1.GameID {
		t.Fatal("players share a daily game")
	}

	deck := func(id string) []game.Card {
		rec, err := env.store.Get(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		return rec.Session.Deck()
	}
	da, db := deck(a1.GameID), deck(b1.GameID)
	for i := range da {
		if da[i] != db[i] {
			t.Fatalf("daily decks differ at %d: %+v vs %+v", i, da[i], db[i])
		}
	}
}

func TestSignupClaimsGuestGames(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	id := env.newGame(t, c, 2)

	var u users.User
	if code := env.do(t, c, http.MethodPost, "/auth/signup", credentials{Username: "carol", Password: "secret-pass"}, &u); code != http.StatusOK {
		t.Fatalf("signup: %d", code)
	}
	if _, err := env.store.GetOwned(context.Background(), id, u.ID); err != nil {
		t.Fatalf("guest game not claimed by %q: %v", u.ID, err)
	}

	var me authUser
	if code := env.do(t, c, http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK || me.Username != "carol" {
		t.Fatalf("me: %d %+v", code, me)
	}
	if code := env.do(t, c, http.MethodGet, "/game/"+id, nil, nil); code != http.StatusOK {
		t.Fatalf("owner lost access after signup: %d", code)
	}

	if code := env.do(t, c, http.MethodPost, "/auth/signup", credentials{Username: "carol", Password: "secret-pass"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", code)
	}
}

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(t)
	env.do(t, c, http.MethodPost, "/auth/signup", credentials{Username: "dave", Password: "hunter22!"}, nil)
	env.do(t, c, http.MethodPost, "/auth/logout", nil, nil)

	if code := env.do(t, c, http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", code)
	}
	if code := env.do(t, c, http.MethodPost, "/auth/login", credentials{Username: "dave", Password: "wrong"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", code)
	}
	if code := env.do(t, c, http.MethodPost, "/auth/login", credentials{Username: "dave", Password: "hunter22!"}, nil); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
	if code := env.do(t, c, http.MethodGet, "/auth/me", nil, nil); code != http.StatusOK {
		t.Fatalf("after login: %d", code)
	}
}
