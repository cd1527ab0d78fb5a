package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/events"
	"github.com/robalobadob/memory/apps/go-server/internal/httpserver"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
	"github.com/robalobadob/memory/apps/go-server/internal/users"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := symbols.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load symbol pool")
	}

	db, err := openDB(getEnv("DB_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := migrate(db, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	cfg := httpserver.Config{
		DefaultPairs: getEnvInt("DEFAULT_PAIRS", 8),
		DailyPairs:   getEnvInt("DAILY_PAIRS", 8),
		Delay:        time.Duration(getEnvInt("RESOLVE_DELAY_MS", 1000)) * time.Millisecond,
		DailySalt:    getEnv("DAILY_SALT", "local_dev_salt"),
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		nc, err := events.Connect(url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("nats unavailable, events stay local")
		} else {
			defer nc.Drain()
			cfg.Publisher = nc
			log.Info().Str("url", nc.ConnectedUrl()).Msg("mirroring game events to nats")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	idle := time.Duration(getEnvInt("GAME_IDLE_MINUTES", 60)) * time.Minute
	go store.Sweeper(ctx, mem, 5*time.Minute, idle)

	srv := httpserver.New(mem, users.NewStore(db), cfg)
	port := getEnv("PORT", "5175")
	hs := &http.Server{Addr: ":" + port, Handler: srv.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", port).Int("symbols", symbols.Default().Size()).Msg("starting go-server")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}
