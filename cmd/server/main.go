package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tabletop-engine/hostage-exchange/internal/catalogue"
	"github.com/tabletop-engine/hostage-exchange/internal/config"
	"github.com/tabletop-engine/hostage-exchange/internal/controller"
	"github.com/tabletop-engine/hostage-exchange/internal/gamestore"
	"github.com/tabletop-engine/hostage-exchange/internal/storage"
	"github.com/tabletop-engine/hostage-exchange/internal/transport"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cat, err := catalogue.New(catalogue.Seed())
	if err != nil {
		logger.Error("invalid character catalogue", "error", err)
		os.Exit(1)
	}

	store := gamestore.New()
	ctrl := controller.New(store, cat, cfg)

	if cfg.DatabaseURL != "" {
		db, err := storage.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("database unavailable, continuing without persistence", "error", err)
		} else if err := storage.Migrate(db); err != nil {
			logger.Warn("database migration failed, continuing without persistence", "error", err)
		} else {
			ctrl.AddObserver(storage.NewMirror(db, logger))
			logger.Info("persistence mirror enabled")
		}
	}

	retention := time.Duration(cfg.RetentionHours) * time.Hour
	go reapLoop(store, retention, logger)

	srv := transport.New(ctrl, store, cfg, logger)

	logger.Info("hostage-exchange server listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Handler()); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// reapLoop periodically evicts finished games older than retention so the
// in-memory store doesn't grow without bound (§4.2).
func reapLoop(store *gamestore.Store, retention time.Duration, logger *slog.Logger) {
	interval := retention / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if n := store.Reap(time.Now().UTC(), retention); n > 0 {
			logger.Info("reaped finished games", "count", n)
		}
	}
}
