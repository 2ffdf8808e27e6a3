package main

import (
	"context"
	stdlog "log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmkeith/dungeonmaster/assets"
	"github.com/dmkeith/dungeonmaster/internal/config"
	"github.com/dmkeith/dungeonmaster/internal/handlers"
	"github.com/dmkeith/dungeonmaster/internal/lock"
	"github.com/dmkeith/dungeonmaster/internal/logger"
	"github.com/dmkeith/dungeonmaster/internal/middleware"
	"github.com/dmkeith/dungeonmaster/internal/services"
	"github.com/dmkeith/dungeonmaster/internal/session"
	"github.com/dmkeith/dungeonmaster/internal/storage"
	"github.com/dmkeith/dungeonmaster/pkg/achievements"
	"github.com/dmkeith/dungeonmaster/pkg/campaign"
	"github.com/dmkeith/dungeonmaster/pkg/story"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Dungeon Master Keith API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"db_path", cfg.DBPath)

	camp, err := loadCampaign(cfg)
	if err != nil {
		log.Error("Failed to load campaign", "error", err)
		os.Exit(1)
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		log.Error("Failed to load achievement catalog", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}

	locker := lock.NewSessionLocker(cfg.RedisURL, log)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer pingCancel()
	if err := locker.Ping(pingCtx); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Storage and lock connections established")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	engine := story.NewEngine(store, camp, rng, log)
	ledger := achievements.NewLedger(catalog, store, log)
	narrator := services.NewCannedNarrator(rand.NewSource(time.Now().UnixNano()))

	orchestrator := session.NewOrchestrator(store, locker, engine, ledger, catalog, narrator,
		session.Defaults{Mode: cfg.Mode(), Toggles: cfg.DefaultToggles()}, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"storage": store,
		"lock":    locker,
	}, log)
	mux.Handle("/health", healthHandler)

	mux.Handle("/v1/turn", handlers.NewTurnHandler(orchestrator, log))
	mux.Handle("GET /v1/sessions/{id}", handlers.NewSessionHandler(store, engine, catalog, log))
	mux.Handle("/metrics", promhttp.Handler())

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage", "error", err)
	}
	if err := locker.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	log.Info("Server exited")
}

func loadCampaign(cfg *config.Config) (*campaign.Campaign, error) {
	if cfg.CampaignPath != "" {
		data, err := os.ReadFile(cfg.CampaignPath)
		if err != nil {
			return nil, err
		}
		return campaign.Load(data)
	}
	return campaign.LoadFile(assets.FS, assets.DefaultCampaign)
}

func loadCatalog(cfg *config.Config) (*achievements.Catalog, error) {
	if cfg.CatalogPath != "" {
		data, err := os.ReadFile(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		return achievements.LoadCatalog(data)
	}
	return achievements.LoadCatalogFile(assets.FS, assets.DefaultCatalog)
}
