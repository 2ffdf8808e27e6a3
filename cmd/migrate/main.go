// Command migrate opens the database, applies any pending schema
// migrations, and exits.
package main

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"github.com/dmkeith/dungeonmaster/internal/config"
	"github.com/dmkeith/dungeonmaster/internal/logger"
	"github.com/dmkeith/dungeonmaster/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}
	log := logger.Setup(cfg)

	store, err := storage.Open(cfg.DBPath, log)
	if err != nil {
		log.Error("Migration failed", "error", err, "db_path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Error("Database not reachable after migration", "error", err)
		os.Exit(1)
	}

	log.Info("Migrations applied", "db_path", cfg.DBPath)
}
