// Command migrate promotes flat developer/complex fields on existing
// properties into Developer and Complex records. Safe to re-run.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/app"
	"realty_catalog/internal/shared"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "migrate")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := shared.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}
	defer closeStore()

	var inval app.Invalidator
	cache, closeCache := shared.OpenCache(ctx, cfg)
	defer closeCache()
	if cache != nil {
		inval = app.NewQueryService(store, cache, cfg.CacheTTL)
	}

	rep, err := app.NewMigrationService(store, store, inval).Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().
		Int("developers", rep.Developers).
		Int("complexes", rep.Complexes).
		Int("migrated", rep.Migrated).
		Int("skipped", rep.Skipped).
		Msg("migration completed")
}
