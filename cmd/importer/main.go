// Command importer loads property rows from a CSV or JSON file (local path
// or s3://bucket/key) and upserts them by (source, externalId).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/adapters/s3src"
	"realty_catalog/internal/app"
	"realty_catalog/internal/domain"
	"realty_catalog/internal/shared"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "importer")

	source := flag.String("source", cfg.ImportSource, "import source name; defaults to csv_import/json_import by file type")
	workers := flag.Int("workers", cfg.ImportWorkers, "concurrent upserts")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal().Msg("usage: importer [-source name] [-workers n] <file.csv|file.json|s3://bucket/key>")
	}
	input := flag.Arg(0)

	// import counters are scraped while a long run is in progress
	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opener *s3src.Opener
	if s3src.IsS3(input) {
		var err error
		if opener, err = s3src.New(ctx, cfg.AWSRegion); err != nil {
			log.Fatal().Err(err).Msg("aws config failed")
		}
	}
	rc, name, err := opener.Open(ctx, input)
	if err != nil {
		log.Fatal().Err(err).Str("input", input).Msg("open input failed")
	}
	records, err := app.ReadRecords(name, rc)
	rc.Close()
	if err != nil {
		log.Fatal().Err(err).Str("input", input).Msg("read records failed")
	}
	if *source == "" {
		*source = defaultSource(name)
	}

	store, closeStore, err := shared.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}
	defer closeStore()

	var journal domain.ImportJournal
	j, closeJournal, err := shared.OpenJournal(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("journal unavailable")
	}
	defer closeJournal()
	if j != nil {
		journal = j
	}

	// bumping the cache generation makes the API see the import at once
	var inval app.Invalidator
	cache, closeCache := shared.OpenCache(ctx, cfg)
	defer closeCache()
	if cache != nil {
		inval = app.NewQueryService(store, cache, cfg.CacheTTL)
	}

	imp := app.NewImportService(store, app.NewHierarchyService(store), journal, inval, *workers)
	run, err := imp.Import(ctx, *source, records)
	if err != nil {
		log.Fatal().Err(err).Str("run", run.ID).Msg("import aborted")
	}
	log.Info().
		Str("run", run.ID).
		Int("created", run.Created).
		Int("updated", run.Updated).
		Int("skipped", run.Skipped).
		Msg("import completed")
}

func defaultSource(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return "csv_import"
	}
	return "json_import"
}
