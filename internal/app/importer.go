package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/domain"
)

const importActor = "import"

// ImportService upserts properties keyed by (source, externalId), creating
// developers and complexes as needed. Safe to re-run with the same input.
type ImportService struct {
	props   domain.PropertyStore
	hier    *HierarchyService
	journal domain.ImportJournal
	inval   Invalidator
	workers int
	now     func() time.Time
}

func NewImportService(p domain.PropertyStore, h *HierarchyService, j domain.ImportJournal, inval Invalidator, workers int) *ImportService {
	if workers <= 0 {
		workers = 1
	}
	return &ImportService{props: p, hier: h, journal: j, inval: inval, workers: workers, now: time.Now}
}

// Import processes every record. Bad rows are skipped and journaled; only
// context cancellation aborts the run.
func (s *ImportService) Import(ctx context.Context, source string, records []map[string]any) (domain.ImportRun, error) {
	run := domain.ImportRun{ID: uuid.NewString(), Source: source, StartedAt: s.now().UTC()}
	if s.journal != nil {
		if err := s.journal.StartRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("run", run.ID).Msg("journal start failed")
		}
	}
	log.Info().Str("run", run.ID).Str("source", source).Int("records", len(records)).Int("workers", s.workers).Msg("import starting")

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(s.workers))
	)
	count := func(outcome string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case "created":
			run.Created++
		case "updated":
			run.Updated++
		default:
			run.Skipped++
		}
		observability.ObserveImport(outcome)
	}

	var abort error
	for i, rec := range records {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			abort = err
			break
		}
		wg.Add(1)
		go func(row int, rec map[string]any) {
			defer wg.Done()
			defer sem.Release(1)

			created, extID, err := s.importOne(ctx, source, rec)
			if err != nil {
				log.Warn().Err(err).Str("run", run.ID).Int("row", row).Str("external_id", extID).Msg("import row skipped")
				if s.journal != nil {
					if jerr := s.journal.RecordSkip(ctx, run.ID, row, extID, err.Error()); jerr != nil {
						log.Warn().Err(jerr).Str("run", run.ID).Msg("journal skip failed")
					}
				}
				count("skipped")
				return
			}
			if created {
				count("created")
			} else {
				count("updated")
			}
		}(i+1, rec)
	}
	wg.Wait()

	run.FinishedAt = s.now().UTC()
	if s.journal != nil {
		if err := s.journal.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn().Err(err).Str("run", run.ID).Msg("journal finish failed")
		}
	}
	if s.inval != nil && run.Created+run.Updated > 0 {
		s.inval.Invalidate(context.WithoutCancel(ctx))
	}
	log.Info().Str("run", run.ID).Int("created", run.Created).Int("updated", run.Updated).Int("skipped", run.Skipped).Msg("import finished")
	return run, abort
}

func (s *ImportService) importOne(ctx context.Context, source string, rec map[string]any) (bool, string, error) {
	d, err := mapRecord(rec, source)
	if err != nil {
		return false, "", err
	}
	dev, cx, err := s.hier.Resolve(ctx, d.developerSlug, d.complexSlug, d.prop.Tags, importActor)
	if err != nil {
		return false, d.prop.ExternalID, err
	}
	if dev.ID == "" || cx.ID == "" {
		return false, d.prop.ExternalID, errors.New("hierarchy resolved without ids")
	}

	p := d.prop
	p.DeveloperID, p.DeveloperSlug = dev.ID, dev.Slug
	p.ComplexID, p.ComplexSlug = cx.ID, cx.Slug
	p.LastSeenAt = s.now().UTC()
	p.UpdatedBy = importActor

	_, created, err := s.props.UpsertByIdentity(ctx, p)
	return created, p.ExternalID, err
}
