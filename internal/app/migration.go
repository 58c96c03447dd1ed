package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"realty_catalog/internal/domain"
)

const migrationActor = "migration"

// MigrationReport counts the outcome of a hierarchy migration.
type MigrationReport struct {
	Developers int
	Complexes  int
	Migrated   int
	Skipped    int
}

// MigrationService promotes flat developer/complex strings on legacy
// properties into referenced Developer and Complex records. Each property
// is back-filled and stripped of its legacy fields in one write, so an
// interrupted run can simply be repeated.
type MigrationService struct {
	props domain.PropertyStore
	hier  domain.HierarchyStore
	inval Invalidator
	now   func() time.Time
}

func NewMigrationService(p domain.PropertyStore, h domain.HierarchyStore, inval Invalidator) *MigrationService {
	return &MigrationService{props: p, hier: h, inval: inval, now: time.Now}
}

type pairKey struct{ dev, cx string }

func (s *MigrationService) Run(ctx context.Context) (MigrationReport, error) {
	var rep MigrationReport

	legacy, err := s.props.LegacyProperties(ctx)
	if err != nil {
		return rep, fmt.Errorf("load legacy properties: %w", err)
	}
	log.Info().Int("properties", len(legacy)).Msg("migration starting")

	// distinct pairs, sampling the first property seen for each
	samples := make(map[pairKey]domain.Tags)
	var order []pairKey
	for _, lp := range legacy {
		k := pairKey{strings.TrimSpace(lp.Developer), strings.TrimSpace(lp.Complex)}
		if k.dev == "" || k.cx == "" {
			continue
		}
		if _, ok := samples[k]; !ok {
			samples[k] = lp.Tags
			order = append(order, k)
		}
	}

	now := s.now().UTC()
	devs := make(map[string]domain.Developer)
	cxs := make(map[pairKey]domain.Complex)
	for _, k := range order {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		dev, ok := devs[k.dev]
		if !ok {
			d := domain.NewDeveloper(k.dev)
			d.LastSeenAt, d.UpdatedBy = now, migrationActor
			var created bool
			if dev, created, err = s.hier.UpsertDeveloper(ctx, d); err != nil {
				log.Error().Err(err).Str("developer", k.dev).Msg("developer upsert failed")
				continue
			}
			devs[k.dev] = dev
			if created {
				rep.Developers++
			}
		}
		c := domain.ComplexFromSample(dev, k.cx, samples[k])
		c.LastSeenAt, c.UpdatedBy = now, migrationActor
		cx, created, err := s.hier.UpsertComplex(ctx, c)
		if err != nil {
			log.Error().Err(err).Str("developer", k.dev).Str("complex", k.cx).Msg("complex upsert failed")
			continue
		}
		cxs[k] = cx
		if created {
			rep.Complexes++
		}
	}

	for _, lp := range legacy {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		k := pairKey{strings.TrimSpace(lp.Developer), strings.TrimSpace(lp.Complex)}
		cx, ok := cxs[k]
		if !ok {
			log.Warn().Str("id", lp.ID).Str("developer", lp.Developer).Str("complex", lp.Complex).Msg("unresolvable hierarchy, property skipped")
			rep.Skipped++
			continue
		}
		if err := s.props.AssignHierarchy(ctx, lp.ID, devs[k.dev], cx, migrationActor, now); err != nil {
			if errors.Is(err, context.Canceled) {
				return rep, err
			}
			log.Error().Err(err).Str("id", lp.ID).Msg("back-fill failed, property skipped")
			rep.Skipped++
			continue
		}
		rep.Migrated++
	}

	if s.inval != nil && rep.Migrated > 0 {
		s.inval.Invalidate(ctx)
	}
	log.Info().
		Int("developers", rep.Developers).
		Int("complexes", rep.Complexes).
		Int("migrated", rep.Migrated).
		Int("skipped", rep.Skipped).
		Msg("migration finished")
	return rep, nil
}
