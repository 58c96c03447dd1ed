package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"realty_catalog/internal/domain"
)

// HierarchyService resolves the developer and complex that own a property,
// creating them on first sight.
type HierarchyService struct {
	store domain.HierarchyStore
	// pairs and devs are keyed independently; a pair flight waits on a
	// developer flight, so they must never share a group.
	pairs singleflight.Group
	devs  singleflight.Group
	now   func() time.Time
}

func NewHierarchyService(s domain.HierarchyStore) *HierarchyService {
	return &HierarchyService{store: s, now: time.Now}
}

type resolved struct {
	dev domain.Developer
	cx  domain.Complex
}

// Resolve upserts the developer by slug and the complex by (developer, slug).
// sample supplies complex-level attributes when the complex is new.
// Concurrent calls for the same pair share one round trip.
func (h *HierarchyService) Resolve(ctx context.Context, developerSlug, complexSlug string, sample domain.Tags, actor string) (domain.Developer, domain.Complex, error) {
	developerSlug = strings.TrimSpace(developerSlug)
	complexSlug = strings.TrimSpace(complexSlug)
	if developerSlug == "" || complexSlug == "" {
		return domain.Developer{}, domain.Complex{}, fmt.Errorf("developer and complex slugs are required: %w", domain.ErrInvalid)
	}
	if actor == "" {
		actor = domain.DefaultActor
	}
	v, err, _ := h.pairs.Do(developerSlug+"\x00"+complexSlug, func() (any, error) {
		now := h.now().UTC()

		dev := domain.NewDeveloper(developerSlug)
		dev.LastSeenAt, dev.UpdatedBy = now, actor
		dev, err := h.ensureDeveloper(ctx, dev)
		if err != nil {
			return nil, err
		}

		cx := domain.ComplexFromSample(dev, complexSlug, sample)
		cx.LastSeenAt, cx.UpdatedBy = now, actor
		cx, _, err = h.store.UpsertComplex(ctx, cx)
		if err != nil {
			return nil, fmt.Errorf("upsert complex %s/%s: %w", developerSlug, complexSlug, err)
		}
		return resolved{dev: dev, cx: cx}, nil
	})
	if err != nil {
		return domain.Developer{}, domain.Complex{}, err
	}
	r := v.(resolved)
	return r.dev, r.cx, nil
}

func (h *HierarchyService) ensureDeveloper(ctx context.Context, dev domain.Developer) (domain.Developer, error) {
	v, err, _ := h.devs.Do(dev.Slug, func() (any, error) {
		d, _, err := h.store.UpsertDeveloper(ctx, dev)
		return d, err
	})
	if err != nil {
		return domain.Developer{}, fmt.Errorf("upsert developer %s: %w", dev.Slug, err)
	}
	return v.(domain.Developer), nil
}
