package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"realty_catalog/internal/domain"
)

const generationKey = "catalog:gen"

type QueryService struct {
	reader   domain.CatalogReader
	hier     domain.HierarchyStore
	props    domain.PropertyStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(s domain.Store, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{reader: s, hier: s, props: s, cache: c, cacheTTL: ttl}
}

func (s *QueryService) ListProperties(ctx context.Context, q domain.ListingQuery) (domain.PropertyPage, error) {
	var out domain.PropertyPage
	err := s.cached(ctx, "properties", q, &out, func() (any, error) {
		return s.reader.ListProperties(ctx, q)
	})
	return out, err
}

func (s *QueryService) ListGroups(ctx context.Context, q domain.ListingQuery) (domain.GroupPage, error) {
	var out domain.GroupPage
	err := s.cached(ctx, "groups", q, &out, func() (any, error) {
		return s.reader.ListGroups(ctx, q)
	})
	return out, err
}

// Ranges returns min/max per ranged attribute over non-removed properties.
func (s *QueryService) Ranges(ctx context.Context, scope domain.Predicate) (map[string]domain.Bounds, error) {
	st, err := s.stats(ctx, scope)
	if err != nil {
		return nil, err
	}
	return st.Ranges, nil
}

// FilterOptions returns the sorted distinct values per categorical attribute.
func (s *QueryService) FilterOptions(ctx context.Context, scope domain.Predicate) (map[string][]domain.TagValue, error) {
	st, err := s.stats(ctx, scope)
	if err != nil {
		return nil, err
	}
	return st.Values, nil
}

func (s *QueryService) stats(ctx context.Context, p domain.Predicate) (domain.Stats, error) {
	var out domain.Stats
	err := s.cached(ctx, "stats", p, &out, func() (any, error) {
		return s.reader.Stats(ctx, p)
	})
	return out, err
}

// ComplexDetail loads one group with its owning entities and statistics.
func (s *QueryService) ComplexDetail(ctx context.Context, developerSlug, complexSlug string) (domain.ComplexDetail, error) {
	if developerSlug == "" || complexSlug == "" {
		return domain.ComplexDetail{}, fmt.Errorf("developer and complex are required: %w", domain.ErrInvalid)
	}
	var out domain.ComplexDetail
	err := s.cached(ctx, "complex", domain.Scope(developerSlug, complexSlug), &out, func() (any, error) {
		var d domain.ComplexDetail
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			cx, err := s.hier.GetComplex(gctx, developerSlug, complexSlug)
			if err == nil && cx.Status != domain.EntityActive {
				err = fmt.Errorf("complex %s/%s inactive: %w", developerSlug, complexSlug, domain.ErrNotFound)
			}
			d.Complex = cx
			return err
		})
		g.Go(func() error {
			dev, err := s.hier.GetDeveloper(gctx, developerSlug)
			d.Developer = dev
			return err
		})
		g.Go(func() error {
			st, err := s.reader.Stats(gctx, domain.Scope(developerSlug, complexSlug))
			d.Stats = st
			return err
		})
		return d, g.Wait()
	})
	return out, err
}

func (s *QueryService) Developers(ctx context.Context) ([]domain.DeveloperSummary, error) {
	var out []domain.DeveloperSummary
	err := s.cached(ctx, "developers", nil, &out, func() (any, error) {
		return s.reader.ListDevelopers(ctx)
	})
	return out, err
}

func (s *QueryService) DeveloperDetail(ctx context.Context, slug string) (domain.DeveloperDetail, error) {
	var out domain.DeveloperDetail
	err := s.cached(ctx, "developer", slug, &out, func() (any, error) {
		var d domain.DeveloperDetail
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			dev, err := s.hier.GetDeveloper(gctx, slug)
			if err == nil && dev.Status != domain.EntityActive {
				err = fmt.Errorf("developer %s inactive: %w", slug, domain.ErrNotFound)
			}
			d.Developer = dev
			return err
		})
		g.Go(func() error {
			cs, err := s.reader.ListComplexes(gctx, slug)
			d.Complexes = cs
			return err
		})
		g.Go(func() error {
			st, err := s.reader.Stats(gctx, domain.Scope(slug, ""))
			d.Stats = st
			return err
		})
		return d, g.Wait()
	})
	return out, err
}

// GetProperty is uncached and also returns removed records.
func (s *QueryService) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	return s.props.GetProperty(ctx, id)
}

// Invalidate drops every cached read by moving to a new key generation.
func (s *QueryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, generationKey); err != nil {
		log.Warn().Err(err).Msg("cache invalidation failed")
	}
}

// cached is a read-through helper: key = op + generation + hash(args).
// Arguments that cannot be encoded bypass the cache.
func (s *QueryService) cached(ctx context.Context, op string, args any, dst any, load func() (any, error)) error {
	var key string
	if s.cache != nil {
		var err error
		if key, err = s.cacheKey(ctx, op, args); err != nil {
			log.Warn().Err(err).Str("op", op).Msg("uncacheable query, reading through")
		} else if ok, err := s.cache.Get(ctx, key, dst); err == nil && ok {
			return nil
		}
	}
	v, err := load()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return err
	}
	if key != "" && len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
	}
	return nil
}

func (s *QueryService) cacheKey(ctx context.Context, op string, args any) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", op, err)
	}
	var gen int64
	_, _ = s.cache.Get(ctx, generationKey, &gen)
	sum := sha1.Sum(b)
	return "catalog:" + strconv.FormatInt(gen, 10) + ":" + op + ":" + hex.EncodeToString(sum[:]), nil
}
