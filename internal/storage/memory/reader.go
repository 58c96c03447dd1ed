package memory

import (
	"context"
	"sort"

	"realty_catalog/internal/domain"
)

func (s *Store) matching(p domain.Predicate) []domain.Property {
	var out []domain.Property
	for _, pr := range s.props {
		if p.Matches(pr) {
			out = append(out, clone(pr))
		}
	}
	return out
}

func (s *Store) ListProperties(_ context.Context, q domain.ListingQuery) (domain.PropertyPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.matching(q.Predicate)
	domain.SortProperties(all, q.Sort)
	return domain.PropertyPage{Total: int64(len(all)), Properties: domain.Window(all, q.Page)}, nil
}

func (s *Store) ListGroups(_ context.Context, q domain.ListingQuery) (domain.GroupPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPair := make(map[[2]string][]domain.Property)
	for _, p := range s.matching(q.Predicate) {
		k := [2]string{p.DeveloperSlug, p.ComplexSlug}
		byPair[k] = append(byPair[k], p)
	}

	groups := make([]domain.GroupSummary, 0, len(byPair))
	for k, props := range byPair {
		cx, ok := s.complexes[k]
		if !ok || cx.Status != domain.EntityActive {
			continue
		}
		g := domain.GroupSummary{Complex: cx, Stats: domain.Summarize(props)}
		if dev, ok := s.developers[k[0]]; ok {
			g.Developer = &domain.DeveloperRef{ID: dev.ID, Name: dev.Name, Slug: dev.Slug}
		}
		g.Preview = cheapest(props)
		groups = append(groups, g)
	}
	domain.SortGroups(groups, q.Sort)
	return domain.GroupPage{Total: int64(len(groups)), Complexes: domain.Window(groups, q.Page)}, nil
}

func cheapest(props []domain.Property) *domain.Preview {
	if len(props) == 0 {
		return nil
	}
	sorted := append([]domain.Property(nil), props...)
	domain.SortProperties(sorted, domain.SortSpec{Key: domain.SortPrice})
	p := sorted[0]
	return &domain.Preview{ID: p.ID, Title: p.Title, Tags: p.Tags, MainImage: p.MainImage}
}

func (s *Store) Stats(_ context.Context, p domain.Predicate) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Summarize(s.matching(p)), nil
}

func (s *Store) ListDevelopers(_ context.Context) ([]domain.DeveloperSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DeveloperSummary
	for _, d := range s.developers {
		if d.Status != domain.EntityActive {
			continue
		}
		sum := domain.DeveloperSummary{Developer: d}
		for _, c := range s.complexes {
			if c.DeveloperSlug == d.Slug && c.Status == domain.EntityActive {
				sum.Stats.Complexes++
			}
		}
		for _, p := range s.props {
			if p.DeveloperSlug == d.Slug && p.Status != domain.StatusRemoved {
				sum.Stats.Properties++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Developer.Name != out[j].Developer.Name {
			return out[i].Developer.Name < out[j].Developer.Name
		}
		return out[i].Developer.Slug < out[j].Developer.Slug
	})
	return out, nil
}

func (s *Store) ListComplexes(_ context.Context, developerSlug string) ([]domain.Complex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Complex{}
	for _, c := range s.complexes {
		if c.DeveloperSlug == developerSlug && c.Status == domain.EntityActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

var _ domain.Store = (*Store)(nil)
