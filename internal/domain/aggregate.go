package domain

import (
	"sort"
	"strings"
)

// Matches evaluates the predicate against one property in memory.
func (p Predicate) Matches(pr Property) bool {
	if pr.Status == StatusRemoved {
		return false
	}
	if p.DeveloperSlug != "" && pr.DeveloperSlug != p.DeveloperSlug {
		return false
	}
	if p.ComplexSlug != "" && pr.ComplexSlug != p.ComplexSlug {
		return false
	}
	for attr, r := range p.Ranges {
		if r.IsZero() {
			continue
		}
		v, ok := pr.Tags.Number(attr)
		if !ok || !r.Contains(v) {
			return false
		}
	}
	for attr, set := range p.Sets {
		if len(set) == 0 {
			continue
		}
		v, ok := pr.Tags.Label(attr)
		if !ok || !contains(set, v) {
			return false
		}
	}
	return true
}

// Summarize computes group statistics over already-filtered properties.
func Summarize(props []Property) Stats {
	s := EmptyStats()
	s.TotalUnits = int64(len(props))
	for _, attr := range RangedAttributes {
		var b Bounds
		for _, p := range props {
			v, ok := p.Tags.Number(attr)
			if !ok {
				continue
			}
			if b.Min == nil || v < *b.Min {
				x := v
				b.Min = &x
			}
			if b.Max == nil || v > *b.Max {
				x := v
				b.Max = &x
			}
		}
		s.Ranges[attr] = b
	}
	for _, attr := range CategoricalAttributes {
		vals := make([]TagValue, 0, len(props))
		for _, p := range props {
			if v, ok := p.Tags[attr]; ok {
				vals = append(vals, v)
			}
		}
		s.Values[attr] = DistinctTags(vals)
	}
	return s
}

// SortProperties orders in place. Missing sort attributes come first when
// ascending and last when descending; ids break ties.
func SortProperties(props []Property, spec SortSpec) {
	sort.SliceStable(props, func(i, j int) bool {
		if spec.Key != SortNatural {
			if c := compareOptional(props[i].Tags, props[j].Tags, string(spec.Key)); c != 0 {
				if spec.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return props[i].ID < props[j].ID
	})
}

func compareOptional(a, b Tags, attr string) int {
	va, oka := a.Number(attr)
	vb, okb := b.Number(attr)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return -1
	case !okb:
		return 1
	case va < vb:
		return -1
	case va > vb:
		return 1
	}
	return 0
}

// SortGroups orders groups by complex name by default, or by the group's
// min (ascending) or max (descending) of the sort attribute.
func SortGroups(groups []GroupSummary, spec SortSpec) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if spec.Key != SortNatural {
			ba, bb := a.Stats.Ranges[string(spec.Key)], b.Stats.Ranges[string(spec.Key)]
			var c int
			if spec.Desc {
				c = comparePtr(ba.Max, bb.Max)
				c = -c
			} else {
				c = comparePtr(ba.Min, bb.Min)
			}
			if c != 0 {
				return c < 0
			}
		}
		if c := strings.Compare(a.Complex.Name, b.Complex.Name); c != 0 {
			return c < 0
		}
		if a.Complex.DeveloperSlug != b.Complex.DeveloperSlug {
			return a.Complex.DeveloperSlug < b.Complex.DeveloperSlug
		}
		return a.Complex.Slug < b.Complex.Slug
	})
}

func comparePtr(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// Window applies skip/limit; out-of-range pages are empty.
func Window[T any](items []T, pg PageQuery) []T {
	if pg.Skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if pg.Limit > 0 && pg.Skip+pg.Limit < end {
		end = pg.Skip + pg.Limit
	}
	out := make([]T, end-pg.Skip)
	copy(out, items[pg.Skip:end])
	return out
}
