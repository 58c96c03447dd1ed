package app

import (
	"net/url"
	"strconv"
	"strings"

	"realty_catalog/internal/domain"
)

// rangeParams maps query parameter pairs to ranged tag attributes.
var rangeParams = map[string][2]string{
	domain.TagPrice: {"priceMin", "priceMax"},
	domain.TagArea:  {"areaMin", "areaMax"},
	domain.TagFloor: {"floorMin", "floorMax"},
}

// ParsePredicate builds a predicate from query parameters. It never fails:
// malformed numbers mean "unbounded" and unknown parameters are ignored.
func ParsePredicate(q url.Values) domain.Predicate {
	p := domain.Predicate{
		DeveloperSlug: strings.TrimSpace(q.Get("developer")),
		ComplexSlug:   strings.TrimSpace(q.Get("complex")),
	}
	for attr, keys := range rangeParams {
		r := domain.Range{Min: parseBound(q.Get(keys[0])), Max: parseBound(q.Get(keys[1]))}
		if r.IsZero() {
			continue
		}
		if p.Ranges == nil {
			p.Ranges = make(map[string]domain.Range, len(rangeParams))
		}
		p.Ranges[attr] = r
	}
	for _, attr := range domain.CategoricalAttributes {
		vals := nonEmpty(q[attr])
		if len(vals) == 0 {
			continue
		}
		if p.Sets == nil {
			p.Sets = make(map[string][]string, len(domain.CategoricalAttributes))
		}
		p.Sets[attr] = vals
	}
	return p
}

func parseBound(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !domain.IsFinite(f) {
		return nil
	}
	return &f
}

func nonEmpty(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ResolveSort maps a sort token to a sort spec. Unknown tokens fall back to
// natural order (insertion order for flat listings, complex name for groups).
func ResolveSort(token string) domain.SortSpec {
	switch token {
	case "price-asc":
		return domain.SortSpec{Key: domain.SortPrice}
	case "price-desc":
		return domain.SortSpec{Key: domain.SortPrice, Desc: true}
	case "area-asc":
		return domain.SortSpec{Key: domain.SortArea}
	case "area-desc":
		return domain.SortSpec{Key: domain.SortArea, Desc: true}
	}
	return domain.SortSpec{}
}

// ParsePage reads limit/skip leniently: bad or out-of-range values fall back
// to the defaults, and limit is capped.
func ParsePage(q url.Values) domain.PageQuery {
	pg := domain.PageQuery{Limit: domain.DefaultLimit}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil && n >= 1 {
		pg.Limit = n
	}
	if pg.Limit > domain.MaxLimit {
		pg.Limit = domain.MaxLimit
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("skip"))); err == nil && n > 0 {
		pg.Skip = n
	}
	return pg
}

func ParseListingQuery(q url.Values) domain.ListingQuery {
	return domain.ListingQuery{
		Predicate: ParsePredicate(q),
		Sort:      ResolveSort(q.Get("sort")),
		Page:      ParsePage(q),
	}
}

// ParseScope reads only the developer/complex scope used by range and
// filter-option discovery.
func ParseScope(q url.Values) domain.Predicate {
	return domain.Scope(strings.TrimSpace(q.Get("developer")), strings.TrimSpace(q.Get("complex")))
}
