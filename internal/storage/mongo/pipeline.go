package mongo

import (
	"fmt"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"

	"realty_catalog/internal/domain"
)

const (
	colProperties = "properties"
	colDevelopers = "developers"
	colComplexes  = "complexes"
)

func tagPath(attr string) string { return "tags." + attr }

// matchFilter translates a predicate into a find/$match document. Removed
// properties are always excluded.
func matchFilter(p domain.Predicate) bson.D {
	f := bson.D{{Key: "status", Value: bson.D{{Key: "$ne", Value: string(domain.StatusRemoved)}}}}
	if p.DeveloperSlug != "" {
		f = append(f, bson.E{Key: "developerSlug", Value: p.DeveloperSlug})
	}
	if p.ComplexSlug != "" {
		f = append(f, bson.E{Key: "complexSlug", Value: p.ComplexSlug})
	}
	for _, attr := range sortedKeys(p.Ranges) {
		r := p.Ranges[attr]
		var cond bson.D
		if r.Min != nil && domain.IsFinite(*r.Min) {
			cond = append(cond, bson.E{Key: "$gte", Value: *r.Min})
		}
		if r.Max != nil && domain.IsFinite(*r.Max) {
			cond = append(cond, bson.E{Key: "$lte", Value: *r.Max})
		}
		if len(cond) > 0 {
			f = append(f, bson.E{Key: tagPath(attr), Value: cond})
		}
	}
	for _, attr := range sortedKeys(p.Sets) {
		if vals := p.Sets[attr]; len(vals) > 0 {
			f = append(f, bson.E{Key: tagPath(attr), Value: bson.D{{Key: "$in", Value: inValues(vals)}}})
		}
	}
	return f
}

// inValues widens categorical filter values to the scalar forms a tag can
// hold before normalization, so numeric or boolean legacy tags match by
// their rendered text the way Predicate.Matches does.
func inValues(vals []string) bson.A {
	out := make(bson.A, 0, len(vals)*2)
	for _, v := range vals {
		out = append(out, v)
		if f, err := strconv.ParseFloat(v, 64); err == nil && domain.IsFinite(f) && strconv.FormatFloat(f, 'f', -1, 64) == v {
			out = append(out, f)
		}
		if b, err := strconv.ParseBool(v); err == nil && strconv.FormatBool(b) == v {
			out = append(out, b)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// propertySort orders flat listings; _id makes the order total.
func propertySort(s domain.SortSpec) bson.D {
	if s.Key == domain.SortNatural {
		return bson.D{{Key: "_id", Value: 1}}
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	return bson.D{{Key: tagPath(string(s.Key)), Value: dir}, {Key: "_id", Value: 1}}
}

// Aggregated field names are positional so attribute names never need escaping.
func minField(i int) string    { return fmt.Sprintf("r%d_min", i) }
func maxField(i int) string    { return fmt.Sprintf("r%d_max", i) }
func valuesField(i int) string { return fmt.Sprintf("v%d", i) }

// statsAccumulators are the $group fields shared by every statistics query.
func statsAccumulators() bson.D {
	acc := bson.D{{Key: "totalUnits", Value: bson.D{{Key: "$sum", Value: 1}}}}
	for i, attr := range domain.RangedAttributes {
		acc = append(acc,
			bson.E{Key: minField(i), Value: bson.D{{Key: "$min", Value: "$" + tagPath(attr)}}},
			bson.E{Key: maxField(i), Value: bson.D{{Key: "$max", Value: "$" + tagPath(attr)}}},
		)
	}
	for i, attr := range domain.CategoricalAttributes {
		acc = append(acc, bson.E{Key: valuesField(i), Value: bson.D{{Key: "$addToSet", Value: "$" + tagPath(attr)}}})
	}
	return acc
}

func statsPipeline(p domain.Predicate) driver.Pipeline {
	group := append(bson.D{{Key: "_id", Value: nil}}, statsAccumulators()...)
	return driver.Pipeline{
		{{Key: "$match", Value: matchFilter(p)}},
		{{Key: "$group", Value: group}},
	}
}

// groupSort orders group summaries: by complex name by default, by the
// group's min (asc) or max (desc) of the sort attribute otherwise.
func groupSort(s domain.SortSpec) bson.D {
	var d bson.D
	if s.Key != domain.SortNatural {
		i := rangedIndex(string(s.Key))
		if s.Desc {
			d = append(d, bson.E{Key: maxField(i), Value: -1})
		} else {
			d = append(d, bson.E{Key: minField(i), Value: 1})
		}
	}
	return append(d,
		bson.E{Key: "complex.name", Value: 1},
		bson.E{Key: "_id.d", Value: 1},
		bson.E{Key: "_id.c", Value: 1},
	)
}

func rangedIndex(attr string) int {
	for i, a := range domain.RangedAttributes {
		if a == attr {
			return i
		}
	}
	return 0
}

// groupsPipeline groups matching properties by (developer, complex), joins
// the owning active complex and developer, sorts, and pages in one $facet.
func groupsPipeline(q domain.ListingQuery) driver.Pipeline {
	group := bson.D{{Key: "_id", Value: bson.D{
		{Key: "d", Value: "$developerSlug"},
		{Key: "c", Value: "$complexSlug"},
	}}}
	group = append(group, statsAccumulators()...)
	group = append(group, bson.E{Key: "preview", Value: bson.D{{Key: "$first", Value: bson.D{
		{Key: "id", Value: "$_id"},
		{Key: "title", Value: "$title"},
		{Key: "tags", Value: "$tags"},
		{Key: "mainImage", Value: "$mainImage"},
	}}}})

	items := bson.A{bson.D{{Key: "$skip", Value: int64(q.Page.Skip)}}}
	if q.Page.Limit > 0 {
		items = append(items, bson.D{{Key: "$limit", Value: int64(q.Page.Limit)}})
	}

	return driver.Pipeline{
		{{Key: "$match", Value: matchFilter(q.Predicate)}},
		// cheapest unit first so $first picks the preview
		{{Key: "$sort", Value: bson.D{{Key: tagPath(domain.TagPrice), Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: group}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: colComplexes},
			{Key: "let", Value: bson.D{{Key: "d", Value: "$_id.d"}, {Key: "c", Value: "$_id.c"}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{
					{Key: "status", Value: string(domain.EntityActive)},
					{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
						bson.D{{Key: "$eq", Value: bson.A{"$developerSlug", "$$d"}}},
						bson.D{{Key: "$eq", Value: bson.A{"$slug", "$$c"}}},
					}}}},
				}}},
			}},
			{Key: "as", Value: "complex"},
		}}},
		{{Key: "$unwind", Value: "$complex"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: colDevelopers},
			{Key: "localField", Value: "_id.d"},
			{Key: "foreignField", Value: "slug"},
			{Key: "as", Value: "developer"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$developer"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$sort", Value: groupSort(q.Sort)}},
		{{Key: "$facet", Value: bson.D{
			{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "n"}}}},
			{Key: "items", Value: items},
		}}},
	}
}

// countByDeveloper counts documents per developerSlug.
func countByDeveloper(match bson.D) driver.Pipeline {
	return driver.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$developerSlug"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

// statsFromDoc decodes the accumulators produced by statsAccumulators.
func statsFromDoc(m bson.M) domain.Stats {
	s := domain.EmptyStats()
	if m == nil {
		return s
	}
	if n, ok := toFloat(m["totalUnits"]); ok {
		s.TotalUnits = int64(n)
	}
	for i, attr := range domain.RangedAttributes {
		var b domain.Bounds
		if v, ok := toFloat(m[minField(i)]); ok {
			b.Min = &v
		}
		if v, ok := toFloat(m[maxField(i)]); ok {
			b.Max = &v
		}
		s.Ranges[attr] = b
	}
	for i, attr := range domain.CategoricalAttributes {
		raw, _ := m[valuesField(i)].(bson.A)
		vals := make([]domain.TagValue, 0, len(raw))
		for _, v := range raw {
			vals = append(vals, domain.TagFromAny(v))
		}
		s.Values[attr] = domain.DistinctTags(vals)
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
