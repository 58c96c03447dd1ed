package mongo

import (
	"math"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"realty_catalog/internal/domain"
)

func pf(f float64) *float64 { return &f }

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestMatchFilter_AlwaysExcludesRemoved(t *testing.T) {
	f := matchFilter(domain.Predicate{})
	if len(f) != 1 {
		t.Fatalf("expected only the status clause, got %v", f)
	}
	v, ok := lookup(f, "status")
	if !ok {
		t.Fatal("status clause missing")
	}
	ne, _ := lookup(v.(bson.D), "$ne")
	if ne != string(domain.StatusRemoved) {
		t.Fatalf("status clause = %v", v)
	}
}

func TestMatchFilter_RangesSetsAndScope(t *testing.T) {
	f := matchFilter(domain.Predicate{
		Ranges: map[string]domain.Range{
			domain.TagPrice: {Min: pf(100), Max: pf(200)},
			domain.TagArea:  {Min: pf(40)},
			domain.TagFloor: {},
		},
		Sets: map[string][]string{
			domain.TagRooms: {"1", "2"},
			domain.TagCity:  {},
		},
		DeveloperSlug: "dev",
		ComplexSlug:   "cx",
	})

	if v, _ := lookup(f, "developerSlug"); v != "dev" {
		t.Fatalf("developerSlug = %v", v)
	}
	if v, _ := lookup(f, "complexSlug"); v != "cx" {
		t.Fatalf("complexSlug = %v", v)
	}

	price, ok := lookup(f, "tags.price")
	if !ok {
		t.Fatal("price clause missing")
	}
	if gte, _ := lookup(price.(bson.D), "$gte"); gte != 100.0 {
		t.Fatalf("price $gte = %v", gte)
	}
	if lte, _ := lookup(price.(bson.D), "$lte"); lte != 200.0 {
		t.Fatalf("price $lte = %v", lte)
	}

	area, _ := lookup(f, "tags.area")
	if _, ok := lookup(area.(bson.D), "$lte"); ok {
		t.Fatal("open upper bound must not produce $lte")
	}
	if _, ok := lookup(f, "tags.floor"); ok {
		t.Fatal("empty range must not produce a clause")
	}
	if _, ok := lookup(f, "tags.city"); ok {
		t.Fatal("empty set must not produce a clause")
	}
	rooms, _ := lookup(f, "tags.rooms")
	in, _ := lookup(rooms.(bson.D), "$in")
	want := bson.A{"1", 1.0, "2", 2.0}
	if vals, ok := in.(bson.A); !ok || len(vals) != len(want) {
		t.Fatalf("rooms $in = %v", in)
	} else {
		for i := range want {
			if vals[i] != want[i] {
				t.Fatalf("rooms $in[%d] = %v (%T), want %v", i, vals[i], vals[i], want[i])
			}
		}
	}
}

func TestMatchFilter_LegacyScalarForms(t *testing.T) {
	f := matchFilter(domain.Predicate{Sets: map[string][]string{
		domain.TagView:  {"sea", "true", "2.50"},
		domain.TagRooms: {"2.5"},
	}})
	view, _ := lookup(f, "tags.view")
	in, _ := lookup(view.(bson.D), "$in")
	got := in.(bson.A)
	// "2.50" renders differently from 2.5, so only the text form applies
	want := bson.A{"sea", "true", true, "2.50"}
	if len(got) != len(want) {
		t.Fatalf("view $in = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("view $in[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	rooms, _ := lookup(f, "tags.rooms")
	in, _ = lookup(rooms.(bson.D), "$in")
	if got := in.(bson.A); len(got) != 2 || got[1] != 2.5 {
		t.Fatalf("rooms $in = %v", got)
	}
}

func TestMatchFilter_NonFiniteBoundsIgnored(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	f := matchFilter(domain.Predicate{Ranges: map[string]domain.Range{
		domain.TagPrice: {Min: &inf, Max: &nan},
		domain.TagArea:  {Min: pf(10), Max: &inf},
	}})
	if _, ok := lookup(f, "tags.price"); ok {
		t.Fatalf("non-finite price bounds produced a clause: %v", f)
	}
	area, _ := lookup(f, "tags.area")
	if _, ok := lookup(area.(bson.D), "$lte"); ok {
		t.Fatalf("infinite max produced $lte: %v", area)
	}
}

func TestMatchFilter_Deterministic(t *testing.T) {
	p := domain.Predicate{Ranges: map[string]domain.Range{
		domain.TagPrice: {Min: pf(1)},
		domain.TagArea:  {Min: pf(1)},
		domain.TagFloor: {Min: pf(1)},
	}}
	a, _ := bson.Marshal(matchFilter(p))
	for i := 0; i < 10; i++ {
		b, _ := bson.Marshal(matchFilter(p))
		if string(a) != string(b) {
			t.Fatal("filter encoding differs between calls")
		}
	}
}

func TestPropertySort(t *testing.T) {
	if got := propertySort(domain.SortSpec{}); len(got) != 1 || got[0].Key != "_id" {
		t.Fatalf("natural order = %v", got)
	}
	got := propertySort(domain.SortSpec{Key: domain.SortPrice, Desc: true})
	if got[0].Key != "tags.price" || got[0].Value != -1 || got[1].Key != "_id" {
		t.Fatalf("price desc = %v", got)
	}
}

func TestGroupSort_UsesMinAscMaxDesc(t *testing.T) {
	i := rangedIndex(domain.TagArea)
	asc := groupSort(domain.SortSpec{Key: domain.SortArea})
	if asc[0].Key != minField(i) || asc[0].Value != 1 {
		t.Fatalf("asc = %v", asc)
	}
	desc := groupSort(domain.SortSpec{Key: domain.SortArea, Desc: true})
	if desc[0].Key != maxField(i) || desc[0].Value != -1 {
		t.Fatalf("desc = %v", desc)
	}
	natural := groupSort(domain.SortSpec{})
	if natural[0].Key != "complex.name" {
		t.Fatalf("natural = %v", natural)
	}
}

func TestGroupsPipeline_PagesInsideFacet(t *testing.T) {
	pipe := groupsPipeline(domain.ListingQuery{Page: domain.PageQuery{Limit: 20, Skip: 40}})
	last := pipe[len(pipe)-1]
	if last[0].Key != "$facet" {
		t.Fatalf("last stage = %v", last[0].Key)
	}
	items, _ := lookup(last[0].Value.(bson.D), "items")
	stages := items.(bson.A)
	if len(stages) != 2 {
		t.Fatalf("items stages = %v", stages)
	}
	if v, _ := lookup(stages[0].(bson.D), "$skip"); v != int64(40) {
		t.Fatalf("$skip = %v", v)
	}
	if v, _ := lookup(stages[1].(bson.D), "$limit"); v != int64(20) {
		t.Fatalf("$limit = %v", v)
	}
}

func TestStatsFromDoc(t *testing.T) {
	pi := rangedIndex(domain.TagPrice)
	m := bson.M{
		"totalUnits":   int32(3),
		minField(pi):   int64(100),
		maxField(pi):   250.5,
		valuesField(0): bson.A{"2", nil, "1", "2", ""},
	}
	s := statsFromDoc(m)
	if s.TotalUnits != 3 {
		t.Fatalf("totalUnits = %d", s.TotalUnits)
	}
	b := s.Ranges[domain.TagPrice]
	if b.Min == nil || *b.Min != 100 || b.Max == nil || *b.Max != 250.5 {
		t.Fatalf("price bounds = %+v", b)
	}
	if a := s.Ranges[domain.TagArea]; a.Min != nil || a.Max != nil {
		t.Fatalf("area bounds should be null, got %+v", a)
	}
	vals := s.Values[domain.CategoricalAttributes[0]]
	if len(vals) != 2 || vals[0].String() != "1" || vals[1].String() != "2" {
		t.Fatalf("distinct values = %v", vals)
	}
	for _, attr := range domain.CategoricalAttributes {
		if s.Values[attr] == nil {
			t.Fatalf("values for %s must be non-nil", attr)
		}
	}
}

func TestStatsFromDoc_Nil(t *testing.T) {
	s := statsFromDoc(nil)
	if s.TotalUnits != 0 || len(s.Ranges) != len(domain.RangedAttributes) {
		t.Fatalf("empty stats = %+v", s)
	}
}
