package app_test

import (
	"net/url"
	"testing"

	"realty_catalog/internal/app"
	"realty_catalog/internal/domain"
)

func TestParsePredicate_Ranges(t *testing.T) {
	q, _ := url.ParseQuery("priceMin=4000000&priceMax=6000000&areaMax=80&floorMin=abc&floorMax=")
	p := app.ParsePredicate(q)

	price := p.Ranges["price"]
	if price.Min == nil || *price.Min != 4000000 || price.Max == nil || *price.Max != 6000000 {
		t.Fatalf("price: %+v", price)
	}
	area := p.Ranges["area"]
	if area.Min != nil || area.Max == nil || *area.Max != 80 {
		t.Fatalf("area: %+v", area)
	}
	if _, ok := p.Ranges["floor"]; ok {
		t.Fatalf("malformed floor bounds must be treated as absent")
	}
}

func TestParsePredicate_NonFiniteBoundsAreAbsent(t *testing.T) {
	q, _ := url.ParseQuery("priceMin=NaN&priceMax=Inf&areaMin=Infinity&areaMax=-Infinity&floorMin=2")
	p := app.ParsePredicate(q)
	if _, ok := p.Ranges["price"]; ok {
		t.Fatalf("price: %+v", p.Ranges["price"])
	}
	if _, ok := p.Ranges["area"]; ok {
		t.Fatalf("area: %+v", p.Ranges["area"])
	}
	if f := p.Ranges["floor"]; f.Min == nil || *f.Min != 2 {
		t.Fatalf("floor: %+v", f)
	}
}

func TestParsePredicate_Sets(t *testing.T) {
	q, _ := url.ParseQuery("rooms=1&rooms=&rooms=2&city=&view=sea&sea-distance=500m&bogus=1")
	p := app.ParsePredicate(q)

	if got := p.Sets["rooms"]; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("rooms: %v", got)
	}
	if _, ok := p.Sets["city"]; ok {
		t.Fatalf("all-empty city must mean no constraint")
	}
	if got := p.Sets["sea-distance"]; len(got) != 1 || got[0] != "500m" {
		t.Fatalf("sea-distance: %v", got)
	}
	if _, ok := p.Sets["bogus"]; ok {
		t.Fatalf("unknown params are ignored")
	}
}

func TestParsePredicate_Hierarchy(t *testing.T) {
	q, _ := url.ParseQuery("developer=lsr&complex=gorizont")
	p := app.ParsePredicate(q)
	if p.DeveloperSlug != "lsr" || p.ComplexSlug != "gorizont" {
		t.Fatalf("hierarchy: %+v", p)
	}
}

func TestResolveSort(t *testing.T) {
	cases := map[string]domain.SortSpec{
		"price-asc":  {Key: domain.SortPrice},
		"price-desc": {Key: domain.SortPrice, Desc: true},
		"area-asc":   {Key: domain.SortArea},
		"area-desc":  {Key: domain.SortArea, Desc: true},
		"":           {},
		"name":       {},
	}
	for tok, want := range cases {
		if got := app.ResolveSort(tok); got != want {
			t.Fatalf("%q: want %+v got %+v", tok, want, got)
		}
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.PageQuery
	}{
		{"", domain.PageQuery{Limit: 20}},
		{"limit=5&skip=10", domain.PageQuery{Limit: 5, Skip: 10}},
		{"limit=0&skip=-3", domain.PageQuery{Limit: 20}},
		{"limit=x&skip=y", domain.PageQuery{Limit: 20}},
		{"limit=5000", domain.PageQuery{Limit: domain.MaxLimit}},
	}
	for _, tc := range cases {
		q, _ := url.ParseQuery(tc.raw)
		if got := app.ParsePage(q); got != tc.want {
			t.Fatalf("%q: want %+v got %+v", tc.raw, tc.want, got)
		}
	}
}
