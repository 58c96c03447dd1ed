package domain

import "time"

// Range bounds a numeric attribute; nil means unbounded on that side.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) IsZero() bool { return r.Min == nil && r.Max == nil }

// Contains ignores non-finite bounds.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && IsFinite(*r.Min) && v < *r.Min {
		return false
	}
	if r.Max != nil && IsFinite(*r.Max) && v > *r.Max {
		return false
	}
	return true
}

// Predicate selects properties. Removed properties never match, whatever
// the other constraints say.
type Predicate struct {
	Ranges        map[string]Range    `json:"ranges,omitempty"`
	Sets          map[string][]string `json:"sets,omitempty"`
	DeveloperSlug string              `json:"developer,omitempty"`
	ComplexSlug   string              `json:"complex,omitempty"`
}

// Scope returns a predicate restricted to a developer and, optionally, a complex.
func Scope(developerSlug, complexSlug string) Predicate {
	return Predicate{DeveloperSlug: developerSlug, ComplexSlug: complexSlug}
}

type SortKey string

const (
	SortNatural SortKey = ""
	SortPrice   SortKey = TagPrice
	SortArea    SortKey = TagArea
)

type SortSpec struct {
	Key  SortKey `json:"key,omitempty"`
	Desc bool    `json:"desc,omitempty"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

type PageQuery struct {
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
}

type ListingQuery struct {
	Predicate Predicate `json:"predicate"`
	Sort      SortSpec  `json:"sort"`
	Page      PageQuery `json:"page"`
}

// Bounds is a computed min/max; nil when no matching record has the attribute.
type Bounds struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type Stats struct {
	TotalUnits int64                 `json:"totalUnits"`
	Ranges     map[string]Bounds     `json:"ranges"`
	Values     map[string][]TagValue `json:"values"`
}

// EmptyStats has every known attribute present with no data.
func EmptyStats() Stats {
	s := Stats{
		Ranges: make(map[string]Bounds, len(RangedAttributes)),
		Values: make(map[string][]TagValue, len(CategoricalAttributes)),
	}
	for _, a := range RangedAttributes {
		s.Ranges[a] = Bounds{}
	}
	for _, a := range CategoricalAttributes {
		s.Values[a] = []TagValue{}
	}
	return s
}

type DeveloperRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Preview is the cheapest matching unit of a group.
type Preview struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Tags      Tags   `json:"tags"`
	MainImage string `json:"mainImage,omitempty"`
}

type GroupSummary struct {
	Complex   Complex       `json:"complex"`
	Developer *DeveloperRef `json:"developer,omitempty"`
	Stats     Stats         `json:"stats"`
	Preview   *Preview      `json:"previewProperty,omitempty"`
}

type PropertyPage struct {
	Total      int64      `json:"total"`
	Properties []Property `json:"properties"`
}

type GroupPage struct {
	Total     int64          `json:"total"`
	Complexes []GroupSummary `json:"complexes"`
}

type ComplexDetail struct {
	Complex   Complex   `json:"complex"`
	Developer Developer `json:"developer"`
	Stats     Stats     `json:"propertyStats"`
}

type DeveloperCounts struct {
	Complexes  int64 `json:"complexes"`
	Properties int64 `json:"properties"`
}

type DeveloperSummary struct {
	Developer Developer       `json:"developer"`
	Stats     DeveloperCounts `json:"stats"`
}

type DeveloperDetail struct {
	Developer Developer `json:"developer"`
	Complexes []Complex `json:"complexes"`
	Stats     Stats     `json:"propertyStats"`
}

// ImportRun reports the outcome of one bulk import.
type ImportRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
}
