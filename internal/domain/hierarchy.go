package domain

import (
	"strings"
	"time"
)

type EntityStatus string

const (
	EntityActive   EntityStatus = "active"
	EntityInactive EntityStatus = "inactive"
)

type Developer struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description,omitempty"`
	Logo        string       `json:"logo,omitempty"`
	Website     string       `json:"website,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Email       string       `json:"email,omitempty"`
	Address     string       `json:"address,omitempty"`
	Status      EntityStatus `json:"status"`
	LastSeenAt  time.Time    `json:"lastSeenAt"`
	UpdatedBy   string       `json:"updatedBy"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Complex struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	DeveloperID   string `json:"developerId"`
	DeveloperSlug string `json:"developerSlug"`

	City        string       `json:"city,omitempty"`
	District    string       `json:"district,omitempty"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	TotalFloors          *float64 `json:"totalFloors,omitempty"`
	SeaDistance          string   `json:"seaDistance,omitempty"`
	DeliveryDate         string   `json:"deliveryDate,omitempty"`
	PropertyType         string   `json:"propertyType,omitempty"`
	ConstructionMaterial string   `json:"constructionMaterial,omitempty"`

	Images    []string `json:"images,omitempty"`
	MainImage string   `json:"mainImage,omitempty"`

	Status     EntityStatus `json:"status"`
	LastSeenAt time.Time    `json:"lastSeenAt"`
	UpdatedBy  string       `json:"updatedBy"`
}

// ComplexFromSample fills complex-level attributes from one representative
// property's tags.
func ComplexFromSample(dev Developer, slug string, sample Tags) Complex {
	c := Complex{
		Name:          Deslugify(slug),
		Slug:          slug,
		DeveloperID:   dev.ID,
		DeveloperSlug: dev.Slug,
		Status:        EntityActive,
	}
	if s, ok := sample.Label(TagCity); ok {
		c.City = s
	}
	if s, ok := sample.Label(TagDelivery); ok {
		c.DeliveryDate = s
	}
	if f, ok := sample.Number(TagFloor); ok {
		c.TotalFloors = &f
	}
	if s, ok := sample.Label(TagSeaDistance); ok {
		c.SeaDistance = s
	}
	if s, ok := sample.Label(TagType); ok {
		c.PropertyType = s
	}
	return c
}

// NewDeveloper builds a developer record from its slug alone.
func NewDeveloper(slug string) Developer {
	name := Deslugify(slug)
	return Developer{
		Name:        name,
		Slug:        slug,
		Description: "Developer " + name,
		Status:      EntityActive,
	}
}

// Deslugify turns "golubaya_volna" into "golubaya volna".
func Deslugify(slug string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(slug)
	return strings.Join(strings.Fields(s), " ")
}
