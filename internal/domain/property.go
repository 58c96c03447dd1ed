package domain

import "time"

type PropertyStatus string

const (
	StatusActive  PropertyStatus = "active"
	StatusRemoved PropertyStatus = "removed"
)

// DefaultActor stamps updatedBy when a caller does not name itself.
const DefaultActor = "system"

type Property struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        Tags   `json:"tags"`

	DeveloperID   string `json:"developerId"`
	DeveloperSlug string `json:"developerSlug"`
	ComplexID     string `json:"complexId"`
	ComplexSlug   string `json:"complexSlug"`

	Images    []string `json:"images"`
	MainImage string   `json:"mainImage,omitempty"`

	Source     string         `json:"source,omitempty"`
	ExternalID string         `json:"externalId,omitempty"`
	LastSeenAt time.Time      `json:"lastSeenAt"`
	UpdatedBy  string         `json:"updatedBy"`
	Status     PropertyStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// HasIdentity reports whether the import idempotency key is set.
func (p Property) HasIdentity() bool { return p.Source != "" && p.ExternalID != "" }

// PropertyUpdate lists the fields to change; nil means untouched.
type PropertyUpdate struct {
	Title       *string
	Description *string
	Tags        *Tags
	Images      *[]string
	MainImage   *string
	Source      *string
	ExternalID  *string
	Status      *PropertyStatus

	Developer *Developer
	Complex   *Complex

	LastSeenAt time.Time
	UpdatedBy  string
}

// LegacyProperty is a record still carrying flat developer/complex strings.
type LegacyProperty struct {
	ID        string
	Developer string
	Complex   string
	Tags      Tags
}
