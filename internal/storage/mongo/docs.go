package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"realty_catalog/internal/domain"
)

type propertyDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Description   string             `bson:"description"`
	Tags          bson.M             `bson:"tags"`
	DeveloperID   primitive.ObjectID `bson:"developerId,omitempty"`
	DeveloperSlug string             `bson:"developerSlug"`
	ComplexID     primitive.ObjectID `bson:"complexId,omitempty"`
	ComplexSlug   string             `bson:"complexSlug"`
	Images        []string           `bson:"images"`
	MainImage     string             `bson:"mainImage,omitempty"`
	Source        *string            `bson:"source"`
	ExternalID    *string            `bson:"externalId"`
	LastSeenAt    time.Time          `bson:"lastSeenAt"`
	UpdatedBy     string             `bson:"updatedBy"`
	Status        string             `bson:"status"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

type developerDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Slug        string             `bson:"slug"`
	Description string             `bson:"description,omitempty"`
	Logo        string             `bson:"logo,omitempty"`
	Website     string             `bson:"website,omitempty"`
	Phone       string             `bson:"phone,omitempty"`
	Email       string             `bson:"email,omitempty"`
	Address     string             `bson:"address,omitempty"`
	Status      string             `bson:"status"`
	LastSeenAt  time.Time          `bson:"lastSeenAt"`
	UpdatedBy   string             `bson:"updatedBy"`
}

type coordsDoc struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type complexDoc struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Name                 string             `bson:"name"`
	Slug                 string             `bson:"slug"`
	DeveloperID          primitive.ObjectID `bson:"developerId,omitempty"`
	DeveloperSlug        string             `bson:"developerSlug"`
	City                 string             `bson:"city,omitempty"`
	District             string             `bson:"district,omitempty"`
	Address              string             `bson:"address,omitempty"`
	Coordinates          *coordsDoc         `bson:"coordinates,omitempty"`
	TotalFloors          *float64           `bson:"totalFloors,omitempty"`
	SeaDistance          string             `bson:"seaDistance,omitempty"`
	DeliveryDate         string             `bson:"deliveryDate,omitempty"`
	PropertyType         string             `bson:"propertyType,omitempty"`
	ConstructionMaterial string             `bson:"constructionMaterial,omitempty"`
	Images               []string           `bson:"images,omitempty"`
	MainImage            string             `bson:"mainImage,omitempty"`
	Status               string             `bson:"status"`
	LastSeenAt           time.Time          `bson:"lastSeenAt"`
	UpdatedBy            string             `bson:"updatedBy"`
}

func hexOf(id primitive.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}

// oid parses a hex id; an empty or malformed id yields the zero ObjectID.
func oid(hex string) primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func toPropertyDoc(p domain.Property) propertyDoc {
	return propertyDoc{
		ID:            oid(p.ID),
		Title:         p.Title,
		Description:   p.Description,
		Tags:          bson.M(p.Tags.ToMap()),
		DeveloperID:   oid(p.DeveloperID),
		DeveloperSlug: p.DeveloperSlug,
		ComplexID:     oid(p.ComplexID),
		ComplexSlug:   p.ComplexSlug,
		Images:        nonNil(p.Images),
		MainImage:     p.MainImage,
		Source:        strPtr(p.Source),
		ExternalID:    strPtr(p.ExternalID),
		LastSeenAt:    p.LastSeenAt,
		UpdatedBy:     p.UpdatedBy,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (d propertyDoc) toDomain() domain.Property {
	st := domain.PropertyStatus(d.Status)
	if st == "" {
		st = domain.StatusActive
	}
	return domain.Property{
		ID:            hexOf(d.ID),
		Title:         d.Title,
		Description:   d.Description,
		Tags:          domain.TagsFromMap(d.Tags),
		DeveloperID:   hexOf(d.DeveloperID),
		DeveloperSlug: d.DeveloperSlug,
		ComplexID:     hexOf(d.ComplexID),
		ComplexSlug:   d.ComplexSlug,
		Images:        nonNil(d.Images),
		MainImage:     d.MainImage,
		Source:        derefStr(d.Source),
		ExternalID:    derefStr(d.ExternalID),
		LastSeenAt:    d.LastSeenAt,
		UpdatedBy:     d.UpdatedBy,
		Status:        st,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toDeveloperDoc(d domain.Developer) developerDoc {
	return developerDoc{
		ID: oid(d.ID), Name: d.Name, Slug: d.Slug, Description: d.Description,
		Logo: d.Logo, Website: d.Website, Phone: d.Phone, Email: d.Email, Address: d.Address,
		Status: string(d.Status), LastSeenAt: d.LastSeenAt, UpdatedBy: d.UpdatedBy,
	}
}

func (d developerDoc) toDomain() domain.Developer {
	return domain.Developer{
		ID: hexOf(d.ID), Name: d.Name, Slug: d.Slug, Description: d.Description,
		Logo: d.Logo, Website: d.Website, Phone: d.Phone, Email: d.Email, Address: d.Address,
		Status: domain.EntityStatus(d.Status), LastSeenAt: d.LastSeenAt, UpdatedBy: d.UpdatedBy,
	}
}

func toComplexDoc(c domain.Complex) complexDoc {
	d := complexDoc{
		ID: oid(c.ID), Name: c.Name, Slug: c.Slug,
		DeveloperID: oid(c.DeveloperID), DeveloperSlug: c.DeveloperSlug,
		City: c.City, District: c.District, Address: c.Address,
		TotalFloors: c.TotalFloors, SeaDistance: c.SeaDistance, DeliveryDate: c.DeliveryDate,
		PropertyType: c.PropertyType, ConstructionMaterial: c.ConstructionMaterial,
		Images: c.Images, MainImage: c.MainImage,
		Status: string(c.Status), LastSeenAt: c.LastSeenAt, UpdatedBy: c.UpdatedBy,
	}
	if c.Coordinates != nil {
		d.Coordinates = &coordsDoc{Lat: c.Coordinates.Lat, Lng: c.Coordinates.Lng}
	}
	return d
}

func (d complexDoc) toDomain() domain.Complex {
	c := domain.Complex{
		ID: hexOf(d.ID), Name: d.Name, Slug: d.Slug,
		DeveloperID: hexOf(d.DeveloperID), DeveloperSlug: d.DeveloperSlug,
		City: d.City, District: d.District, Address: d.Address,
		TotalFloors: d.TotalFloors, SeaDistance: d.SeaDistance, DeliveryDate: d.DeliveryDate,
		PropertyType: d.PropertyType, ConstructionMaterial: d.ConstructionMaterial,
		Images: d.Images, MainImage: d.MainImage,
		Status: domain.EntityStatus(d.Status), LastSeenAt: d.LastSeenAt, UpdatedBy: d.UpdatedBy,
	}
	if d.Coordinates != nil {
		c.Coordinates = &domain.Coordinates{Lat: d.Coordinates.Lat, Lng: d.Coordinates.Lng}
	}
	return c
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
