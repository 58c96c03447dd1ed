package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"realty_catalog/internal/domain"
)

// PropertyInput is the write payload. Absent fields are left untouched on
// update. developer/complex are accepted as aliases of the slug fields.
type PropertyInput struct {
	Title         *string                `json:"title"`
	Description   *string                `json:"description"`
	Tags          *domain.Tags           `json:"tags"`
	Images        *[]string              `json:"images"`
	MainImage     *string                `json:"mainImage"`
	DeveloperSlug *string                `json:"developerSlug"`
	ComplexSlug   *string                `json:"complexSlug"`
	Developer     *string                `json:"developer"`
	Complex       *string                `json:"complex"`
	Source        *string                `json:"source"`
	ExternalID    *string                `json:"externalId"`
	Status        *domain.PropertyStatus `json:"status"`
	UpdatedBy     string                 `json:"updatedBy"`
}

func (in PropertyInput) slugs() (dev, cx string) {
	pick := func(a, b *string) string {
		if a != nil && strings.TrimSpace(*a) != "" {
			return strings.TrimSpace(*a)
		}
		if b != nil {
			return strings.TrimSpace(*b)
		}
		return ""
	}
	return pick(in.DeveloperSlug, in.Developer), pick(in.ComplexSlug, in.Complex)
}

func (in PropertyInput) actor() string {
	if a := strings.TrimSpace(in.UpdatedBy); a != "" {
		return a
	}
	return domain.DefaultActor
}

func (in PropertyInput) validate() error {
	if in.Status != nil && *in.Status != domain.StatusActive && *in.Status != domain.StatusRemoved {
		return fmt.Errorf("status %q: %w", *in.Status, domain.ErrInvalid)
	}
	return nil
}

// Invalidator is notified after every successful write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type PropertyService struct {
	store domain.PropertyStore
	hier  *HierarchyService
	inval Invalidator
	now   func() time.Time
}

func NewPropertyService(s domain.PropertyStore, h *HierarchyService, inval Invalidator) *PropertyService {
	return &PropertyService{store: s, hier: h, inval: inval, now: time.Now}
}

// Create resolves (or creates) the owning developer and complex, then
// inserts the property stamped with audit fields.
func (s *PropertyService) Create(ctx context.Context, in PropertyInput) (domain.Property, error) {
	if err := in.validate(); err != nil {
		return domain.Property{}, err
	}
	devSlug, cxSlug := in.slugs()
	var tags domain.Tags
	if in.Tags != nil {
		tags = in.Tags.Normalize()
	}
	dev, cx, err := s.hier.Resolve(ctx, devSlug, cxSlug, tags, in.actor())
	if err != nil {
		return domain.Property{}, err
	}

	now := s.now().UTC()
	p := domain.Property{
		Title:         deref(in.Title),
		Description:   deref(in.Description),
		Tags:          tags,
		DeveloperID:   dev.ID,
		DeveloperSlug: dev.Slug,
		ComplexID:     cx.ID,
		ComplexSlug:   cx.Slug,
		MainImage:     deref(in.MainImage),
		Source:        deref(in.Source),
		ExternalID:    deref(in.ExternalID),
		LastSeenAt:    now,
		UpdatedBy:     in.actor(),
		Status:        domain.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Tags == nil {
		p.Tags = domain.Tags{}
	}
	if in.Images != nil {
		p.Images = *in.Images
	}
	if p.MainImage == "" && len(p.Images) > 0 {
		p.MainImage = p.Images[0]
	}
	if in.Status != nil {
		p.Status = *in.Status
	}

	out, err := s.store.InsertProperty(ctx, p)
	if err != nil {
		return domain.Property{}, err
	}
	s.invalidate(ctx)
	log.Info().Str("id", out.ID).Str("developer", dev.Slug).Str("complex", cx.Slug).Msg("property created")
	return out, nil
}

// Update applies the provided fields and always refreshes lastSeenAt/updatedBy.
// Changing developer or complex re-resolves the hierarchy.
func (s *PropertyService) Update(ctx context.Context, id string, in PropertyInput) (domain.Property, error) {
	if err := in.validate(); err != nil {
		return domain.Property{}, err
	}
	u := domain.PropertyUpdate{
		Title:       in.Title,
		Description: in.Description,
		Images:      in.Images,
		MainImage:   in.MainImage,
		Source:      in.Source,
		ExternalID:  in.ExternalID,
		Status:      in.Status,
		LastSeenAt:  s.now().UTC(),
		UpdatedBy:   in.actor(),
	}
	if in.Tags != nil {
		t := in.Tags.Normalize()
		u.Tags = &t
	}

	devSlug, cxSlug := in.slugs()
	if devSlug != "" || cxSlug != "" {
		cur, err := s.store.GetProperty(ctx, id)
		if err != nil {
			return domain.Property{}, err
		}
		if devSlug == "" {
			devSlug = cur.DeveloperSlug
		}
		if cxSlug == "" {
			cxSlug = cur.ComplexSlug
		}
		if devSlug != cur.DeveloperSlug || cxSlug != cur.ComplexSlug {
			sample := cur.Tags
			if u.Tags != nil {
				sample = *u.Tags
			}
			dev, cx, err := s.hier.Resolve(ctx, devSlug, cxSlug, sample, in.actor())
			if err != nil {
				return domain.Property{}, err
			}
			u.Developer, u.Complex = &dev, &cx
		}
	}

	out, err := s.store.UpdateProperty(ctx, id, u)
	if err != nil {
		return domain.Property{}, err
	}
	s.invalidate(ctx)
	return out, nil
}

// Delete marks the property removed. It stays readable by id.
func (s *PropertyService) Delete(ctx context.Context, id, actor string) (domain.Property, error) {
	if strings.TrimSpace(actor) == "" {
		actor = domain.DefaultActor
	}
	removed := domain.StatusRemoved
	out, err := s.store.UpdateProperty(ctx, id, domain.PropertyUpdate{
		Status:     &removed,
		LastSeenAt: s.now().UTC(),
		UpdatedBy:  actor,
	})
	if err != nil {
		return domain.Property{}, err
	}
	s.invalidate(ctx)
	log.Info().Str("id", id).Str("by", actor).Msg("property removed")
	return out, nil
}

func (s *PropertyService) invalidate(ctx context.Context) {
	if s.inval != nil {
		s.inval.Invalidate(ctx)
	}
}
