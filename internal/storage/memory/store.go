// Package memory is an in-process catalog store. It evaluates predicates
// and aggregations in Go and backs STORE_DRIVER=memory and the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"realty_catalog/internal/domain"
)

type Store struct {
	mu         sync.RWMutex
	props      map[string]domain.Property
	legacy     map[string][2]string // property id -> flat developer/complex
	developers map[string]domain.Developer
	complexes  map[[2]string]domain.Complex
}

func New() *Store {
	return &Store{
		props:      make(map[string]domain.Property),
		legacy:     make(map[string][2]string),
		developers: make(map[string]domain.Developer),
		complexes:  make(map[[2]string]domain.Complex),
	}
}

func newID() string { return primitive.NewObjectID().Hex() }

// checkID applies the same id format as the MongoDB store.
func checkID(id string) error {
	if !primitive.IsValidObjectID(id) {
		return fmt.Errorf("malformed id %q: %w", id, domain.ErrInvalid)
	}
	return nil
}

// SeedLegacy inserts a property that still carries flat developer/complex
// fields, the shape migrated by MigrationService.
func (s *Store) SeedLegacy(p domain.Property, developer, complex string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID()
	if p.Status == "" {
		p.Status = domain.StatusActive
	}
	s.props[p.ID] = clone(p)
	s.legacy[p.ID] = [2]string{developer, complex}
	return p.ID
}

/********** properties **********/

func (s *Store) InsertProperty(_ context.Context, p domain.Property) (domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.HasIdentity() {
		if _, ok := s.findIdentity(p.Source, p.ExternalID); ok {
			return domain.Property{}, fmt.Errorf("property %s/%s exists: %w", p.Source, p.ExternalID, domain.ErrConflict)
		}
	}
	p.ID = newID()
	s.props[p.ID] = clone(p)
	return clone(p), nil
}

func (s *Store) GetProperty(_ context.Context, id string) (domain.Property, error) {
	if err := checkID(id); err != nil {
		return domain.Property{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.props[id]
	if !ok {
		return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	return clone(p), nil
}

func (s *Store) UpdateProperty(_ context.Context, id string, u domain.PropertyUpdate) (domain.Property, error) {
	if err := checkID(id); err != nil {
		return domain.Property{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.props[id]
	if !ok {
		return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	next := applyUpdate(p, u)
	if next.HasIdentity() && (next.Source != p.Source || next.ExternalID != p.ExternalID) {
		if other, ok := s.findIdentity(next.Source, next.ExternalID); ok && other != id {
			return domain.Property{}, fmt.Errorf("property %s/%s exists: %w", next.Source, next.ExternalID, domain.ErrConflict)
		}
	}
	s.props[id] = next
	return clone(next), nil
}

func applyUpdate(p domain.Property, u domain.PropertyUpdate) domain.Property {
	p = clone(p)
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Tags != nil {
		p.Tags = cloneTags(*u.Tags)
	}
	if u.Images != nil {
		p.Images = append([]string(nil), (*u.Images)...)
	}
	if u.MainImage != nil {
		p.MainImage = *u.MainImage
	}
	if u.Source != nil {
		p.Source = *u.Source
	}
	if u.ExternalID != nil {
		p.ExternalID = *u.ExternalID
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Developer != nil {
		p.DeveloperID, p.DeveloperSlug = u.Developer.ID, u.Developer.Slug
	}
	if u.Complex != nil {
		p.ComplexID, p.ComplexSlug = u.Complex.ID, u.Complex.Slug
	}
	p.LastSeenAt = u.LastSeenAt
	p.UpdatedBy = u.UpdatedBy
	p.UpdatedAt = u.LastSeenAt
	return p
}

func (s *Store) UpsertByIdentity(_ context.Context, p domain.Property) (string, bool, error) {
	if !p.HasIdentity() {
		return "", false, fmt.Errorf("source and externalId are required: %w", domain.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.findIdentity(p.Source, p.ExternalID); ok {
		prev := s.props[id]
		p.ID, p.CreatedAt = id, prev.CreatedAt
		p.UpdatedAt = p.LastSeenAt
		s.props[id] = clone(p)
		return id, false, nil
	}
	p.ID = newID()
	p.CreatedAt, p.UpdatedAt = p.LastSeenAt, p.LastSeenAt
	s.props[p.ID] = clone(p)
	return p.ID, true, nil
}

func (s *Store) findIdentity(source, extID string) (string, bool) {
	for id, p := range s.props {
		if p.Source == source && p.ExternalID == extID {
			return id, true
		}
	}
	return "", false
}

func (s *Store) LegacyProperties(_ context.Context) ([]domain.LegacyProperty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LegacyProperty, 0, len(s.legacy))
	for id, pair := range s.legacy {
		out = append(out, domain.LegacyProperty{ID: id, Developer: pair[0], Complex: pair[1], Tags: cloneTags(s.props[id].Tags)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AssignHierarchy(_ context.Context, id string, dev domain.Developer, cx domain.Complex, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.props[id]
	if !ok {
		return fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	p.DeveloperID, p.DeveloperSlug = dev.ID, dev.Slug
	p.ComplexID, p.ComplexSlug = cx.ID, cx.Slug
	p.LastSeenAt, p.UpdatedBy, p.UpdatedAt = at, actor, at
	s.props[id] = p
	delete(s.legacy, id)
	return nil
}

/********** hierarchy **********/

func (s *Store) UpsertDeveloper(_ context.Context, d domain.Developer) (domain.Developer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.developers[d.Slug]; ok {
		cur.LastSeenAt, cur.UpdatedBy = d.LastSeenAt, d.UpdatedBy
		s.developers[d.Slug] = cur
		return cur, false, nil
	}
	d.ID = newID()
	if d.Status == "" {
		d.Status = domain.EntityActive
	}
	s.developers[d.Slug] = d
	return d, true, nil
}

func (s *Store) UpsertComplex(_ context.Context, c domain.Complex) (domain.Complex, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{c.DeveloperSlug, c.Slug}
	if cur, ok := s.complexes[k]; ok {
		cur.LastSeenAt, cur.UpdatedBy = c.LastSeenAt, c.UpdatedBy
		s.complexes[k] = cur
		return cur, false, nil
	}
	c.ID = newID()
	if c.Status == "" {
		c.Status = domain.EntityActive
	}
	s.complexes[k] = c
	return c, true, nil
}

func (s *Store) GetDeveloper(_ context.Context, slug string) (domain.Developer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.developers[slug]
	if !ok {
		return domain.Developer{}, fmt.Errorf("developer %s: %w", slug, domain.ErrNotFound)
	}
	return d, nil
}

func (s *Store) GetComplex(_ context.Context, developerSlug, slug string) (domain.Complex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.complexes[[2]string{developerSlug, slug}]
	if !ok {
		return domain.Complex{}, fmt.Errorf("complex %s/%s: %w", developerSlug, slug, domain.ErrNotFound)
	}
	return c, nil
}

// SetComplexStatus flips a complex between active and inactive.
func (s *Store) SetComplexStatus(developerSlug, slug string, st domain.EntityStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{developerSlug, slug}
	if c, ok := s.complexes[k]; ok {
		c.Status = st
		s.complexes[k] = c
	}
}

func clone(p domain.Property) domain.Property {
	p.Tags = cloneTags(p.Tags)
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	return p
}

func cloneTags(t domain.Tags) domain.Tags {
	if t == nil {
		return nil
	}
	out := make(domain.Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
