package domain

import (
	"context"
	"time"
)

type PropertyStore interface {
	// Write paths
	InsertProperty(ctx context.Context, p Property) (Property, error)
	UpdateProperty(ctx context.Context, id string, u PropertyUpdate) (Property, error)
	// UpsertByIdentity inserts or refreshes the property keyed by (source, externalId).
	UpsertByIdentity(ctx context.Context, p Property) (id string, created bool, err error)

	// Read paths
	GetProperty(ctx context.Context, id string) (Property, error)

	// Migration
	LegacyProperties(ctx context.Context) ([]LegacyProperty, error)
	AssignHierarchy(ctx context.Context, id string, dev Developer, cx Complex, actor string, at time.Time) error
}

type HierarchyStore interface {
	// UpsertDeveloper matches by slug. Descriptive fields are written only on
	// insert; created reports whether this call inserted.
	UpsertDeveloper(ctx context.Context, d Developer) (out Developer, created bool, err error)
	// UpsertComplex matches by (developerSlug, slug), same contract as UpsertDeveloper.
	UpsertComplex(ctx context.Context, c Complex) (out Complex, created bool, err error)
	GetDeveloper(ctx context.Context, slug string) (Developer, error)
	GetComplex(ctx context.Context, developerSlug, slug string) (Complex, error)
}

type CatalogReader interface {
	ListProperties(ctx context.Context, q ListingQuery) (PropertyPage, error)
	ListGroups(ctx context.Context, q ListingQuery) (GroupPage, error)
	Stats(ctx context.Context, p Predicate) (Stats, error)
	ListDevelopers(ctx context.Context) ([]DeveloperSummary, error)
	ListComplexes(ctx context.Context, developerSlug string) ([]Complex, error)
}

// Store is everything a catalog backend provides.
type Store interface {
	PropertyStore
	HierarchyStore
	CatalogReader
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type ImportJournal interface {
	StartRun(ctx context.Context, run ImportRun) error
	RecordSkip(ctx context.Context, runID string, row int, externalID, reason string) error
	FinishRun(ctx context.Context, run ImportRun) error
}
