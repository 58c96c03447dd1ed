package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"realty_catalog/internal/domain"
)

func (r *Repo) ListProperties(ctx context.Context, q domain.ListingQuery) (out domain.PropertyPage, err error) {
	start := time.Now()
	filter := matchFilter(q.Predicate)
	defer func() { observe("list_properties", start, err, filter) }()

	out.Properties = []domain.Property{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.properties.CountDocuments(gctx, filter)
		out.Total = n
		return err
	})
	g.Go(func() error {
		opts := options.Find().SetSort(propertySort(q.Sort)).SetSkip(int64(q.Page.Skip))
		if q.Page.Limit > 0 {
			opts.SetLimit(int64(q.Page.Limit))
		}
		cur, err := r.properties.Find(gctx, filter, opts)
		if err != nil {
			return err
		}
		var docs []propertyDoc
		if err := cur.All(gctx, &docs); err != nil {
			return err
		}
		for _, d := range docs {
			out.Properties = append(out.Properties, d.toDomain())
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return domain.PropertyPage{}, err
	}
	return out, nil
}

type groupRow struct {
	Complex   complexDoc    `bson:"complex"`
	Developer *developerDoc `bson:"developer"`
	Preview   *struct {
		ID        primitive.ObjectID `bson:"id"`
		Title     string             `bson:"title"`
		Tags      bson.M             `bson:"tags"`
		MainImage string             `bson:"mainImage"`
	} `bson:"preview"`
}

type groupFacet struct {
	Total []struct {
		N int64 `bson:"n"`
	} `bson:"total"`
	Items []bson.Raw `bson:"items"`
}

func (r *Repo) ListGroups(ctx context.Context, q domain.ListingQuery) (out domain.GroupPage, err error) {
	start := time.Now()
	pipe := groupsPipeline(q)
	defer func() { observe("list_groups", start, err, pipe[0]) }()

	cur, err := r.properties.Aggregate(ctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return domain.GroupPage{}, err
	}
	var facets []groupFacet
	if err = cur.All(ctx, &facets); err != nil {
		return domain.GroupPage{}, err
	}

	out.Complexes = []domain.GroupSummary{}
	if len(facets) == 0 {
		return out, nil
	}
	f := facets[0]
	if len(f.Total) > 0 {
		out.Total = f.Total[0].N
	}
	for _, raw := range f.Items {
		var row groupRow
		if err = bson.Unmarshal(raw, &row); err != nil {
			return domain.GroupPage{}, err
		}
		var stats bson.M
		if err = bson.Unmarshal(raw, &stats); err != nil {
			return domain.GroupPage{}, err
		}
		g := domain.GroupSummary{Complex: row.Complex.toDomain(), Stats: statsFromDoc(stats)}
		if row.Developer != nil {
			g.Developer = &domain.DeveloperRef{ID: hexOf(row.Developer.ID), Name: row.Developer.Name, Slug: row.Developer.Slug}
		}
		if row.Preview != nil {
			g.Preview = &domain.Preview{
				ID:        hexOf(row.Preview.ID),
				Title:     row.Preview.Title,
				Tags:      domain.TagsFromMap(row.Preview.Tags),
				MainImage: row.Preview.MainImage,
			}
		}
		out.Complexes = append(out.Complexes, g)
	}
	return out, nil
}

func (r *Repo) Stats(ctx context.Context, p domain.Predicate) (out domain.Stats, err error) {
	start := time.Now()
	pipe := statsPipeline(p)
	defer func() { observe("stats", start, err, pipe[0]) }()

	cur, err := r.properties.Aggregate(ctx, pipe)
	if err != nil {
		return domain.Stats{}, err
	}
	var rows []bson.M
	if err = cur.All(ctx, &rows); err != nil {
		return domain.Stats{}, err
	}
	if len(rows) == 0 {
		return domain.EmptyStats(), nil
	}
	return statsFromDoc(rows[0]), nil
}

// ListDevelopers returns active developers with their active complex and
// live property counts, ordered by name.
func (r *Repo) ListDevelopers(ctx context.Context) (out []domain.DeveloperSummary, err error) {
	start := time.Now()
	active := bson.D{{Key: "status", Value: string(domain.EntityActive)}}
	defer func() { observe("list_developers", start, err, active) }()

	var (
		docs       []developerDoc
		complexes  = map[string]int64{}
		properties = map[string]int64{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, err := r.developers.Find(gctx, active, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "slug", Value: 1}}))
		if err != nil {
			return err
		}
		return cur.All(gctx, &docs)
	})
	g.Go(func() error { return r.countInto(gctx, r.complexes, active, complexes) })
	g.Go(func() error { return r.countInto(gctx, r.properties, matchFilter(domain.Predicate{}), properties) })
	if err = g.Wait(); err != nil {
		return nil, err
	}

	out = make([]domain.DeveloperSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.DeveloperSummary{
			Developer: d.toDomain(),
			Stats:     domain.DeveloperCounts{Complexes: complexes[d.Slug], Properties: properties[d.Slug]},
		})
	}
	return out, nil
}

func (r *Repo) countInto(ctx context.Context, col *driver.Collection, match bson.D, dst map[string]int64) error {
	cur, err := col.Aggregate(ctx, countByDeveloper(match))
	if err != nil {
		return err
	}
	var rows []struct {
		Slug string `bson:"_id"`
		N    int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		dst[row.Slug] = row.N
	}
	return nil
}

func (r *Repo) ListComplexes(ctx context.Context, developerSlug string) (out []domain.Complex, err error) {
	start := time.Now()
	filter := bson.D{
		{Key: "developerSlug", Value: developerSlug},
		{Key: "status", Value: string(domain.EntityActive)},
	}
	defer func() { observe("list_complexes", start, err, filter) }()

	cur, err := r.complexes.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "slug", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []complexDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out = make([]domain.Complex, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

var _ domain.Store = (*Repo)(nil)
