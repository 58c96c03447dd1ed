// Package mongo stores the catalog in MongoDB: one collection each for
// developers, complexes and properties.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/domain"
)

type Repo struct {
	db         *driver.Database
	properties *driver.Collection
	developers *driver.Collection
	complexes  *driver.Collection
}

// Connect dials MongoDB and pings it.
func Connect(ctx context.Context, uri string) (*driver.Client, error) {
	cl, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := cl.Ping(ctx, nil); err != nil {
		_ = cl.Disconnect(context.Background())
		return nil, err
	}
	return cl, nil
}

func New(db *driver.Database) *Repo {
	return &Repo{
		db:         db,
		properties: db.Collection(colProperties),
		developers: db.Collection(colDevelopers),
		complexes:  db.Collection(colComplexes),
	}
}

// EnsureIndexes creates the uniqueness constraints and filter indexes.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	propIdx := []driver.IndexModel{
		{Keys: bson.D{{Key: "developerSlug", Value: 1}, {Key: "complexSlug", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{
			Keys: bson.D{{Key: "source", Value: 1}, {Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.D{
				{Key: "source", Value: bson.D{{Key: "$type", Value: "string"}}},
				{Key: "externalId", Value: bson.D{{Key: "$type", Value: "string"}}},
			}),
		},
	}
	for _, attr := range append(append([]string{}, domain.RangedAttributes...), domain.CategoricalAttributes...) {
		propIdx = append(propIdx, driver.IndexModel{Keys: bson.D{{Key: tagPath(attr), Value: 1}}})
	}
	if _, err := r.properties.Indexes().CreateMany(ctx, propIdx); err != nil {
		return fmt.Errorf("property indexes: %w", err)
	}
	if _, err := r.developers.Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("developer indexes: %w", err)
	}
	if _, err := r.complexes.Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "developerSlug", Value: 1}, {Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "city", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("complex indexes: %w", err)
	}
	return nil
}

// observe records store metrics and logs failures with the attempted filter.
func observe(op string, start time.Time, err error, filter any) {
	observability.ObserveStore(op, err, time.Since(start))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error().Err(err).Str("op", op).Interface("filter", filter).Msg("store operation failed")
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("malformed id %q: %w", id, domain.ErrInvalid)
	}
	return objID, nil
}

func mapWriteErr(err error, what string) error {
	if driver.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrConflict)
	}
	return err
}

/********** properties **********/

func (r *Repo) InsertProperty(ctx context.Context, p domain.Property) (out domain.Property, err error) {
	start := time.Now()
	defer func() { observe("insert_property", start, err, nil) }()

	doc := toPropertyDoc(p)
	doc.ID = primitive.NewObjectID()
	if _, err = r.properties.InsertOne(ctx, doc); err != nil {
		return domain.Property{}, mapWriteErr(err, "property "+p.Source+"/"+p.ExternalID+" exists")
	}
	return doc.toDomain(), nil
}

func (r *Repo) GetProperty(ctx context.Context, id string) (out domain.Property, err error) {
	objID, err := parseID(id)
	if err != nil {
		return domain.Property{}, err
	}
	start := time.Now()
	filter := bson.D{{Key: "_id", Value: objID}}
	defer func() { observe("get_property", start, err, filter) }()

	var doc propertyDoc
	if err = r.properties.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
		}
		return domain.Property{}, err
	}
	return doc.toDomain(), nil
}

func updateDoc(u domain.PropertyUpdate) bson.D {
	set := bson.D{
		{Key: "lastSeenAt", Value: u.LastSeenAt},
		{Key: "updatedBy", Value: u.UpdatedBy},
		{Key: "updatedAt", Value: u.LastSeenAt},
	}
	add := func(k string, v any) { set = append(set, bson.E{Key: k, Value: v}) }
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Tags != nil {
		add("tags", bson.M(u.Tags.ToMap()))
	}
	if u.Images != nil {
		add("images", nonNil(*u.Images))
	}
	if u.MainImage != nil {
		add("mainImage", *u.MainImage)
	}
	if u.Source != nil {
		add("source", strPtr(*u.Source))
	}
	if u.ExternalID != nil {
		add("externalId", strPtr(*u.ExternalID))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Developer != nil {
		add("developerId", oid(u.Developer.ID))
		add("developerSlug", u.Developer.Slug)
	}
	if u.Complex != nil {
		add("complexId", oid(u.Complex.ID))
		add("complexSlug", u.Complex.Slug)
	}
	return bson.D{{Key: "$set", Value: set}}
}

func (r *Repo) UpdateProperty(ctx context.Context, id string, u domain.PropertyUpdate) (out domain.Property, err error) {
	objID, err := parseID(id)
	if err != nil {
		return domain.Property{}, err
	}
	start := time.Now()
	filter := bson.D{{Key: "_id", Value: objID}}
	defer func() { observe("update_property", start, err, filter) }()

	var doc propertyDoc
	err = r.properties.FindOneAndUpdate(ctx, filter, updateDoc(u),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
		}
		return domain.Property{}, mapWriteErr(err, "property identity exists")
	}
	return doc.toDomain(), nil
}

// UpsertByIdentity refreshes every mutable field of the property keyed by
// (source, externalId), inserting it when absent.
func (r *Repo) UpsertByIdentity(ctx context.Context, p domain.Property) (id string, created bool, err error) {
	if !p.HasIdentity() {
		return "", false, fmt.Errorf("source and externalId are required: %w", domain.ErrInvalid)
	}
	start := time.Now()
	filter := bson.D{{Key: "source", Value: p.Source}, {Key: "externalId", Value: p.ExternalID}}
	defer func() { observe("upsert_property", start, err, filter) }()

	doc := toPropertyDoc(p)
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "title", Value: doc.Title},
			{Key: "description", Value: doc.Description},
			{Key: "tags", Value: doc.Tags},
			{Key: "developerId", Value: doc.DeveloperID},
			{Key: "developerSlug", Value: doc.DeveloperSlug},
			{Key: "complexId", Value: doc.ComplexID},
			{Key: "complexSlug", Value: doc.ComplexSlug},
			{Key: "images", Value: doc.Images},
			{Key: "mainImage", Value: doc.MainImage},
			{Key: "lastSeenAt", Value: doc.LastSeenAt},
			{Key: "updatedBy", Value: doc.UpdatedBy},
			{Key: "status", Value: doc.Status},
			{Key: "updatedAt", Value: doc.LastSeenAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: doc.LastSeenAt}}},
	}
	res, err := r.properties.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// two writers raced on the same identity; the loser retries as an update
		if driver.IsDuplicateKeyError(err) {
			res, err = r.properties.UpdateOne(ctx, filter, update)
		}
		if err != nil {
			return "", false, err
		}
	}
	if res.UpsertedID != nil {
		if objID, ok := res.UpsertedID.(primitive.ObjectID); ok {
			return objID.Hex(), true, nil
		}
	}

	var existing struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = r.properties.FindOne(ctx, filter, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Decode(&existing); err != nil {
		return "", false, err
	}
	return existing.ID.Hex(), false, nil
}

type legacyDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Developer string             `bson:"developer"`
	Complex   string             `bson:"complex"`
	Tags      bson.M             `bson:"tags"`
}

// LegacyProperties lists properties that still carry flat developer/complex strings.
func (r *Repo) LegacyProperties(ctx context.Context) (out []domain.LegacyProperty, err error) {
	start := time.Now()
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "developer", Value: bson.D{{Key: "$exists", Value: true}}}},
		bson.D{{Key: "complex", Value: bson.D{{Key: "$exists", Value: true}}}},
	}}}
	defer func() { observe("legacy_properties", start, err, filter) }()

	cur, err := r.properties.Find(ctx, filter, options.Find().
		SetProjection(bson.D{{Key: "developer", Value: 1}, {Key: "complex", Value: 1}, {Key: "tags", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []legacyDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out = make([]domain.LegacyProperty, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.LegacyProperty{
			ID:        d.ID.Hex(),
			Developer: d.Developer,
			Complex:   d.Complex,
			Tags:      domain.TagsFromMap(d.Tags),
		})
	}
	return out, nil
}

// AssignHierarchy back-fills references and drops the legacy fields in one write.
func (r *Repo) AssignHierarchy(ctx context.Context, id string, dev domain.Developer, cx domain.Complex, actor string, at time.Time) (err error) {
	objID, err := parseID(id)
	if err != nil {
		return err
	}
	start := time.Now()
	filter := bson.D{{Key: "_id", Value: objID}}
	defer func() { observe("assign_hierarchy", start, err, filter) }()

	res, err := r.properties.UpdateOne(ctx, filter, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "developerId", Value: oid(dev.ID)},
			{Key: "developerSlug", Value: dev.Slug},
			{Key: "complexId", Value: oid(cx.ID)},
			{Key: "complexSlug", Value: cx.Slug},
			{Key: "lastSeenAt", Value: at},
			{Key: "updatedBy", Value: actor},
			{Key: "updatedAt", Value: at},
		}},
		{Key: "$unset", Value: bson.D{{Key: "developer", Value: ""}, {Key: "complex", Value: ""}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

/********** hierarchy **********/

func (r *Repo) UpsertDeveloper(ctx context.Context, d domain.Developer) (out domain.Developer, created bool, err error) {
	start := time.Now()
	filter := bson.D{{Key: "slug", Value: d.Slug}}
	defer func() { observe("upsert_developer", start, err, filter) }()

	if d.Status == "" {
		d.Status = domain.EntityActive
	}
	doc := toDeveloperDoc(d)
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "lastSeenAt", Value: doc.LastSeenAt}, {Key: "updatedBy", Value: doc.UpdatedBy}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "name", Value: doc.Name},
			{Key: "description", Value: doc.Description},
			{Key: "logo", Value: doc.Logo},
			{Key: "website", Value: doc.Website},
			{Key: "phone", Value: doc.Phone},
			{Key: "email", Value: doc.Email},
			{Key: "address", Value: doc.Address},
			{Key: "status", Value: doc.Status},
		}},
	}
	var res developerDoc
	if created, err = r.upsertOne(ctx, r.developers, filter, update, &res); err != nil {
		return domain.Developer{}, false, err
	}
	return res.toDomain(), created, nil
}

func (r *Repo) UpsertComplex(ctx context.Context, c domain.Complex) (out domain.Complex, created bool, err error) {
	start := time.Now()
	filter := bson.D{{Key: "developerSlug", Value: c.DeveloperSlug}, {Key: "slug", Value: c.Slug}}
	defer func() { observe("upsert_complex", start, err, filter) }()

	if c.Status == "" {
		c.Status = domain.EntityActive
	}
	doc := toComplexDoc(c)
	onInsert := bson.D{
		{Key: "name", Value: doc.Name},
		{Key: "developerId", Value: doc.DeveloperID},
		{Key: "city", Value: doc.City},
		{Key: "district", Value: doc.District},
		{Key: "address", Value: doc.Address},
		{Key: "seaDistance", Value: doc.SeaDistance},
		{Key: "deliveryDate", Value: doc.DeliveryDate},
		{Key: "propertyType", Value: doc.PropertyType},
		{Key: "constructionMaterial", Value: doc.ConstructionMaterial},
		{Key: "images", Value: nonNil(doc.Images)},
		{Key: "mainImage", Value: doc.MainImage},
		{Key: "status", Value: doc.Status},
	}
	if doc.TotalFloors != nil {
		onInsert = append(onInsert, bson.E{Key: "totalFloors", Value: *doc.TotalFloors})
	}
	if doc.Coordinates != nil {
		onInsert = append(onInsert, bson.E{Key: "coordinates", Value: doc.Coordinates})
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "lastSeenAt", Value: doc.LastSeenAt}, {Key: "updatedBy", Value: doc.UpdatedBy}}},
		{Key: "$setOnInsert", Value: onInsert},
	}
	var res complexDoc
	if created, err = r.upsertOne(ctx, r.complexes, filter, update, &res); err != nil {
		return domain.Complex{}, false, err
	}
	return res.toDomain(), created, nil
}

// upsertOne applies update to the document matching filter, inserting it if
// absent, and decodes the result into out. created is true only when this
// call inserted. It retries once on a duplicate key: two concurrent upserts
// of the same key can both miss and race to insert, and the loser matches.
func (r *Repo) upsertOne(ctx context.Context, col *driver.Collection, filter, update bson.D, out any) (bool, error) {
	opts := options.Update().SetUpsert(true)
	res, err := col.UpdateOne(ctx, filter, update, opts)
	if driver.IsDuplicateKeyError(err) {
		res, err = col.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, err
	}
	if err := col.FindOne(ctx, filter).Decode(out); err != nil {
		return false, err
	}
	return res.UpsertedID != nil, nil
}

func (r *Repo) GetDeveloper(ctx context.Context, slug string) (out domain.Developer, err error) {
	start := time.Now()
	filter := bson.D{{Key: "slug", Value: slug}}
	defer func() { observe("get_developer", start, err, filter) }()

	var doc developerDoc
	if err = r.developers.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return domain.Developer{}, fmt.Errorf("developer %s: %w", slug, domain.ErrNotFound)
		}
		return domain.Developer{}, err
	}
	return doc.toDomain(), nil
}

func (r *Repo) GetComplex(ctx context.Context, developerSlug, slug string) (out domain.Complex, err error) {
	start := time.Now()
	filter := bson.D{{Key: "developerSlug", Value: developerSlug}, {Key: "slug", Value: slug}}
	defer func() { observe("get_complex", start, err, filter) }()

	var doc complexDoc
	if err = r.complexes.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return domain.Complex{}, fmt.Errorf("complex %s/%s: %w", developerSlug, slug, domain.ErrNotFound)
		}
		return domain.Complex{}, err
	}
	return doc.toDomain(), nil
}
