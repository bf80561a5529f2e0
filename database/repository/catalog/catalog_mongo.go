package catalogRepo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"disambiguator/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	servicesCollection = "services"
	bookingsCollection = "bookings"
)

// MongoCatalogRepo implements CatalogRepository on MongoDB. Popularity is
// computed per query with a $lookup into the bookings collection.
type MongoCatalogRepo struct {
	db        *mongo.Database
	services  *mongo.Collection
	batchSize int32
	now       func() time.Time
}

// NewMongoCatalogRepo creates the repository and makes sure its indexes exist.
func NewMongoCatalogRepo(db *mongo.Database) (*MongoCatalogRepo, error) {
	r := &MongoCatalogRepo{
		db:        db,
		services:  db.Collection(servicesCollection),
		batchSize: searchBatchSize,
		now:       time.Now,
	}
	if err := r.ensureIndexes(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoCatalogRepo) TopByCategory(ctx context.Context, category string, limit int, window time.Duration) ([]models.ServiceOption, error) {
	ctx, cancel := context.WithTimeout(ctx, queryCeiling)
	defer cancel()

	cursor, err := r.services.Aggregate(ctx, categoryPipeline(category, limit, r.now().Add(-window)))
	if err != nil {
		return nil, fmt.Errorf("category aggregation for %q failed: %w", category, err)
	}
	defer cursor.Close(ctx)

	var found []models.ServiceOption
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode services for category %q: %w", category, err)
	}
	return found, nil
}

// SearchByText scores every active service with the same trigram
// similarity PostgreSQL uses, then counts bookings for the matches only.
func (r *MongoCatalogRepo) SearchByText(ctx context.Context, term string, limit int, threshold float64, window time.Duration) ([]models.ServiceOption, error) {
	ctx, cancel := context.WithTimeout(ctx, queryCeiling)
	defer cancel()

	matches, err := r.textMatches(ctx, term, threshold)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []models.ServiceOption{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	popularity, err := r.popularityByID(ctx, ids, r.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("search popularity for %q failed: %w", term, err)
	}
	for i := range matches {
		matches[i].Popularity = popularity[matches[i].ID]
	}
	return rankByText(matches, term, limit, threshold), nil
}

// textMatches streams the active services and keeps the ones that qualify
// for term.
func (r *MongoCatalogRepo) textMatches(ctx context.Context, term string, threshold float64) ([]scoredService, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 0}).
		SetBatchSize(r.batchSize)
	cursor, err := r.services.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("search scan for %q failed: %w", term, err)
	}
	defer cursor.Close(ctx)

	var matches []scoredService
	for cursor.Next(ctx) {
		var s scoredService
		if err := cursor.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode service during search for %q: %w", term, err)
		}
		if _, ok := textScore(s, term, threshold); ok {
			s.Popularity = 0
			matches = append(matches, s)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("search scan for %q failed: %w", term, err)
	}
	return matches, nil
}

func (r *MongoCatalogRepo) popularityByID(ctx context.Context, ids []string, since time.Time) (map[string]int, error) {
	cursor, err := r.services.Aggregate(ctx, popularityPipeline(ids, since))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID         string `bson:"id"`
		Popularity int    `bson:"popularity"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Popularity
	}
	return out, nil
}

func (r *MongoCatalogRepo) Stats(ctx context.Context, window time.Duration) (models.CatalogStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryCeiling)
	defer cancel()

	var stats models.CatalogStats
	categories, err := r.services.Distinct(ctx, "categoryNormalized", bson.M{"active": true})
	if err != nil {
		return stats, fmt.Errorf("failed to count categories: %w", err)
	}
	stats.DistinctCategories = len(categories)

	pipeline := mongo.Pipeline{
		activeMatch(nil),
		popularityLookup(r.now().Add(-window)),
		popularityField(),
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$popularity"}}}},
	}
	cursor, err := r.services.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, fmt.Errorf("popularity aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return stats, fmt.Errorf("failed to decode popularity average: %w", err)
	}
	if len(rows) > 0 {
		stats.AveragePopularity = rows[0].Avg
	}
	return stats, nil
}

func (r *MongoCatalogRepo) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, readpref.Primary())
}

func categoryPipeline(category string, limit int, since time.Time) mongo.Pipeline {
	quoted := regexp.QuoteMeta(category)
	return mongo.Pipeline{
		activeMatch(bson.A{
			bson.M{"categoryNormalized": bson.M{"$regex": quoted}},
			bson.M{"nameNormalized": bson.M{"$regex": quoted}},
		}),
		popularityLookup(since),
		popularityField(),
		{{Key: "$sort", Value: bson.D{
			{Key: "popularity", Value: -1},
			{Key: "price", Value: 1},
			{Key: "name", Value: 1},
		}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"_id": 0, "recent": 0}}},
	}
}

func popularityPipeline(ids []string, since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"active": true, "id": bson.M{"$in": ids}}}},
		popularityLookup(since),
		popularityField(),
		{{Key: "$project", Value: bson.M{"_id": 0, "id": 1, "popularity": 1}}},
	}
}

func activeMatch(or bson.A) bson.D {
	filter := bson.M{"active": true}
	if len(or) > 0 {
		filter["$or"] = or
	}
	return bson.D{{Key: "$match", Value: filter}}
}

// popularityLookup counts confirmed or completed bookings since the window
// start into a single-element "recent" array.
func popularityLookup(since time.Time) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.M{
		"from": bookingsCollection,
		"let":  bson.M{"sid": "$id"},
		"pipeline": bson.A{
			bson.M{"$match": bson.M{
				"$expr":     bson.M{"$eq": bson.A{"$serviceId", "$$sid"}},
				"status":    bson.M{"$in": countedStatuses},
				"createdAt": bson.M{"$gte": since},
			}},
			bson.M{"$count": "count"},
		},
		"as": "recent",
	}}}
}

func popularityField() bson.D {
	return bson.D{{Key: "$addFields", Value: bson.M{
		"popularity": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$recent.count", 0}}, 0}},
	}}}
}
