package catalogRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensureIndexes creates the indexes the catalog read path relies on.
func (r *MongoCatalogRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	activeOnly := options.Index().SetPartialFilterExpression(bson.M{"active": true})
	serviceIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "categoryNormalized", Value: 1}}, Options: activeOnly},
		{Keys: bson.D{{Key: "nameNormalized", Value: 1}}, Options: activeOnly},
	}
	if _, err := r.services.Indexes().CreateMany(ctx, serviceIdx); err != nil {
		return fmt.Errorf("failed to create service indexes: %w", err)
	}

	// Backs the $lookup in popularityLookup.
	bookingIdx := mongo.IndexModel{
		Keys: bson.D{
			{Key: "serviceId", Value: 1},
			{Key: "status", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}
	if _, err := r.db.Collection(bookingsCollection).Indexes().CreateOne(ctx, bookingIdx); err != nil {
		return fmt.Errorf("failed to create booking index: %w", err)
	}
	return nil
}
