package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the application relies on. The unique
// payments index enforces the one-record-per-property-per-month invariant at
// the storage layer; everything else is a lookup accelerator.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	payments := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "property_id", Value: 1},
				{Key: "year", Value: 1},
				{Key: "month", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_property_month"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("payments_by_owner"),
		},
	}
	if _, err := database.Collection("payments").Indexes().CreateMany(ctx, payments); err != nil {
		return fmt.Errorf("failed to create payments indexes: %w", err)
	}

	byOwner := mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}},
		Options: options.Index().SetName("by_owner"),
	}
	for _, coll := range []string{"properties", "repairs", "contractors", "tenants", "export_jobs"} {
		if _, err := database.Collection(coll).Indexes().CreateOne(ctx, byOwner); err != nil {
			return fmt.Errorf("failed to create %s owner index: %w", coll, err)
		}
	}

	// Partial on deleted:false so a soft-deleted account frees its email
	// for re-registration.
	users := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("uniq_email").
			SetPartialFilterExpression(bson.D{{Key: "deleted", Value: false}}),
	}
	if _, err := database.Collection("users").Indexes().CreateOne(ctx, users); err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}

	shares := mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_share_token"),
	}
	if _, err := database.Collection("share_grants").Indexes().CreateOne(ctx, shares); err != nil {
		return fmt.Errorf("failed to create share token index: %w", err)
	}

	return nil
}
