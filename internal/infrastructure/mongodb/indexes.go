// Package mongodb provides MongoDB infrastructure components including index management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names as constants for consistency.
const (
	CollectionNotifications = "notifications"
	CollectionCounters      = "counters"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Unique     bool
}

// model builds the driver index model.
func (d IndexDefinition) model() mongo.IndexModel {
	opts := options.Index().SetName(d.Name)
	if d.Unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: d.Keys, Options: opts}
}

// CreateAllIndexes creates all necessary indexes for the application.
// This function is idempotent - calling it multiple times is safe.
func CreateAllIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, GetAllIndexDefinitions())
}

// EnsureIndexes is an alias for CreateAllIndexes for semantic clarity.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return CreateAllIndexes(ctx, db)
}

// CreateCollectionIndexes creates indexes for a specific collection only.
func CreateCollectionIndexes(ctx context.Context, db *mongo.Database, collectionName string) error {
	var indexes []IndexDefinition

	switch collectionName {
	case CollectionNotifications:
		indexes = GetNotificationIndexes()
	case CollectionCounters:
		// only the default _id index
		return nil
	default:
		return fmt.Errorf("unknown collection: %s", collectionName)
	}

	return createIndexes(ctx, db, indexes)
}

// GetAllIndexDefinitions returns all index definitions for all collections.
func GetAllIndexDefinitions() []IndexDefinition {
	return GetNotificationIndexes()
}

// GetNotificationIndexes returns index definitions for the notifications collection.
func GetNotificationIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary key - sequence-assigned notification id
			Collection: CollectionNotifications,
			Name:       "idx_notifications_id_unique",
			Keys:       bson.D{{Key: "notification_id", Value: 1}},
			Unique:     true,
		},
		{
			// Main index for listing a user's notifications newest first
			Collection: CollectionNotifications,
			Name:       "idx_notifications_user_id_desc",
			Keys:       bson.D{{Key: "user_id", Value: 1}, {Key: "notification_id", Value: -1}},
		},
		{
			// Used by mark-all-read
			Collection: CollectionNotifications,
			Name:       "idx_notifications_user_unread",
			Keys:       bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}},
		},
	}
}

func createIndexes(ctx context.Context, db *mongo.Database, indexes []IndexDefinition) error {
	for _, idx := range indexes {
		_, err := db.Collection(idx.Collection).Indexes().CreateOne(ctx, idx.model())
		if err != nil {
			return fmt.Errorf("failed to create index %s on collection %s: %w", idx.Name, idx.Collection, err)
		}
	}
	return nil
}
