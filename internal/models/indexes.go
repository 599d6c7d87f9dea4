package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the unique, lookup and TTL indexes every collection
// relies on. It is safe to run on every start.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		UsersColName: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
		},
		TechniciansColName: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "specialty", Value: 1}},
				Options: options.Index().SetName("status_specialty"),
			},
		},
		AdminsColName: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
		},
		ServicesColName: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("name_unique"),
			},
		},
		OTPsColName: {
			// Expire at the time stored in expires_at.
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
			},
			{
				Keys: bson.D{
					{Key: "email", Value: 1},
					{Key: "purpose", Value: 1},
					{Key: "created_at", Value: -1},
				},
				Options: options.Index().SetName("email_purpose_created"),
			},
		},
		NotificationsColName: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("user_created"),
			},
		},
		RatingsColName: {
			{
				Keys:    bson.D{{Key: "booking_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("booking_unique"),
			},
			{
				Keys:    bson.D{{Key: "technician_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("technician_created"),
			},
		},
		BookingsColName: {
			{
				Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "scheduled_at", Value: -1}},
				Options: options.Index().SetName("customer_scheduled"),
			},
			{
				Keys:    bson.D{{Key: "technician_id", Value: 1}, {Key: "scheduled_at", Value: -1}},
				Options: options.Index().SetName("technician_scheduled"),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}},
				Options: options.Index().SetName("status_scheduled"),
			},
			{
				Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
				Options: options.Index().SetName("location_2dsphere"),
			},
		},
	}

	for colName, indexes := range specs {
		col, err := mdb.GetCollection(ctx, colName)
		if err != nil {
			return fmt.Errorf("error getting collection: %v", err)
		}
		if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", colName, err)
		}
	}
	return nil
}
