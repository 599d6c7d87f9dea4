package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RatingRepo interface {
	CreateRating(ctx context.Context, rating *Rating) (*Rating, error)
	GetRatingByBooking(ctx context.Context, bookingID primitive.ObjectID) (*Rating, error)
	ListRatingsByTechnician(ctx context.Context, technicianID primitive.ObjectID, page Page) ([]*Rating, int64, error)
	TechnicianRatingSummary(ctx context.Context, technicianID primitive.ObjectID) (float64, int, error)
}

// CreateRating validates before touching the database, so an out of range
// score never reaches the collection.
func (mdb *MongodbRepo) CreateRating(ctx context.Context, rating *Rating) (*Rating, error) {
	if err := rating.ValidateRating(); err != nil {
		return nil, fmt.Errorf("invalid rating data: %w", err)
	}
	col, err := mdb.GetCollection(ctx, RatingsColName)
	if err != nil {
		return nil, err
	}
	if _, err := col.InsertOne(ctx, rating); err != nil {
		return nil, mapWriteErr(err, "rating")
	}
	return rating, nil
}

func (mdb *MongodbRepo) GetRatingByBooking(ctx context.Context, bookingID primitive.ObjectID) (*Rating, error) {
	col, err := mdb.GetCollection(ctx, RatingsColName)
	if err != nil {
		return nil, err
	}
	var rating Rating
	if err := col.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&rating); err != nil {
		return nil, mapFindErr(err, "rating")
	}
	return &rating, nil
}

func (mdb *MongodbRepo) ListRatingsByTechnician(ctx context.Context, technicianID primitive.ObjectID, page Page) ([]*Rating, int64, error) {
	col, err := mdb.GetCollection(ctx, RatingsColName)
	if err != nil {
		return nil, 0, err
	}
	page = page.normalized()
	filter := bson.M{"technician_id": technicianID}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer cursor.Close(ctx)

	ratings := make([]*Rating, 0, page.Limit)
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, 0, fmt.Errorf("failed to decode ratings: %w", err)
	}
	return ratings, total, nil
}

func (mdb *MongodbRepo) TechnicianRatingSummary(ctx context.Context, technicianID primitive.ObjectID) (float64, int, error) {
	col, err := mdb.GetCollection(ctx, RatingsColName)
	if err != nil {
		return 0, 0, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "technician_id", Value: technicianID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$technician_id"},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$score"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, 0, fmt.Errorf("failed to decode rating summary: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Avg, rows[0].Count, nil
}
