package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStatusConflict means the booking changed status between read and write.
var ErrStatusConflict = errors.New("booking status changed concurrently")

type BookingRepo interface {
	CreateBooking(ctx context.Context, booking *Booking) (*Booking, error)
	GetBookingByID(ctx context.Context, id primitive.ObjectID) (*Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter, page Page) ([]*Booking, int64, error)
	UpdateBookingStatus(ctx context.Context, id primitive.ObjectID, from BookingStatus, change StatusChange) (*Booking, error)
	AssignTechnician(ctx context.Context, id primitive.ObjectID, technicianID primitive.ObjectID, change *StatusChange) (*Booking, error)
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*Booking, error)
	MarkReminderSent(ctx context.Context, id primitive.ObjectID) error
	GetBookingStats(ctx context.Context) (*BookingStats, error)
}

func (mdb *MongodbRepo) CreateBooking(ctx context.Context, booking *Booking) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}
	if _, err := col.InsertOne(ctx, booking); err != nil {
		return nil, mapWriteErr(err, "booking")
	}
	return booking, nil
}

func (mdb *MongodbRepo) GetBookingByID(ctx context.Context, id primitive.ObjectID) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}
	var booking Booking
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		return nil, mapFindErr(err, "booking")
	}
	return &booking, nil
}

func (mdb *MongodbRepo) ListBookings(ctx context.Context, filter BookingFilter, page Page) ([]*Booking, int64, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, 0, err
	}
	page = page.normalized()

	query := bson.M{}
	if !filter.CustomerID.IsZero() {
		query["customer_id"] = filter.CustomerID
	}
	if !filter.TechnicianID.IsZero() {
		query["technician_id"] = filter.TechnicianID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "scheduled_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*Booking, 0, page.Limit)
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, 0, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, total, nil
}

// UpdateBookingStatus writes the change only if the booking is still in the
// `from` status, so two racing writers cannot both apply a transition.
func (mdb *MongodbRepo) UpdateBookingStatus(ctx context.Context, id primitive.ObjectID, from BookingStatus, change StatusChange) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"status":     change.To,
		"updated_at": change.At,
	}
	switch change.To {
	case BookingCompleted:
		set["completed_at"] = change.At
	case BookingCancelled:
		set["cancelled_at"] = change.At
	}

	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": change},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking Booking
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update, opts).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return &booking, nil
}

func (mdb *MongodbRepo) AssignTechnician(ctx context.Context, id primitive.ObjectID, technicianID primitive.ObjectID, change *StatusChange) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	set := bson.M{"technician_id": technicianID, "updated_at": now}
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$nin": []BookingStatus{BookingCompleted, BookingCancelled}},
	}
	update := bson.M{"$set": set}
	if change != nil {
		set["status"] = change.To
		filter["status"] = change.From
		update["$push"] = bson.M{"status_history": change}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var booking Booking
	err = col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign technician: %w", err)
	}
	return &booking, nil
}

func (mdb *MongodbRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}
	query := bson.M{
		"status":        BookingScheduled,
		"reminder_sent": bson.M{"$ne": true},
		"scheduled_at":  bson.M{"$gte": from, "$lte": to},
	}
	cursor, err := col.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (mdb *MongodbRepo) MarkReminderSent(ctx context.Context, id primitive.ObjectID) error {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reminder_sent": true}})
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetBookingStats(ctx context.Context) (*BookingStats, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "amount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status BookingStatus `bson:"_id"`
		Count  int64         `bson:"count"`
		Amount float64       `bson:"amount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode booking stats: %w", err)
	}

	stats := &BookingStats{ByStatus: make(map[BookingStatus]int64, len(BookingStatuses))}
	for _, st := range BookingStatuses {
		stats.ByStatus[st] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
		if row.Status == BookingCompleted {
			stats.Revenue = row.Amount
		}
	}
	return stats, nil
}
