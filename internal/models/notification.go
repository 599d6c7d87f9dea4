package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationType string

const (
	NotificationOTP           NotificationType = "otp"
	NotificationBookingUpdate NotificationType = "booking_update"
	NotificationGeneral       NotificationType = "general"
)

func ValidNotificationType(t NotificationType) bool {
	return t == NotificationOTP || t == NotificationBookingUpdate || t == NotificationGeneral
}

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Type      NotificationType   `bson:"type" json:"type" validate:"oneof=otp booking_update general"`
	Title     string             `bson:"title" json:"title" validate:"max=120"`
	Message   string             `bson:"message" json:"message" validate:"required,max=1000"`
	Data      map[string]any     `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type NotificationRepo interface {
	CreateNotification(ctx context.Context, n *Notification) (*Notification, error)
	ListNotifications(ctx context.Context, userID primitive.ObjectID, page Page) ([]*Notification, int64, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) error
	MarkAllNotificationsRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

func (mdb *MongodbRepo) CreateNotification(ctx context.Context, n *Notification) (*Notification, error) {
	col, err := mdb.GetCollection(ctx, NotificationsColName)
	if err != nil {
		return nil, err
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, n); err != nil {
		return nil, mapWriteErr(err, "notification")
	}
	return n, nil
}

func (mdb *MongodbRepo) ListNotifications(ctx context.Context, userID primitive.ObjectID, page Page) ([]*Notification, int64, error) {
	col, err := mdb.GetCollection(ctx, NotificationsColName)
	if err != nil {
		return nil, 0, err
	}
	page = page.normalized()
	filter := bson.M{"user_id": userID}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*Notification, 0, page.Limit)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return items, total, nil
}

func (mdb *MongodbRepo) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	col, err := mdb.GetCollection(ctx, NotificationsColName)
	if err != nil {
		return 0, err
	}
	return col.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
}

func (mdb *MongodbRepo) MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) error {
	col, err := mdb.GetCollection(ctx, NotificationsColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification: %w", ErrNotFound)
	}
	return nil
}

func (mdb *MongodbRepo) MarkAllNotificationsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	col, err := mdb.GetCollection(ctx, NotificationsColName)
	if err != nil {
		return 0, err
	}
	res, err := col.UpdateMany(ctx, bson.M{"user_id": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}
