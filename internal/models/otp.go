package models

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OTPPurpose string

const (
	OTPLogin    OTPPurpose = "login"
	OTPStart    OTPPurpose = "start"
	OTPComplete OTPPurpose = "complete"
)

func ValidOTPPurpose(p OTPPurpose) bool {
	return p == OTPLogin || p == OTPStart || p == OTPComplete
}

// OTP is one issued code. Records are removed by the TTL index on expires_at,
// but the monitor runs about once a minute so readers must still check expiry.
type OTP struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Email     string              `bson:"email" json:"email" validate:"required,email"`
	Code      string              `bson:"code" json:"-" validate:"required,numeric"`
	Purpose   OTPPurpose          `bson:"purpose" json:"purpose" validate:"oneof=login start complete"`
	BookingID *primitive.ObjectID `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	ExpiresAt time.Time           `bson:"expires_at" json:"expires_at"`
	UsedAt    *time.Time          `bson:"used_at,omitempty" json:"used_at,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
}

func (o *OTP) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o *OTP) IsUsed() bool {
	return o.UsedAt != nil
}

func (o *OTP) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) == 1
}

type OTPRepo interface {
	CreateOTP(ctx context.Context, otp *OTP) (*OTP, error)
	FindLatestOTP(ctx context.Context, email string, purpose OTPPurpose, bookingID *primitive.ObjectID) (*OTP, error)
	MarkOTPUsed(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

func (mdb *MongodbRepo) CreateOTP(ctx context.Context, otp *OTP) (*OTP, error) {
	col, err := mdb.GetCollection(ctx, OTPsColName)
	if err != nil {
		return nil, err
	}
	if otp.ID.IsZero() {
		otp.ID = primitive.NewObjectID()
	}
	otp.Email = NormalizeEmail(otp.Email)
	if _, err := col.InsertOne(ctx, otp); err != nil {
		return nil, mapWriteErr(err, "otp")
	}
	return otp, nil
}

func (mdb *MongodbRepo) FindLatestOTP(ctx context.Context, email string, purpose OTPPurpose, bookingID *primitive.ObjectID) (*OTP, error) {
	col, err := mdb.GetCollection(ctx, OTPsColName)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"email": NormalizeEmail(email), "purpose": purpose}
	if bookingID != nil {
		filter["booking_id"] = *bookingID
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var otp OTP
	if err := col.FindOne(ctx, filter, opts).Decode(&otp); err != nil {
		return nil, mapFindErr(err, "otp")
	}
	return &otp, nil
}

// MarkOTPUsed stamps the code as consumed. It fails with ErrNotFound when the
// code was consumed by a concurrent request first.
func (mdb *MongodbRepo) MarkOTPUsed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	col, err := mdb.GetCollection(ctx, OTPsColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": id, "used_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"used_at": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}
	if res.ModifiedCount == 0 {
		return fmt.Errorf("otp: %w", ErrNotFound)
	}
	return nil
}
