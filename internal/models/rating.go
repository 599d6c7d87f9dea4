package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

type Rating struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BookingID    primitive.ObjectID `bson:"booking_id" json:"booking_id"`
	CustomerID   primitive.ObjectID `bson:"customer_id" json:"customer_id"`
	TechnicianID primitive.ObjectID `bson:"technician_id" json:"technician_id"`
	Score        int                `bson:"score" json:"score" validate:"required,min=1,max=5"`
	Review       string             `bson:"review,omitempty" json:"review,omitempty" validate:"max=2000"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

func (r *Rating) BeforeCreate(now time.Time) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.CreatedAt = now
}

func (r *Rating) Sanitize() {
	r.Review = strings.Join(strings.Fields(r.Review), " ")
}

func (r Rating) ValidateRating() error {
	if r.Score < MinRatingScore || r.Score > MaxRatingScore {
		return fmt.Errorf("rating must be between %d and %d", MinRatingScore, MaxRatingScore)
	}
	if r.BookingID.IsZero() {
		return fmt.Errorf("invalid booking ID")
	}
	if r.CustomerID.IsZero() {
		return fmt.Errorf("invalid customer ID")
	}
	if r.TechnicianID.IsZero() {
		return fmt.Errorf("invalid technician ID")
	}
	return Validate.Struct(r)
}
