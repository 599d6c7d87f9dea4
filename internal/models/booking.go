package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "Pending"
	BookingScheduled  BookingStatus = "Scheduled"
	BookingInProgress BookingStatus = "In Progress"
	BookingCompleted  BookingStatus = "Completed"
	BookingCancelled  BookingStatus = "Cancelled"
)

// BookingStatuses lists every status in workflow order.
var BookingStatuses = []BookingStatus{
	BookingPending,
	BookingScheduled,
	BookingInProgress,
	BookingCompleted,
	BookingCancelled,
}

var statusRank = map[BookingStatus]int{
	BookingPending:    0,
	BookingScheduled:  1,
	BookingInProgress: 2,
	BookingCompleted:  3,
}

func ValidBookingStatus(s BookingStatus) bool {
	for _, st := range BookingStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransition reports whether a booking may move from one status to another.
// Completed and Cancelled are final. Otherwise a booking may move forward,
// skipping steps if needed, or be cancelled.
func CanTransition(from, to BookingStatus) error {
	if !ValidBookingStatus(to) {
		return fmt.Errorf("unknown booking status %q", to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("booking is already %s", from)
	}
	if from == to {
		return fmt.Errorf("booking is already %s", from)
	}
	if to == BookingCancelled {
		return nil
	}
	if statusRank[to] <= statusRank[from] {
		return fmt.Errorf("cannot move booking from %s back to %s", from, to)
	}
	return nil
}

type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

type StatusChange struct {
	From      BookingStatus `bson:"from,omitempty" json:"from,omitempty"`
	To        BookingStatus `bson:"to" json:"to"`
	ActorID   string        `bson:"actor_id" json:"actor_id"`
	ActorRole string        `bson:"actor_role" json:"actor_role"`
	Note      string        `bson:"note,omitempty" json:"note,omitempty"`
	At        time.Time     `bson:"at" json:"at"`
}

type Booking struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CustomerID    primitive.ObjectID  `bson:"customer_id" json:"customer_id"`
	TechnicianID  *primitive.ObjectID `bson:"technician_id,omitempty" json:"technician_id,omitempty"`
	ServiceID     primitive.ObjectID  `bson:"service_id" json:"service_id"`
	ServiceName   string              `bson:"service_name" json:"service_name"`
	Date          string              `bson:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Time          string              `bson:"time" json:"time" validate:"required,datetime=15:04"`
	ScheduledAt   time.Time           `bson:"scheduled_at" json:"scheduled_at"`
	Amount        float64             `bson:"amount" json:"amount" validate:"gte=0"`
	Address       string              `bson:"address" json:"address" validate:"required,max=300"`
	Location      *GeoPoint           `bson:"location,omitempty" json:"location,omitempty"`
	Notes         string              `bson:"notes,omitempty" json:"notes,omitempty" validate:"max=1000"`
	Status        BookingStatus       `bson:"status" json:"status" validate:"booking_status"`
	StatusHistory []StatusChange      `bson:"status_history" json:"status_history"`
	ReminderSent  bool                `bson:"reminder_sent" json:"-"`
	CompletedAt   *time.Time          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt   *time.Time          `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

func (b *Booking) BeforeCreate(now time.Time, actorID string) error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	at, err := ParseSchedule(b.Date, b.Time)
	if err != nil {
		return err
	}
	b.ScheduledAt = at
	b.Status = BookingPending
	b.StatusHistory = []StatusChange{{
		To:        BookingPending,
		ActorID:   actorID,
		ActorRole: "customer",
		At:        now,
	}}
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (b *Booking) IsAssignedTo(technicianID primitive.ObjectID) bool {
	return b.TechnicianID != nil && *b.TechnicianID == technicianID
}

// ParseSchedule combines the booking date and time fields into one instant.
func ParseSchedule(date, clock string) (time.Time, error) {
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid booking date or time: %w", err)
	}
	return at, nil
}

// BookingFilter narrows ListBookings; zero fields match everything.
type BookingFilter struct {
	CustomerID   primitive.ObjectID
	TechnicianID primitive.ObjectID
	Status       BookingStatus
}

type BookingStats struct {
	ByStatus map[BookingStatus]int64 `json:"by_status"`
	Total    int64                   `json:"total"`
	Revenue  float64                 `json:"revenue"`
}
