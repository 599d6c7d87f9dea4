package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TechnicianStatus string

const (
	TechnicianAvailable TechnicianStatus = "Available"
	TechnicianBusy      TechnicianStatus = "Busy"
	TechnicianOffline   TechnicianStatus = "Offline"
)

type Technician struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name" validate:"required,min=2,max=80"`
	Email       string             `bson:"email" json:"email" validate:"required,email"`
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty" validate:"omitempty,phone"`
	Specialty   string             `bson:"specialty" json:"specialty" validate:"required,max=80"`
	Rating      float64            `bson:"rating" json:"rating" validate:"min=0,max=5"`
	RatingCount int                `bson:"rating_count" json:"rating_count"`
	Status      TechnicianStatus   `bson:"status" json:"status" validate:"oneof=Available Busy Offline"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

func (t *Technician) BeforeCreate(now time.Time) {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.Email = NormalizeEmail(t.Email)
	t.Name = strings.TrimSpace(t.Name)
	t.Specialty = strings.TrimSpace(t.Specialty)
	if t.Status == "" {
		t.Status = TechnicianAvailable
	}
	t.CreatedAt = now
	t.UpdatedAt = now
}

func ValidTechnicianStatus(s TechnicianStatus) bool {
	switch s {
	case TechnicianAvailable, TechnicianBusy, TechnicianOffline:
		return true
	}
	return false
}

// TechnicianFilter narrows ListTechnicians; empty fields match everything.
type TechnicianFilter struct {
	Status    TechnicianStatus
	Specialty string
}
