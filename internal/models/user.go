package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name" validate:"required,min=2,max=80"`
	Email     string             `bson:"email" json:"email" validate:"required,email"`
	Password  string             `bson:"password,omitempty" json:"-"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty" validate:"omitempty,phone"`
	Address   string             `bson:"address,omitempty" json:"address,omitempty" validate:"max=300"`
	Status    string             `bson:"status" json:"status" validate:"oneof=active blocked"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

func (u *User) BeforeCreate(now time.Time) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	u.CreatedAt = now
	u.UpdatedAt = now
}

func (u *User) IsBlocked() bool {
	return u.Status == UserStatusBlocked
}

// NormalizeEmail is the canonical form used for every email lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
