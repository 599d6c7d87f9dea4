package services

import (
	"time"

	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role string
}

func ActorFromClaims(claims *helpers.SessionClaims) Actor {
	return Actor{ID: claims.UserID(), Role: claims.Role}
}

func (a Actor) IsAdmin() bool      { return a.Role == helpers.RoleAdmin }
func (a Actor) IsCustomer() bool   { return a.Role == helpers.RoleCustomer }
func (a Actor) IsTechnician() bool { return a.Role == helpers.RoleTechnician }

// ObjectID returns the actor id as an ObjectID. Admins signed by an external
// identity provider have non-hex subjects and get ErrInvalidID.
func (a Actor) ObjectID() (primitive.ObjectID, error) {
	return models.ParseID(a.ID)
}

func (a Actor) change(from, to models.BookingStatus, note string, at time.Time) models.StatusChange {
	return models.StatusChange{
		From:      from,
		To:        to,
		ActorID:   a.ID,
		ActorRole: a.Role,
		Note:      note,
		At:        at,
	}
}
