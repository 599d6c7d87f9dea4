package helpers

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer   = "customer"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleTechnician || role == RoleAdmin
}

// SessionClaims is the payload of every bearer token the API accepts.
// Tokens minted by an external identity provider carry their roles in
// app_metadata instead of the top level role claim.
type SessionClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	AppMetadata struct {
		Roles []string `json:"roles,omitempty"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

func (sc *SessionClaims) UserID() string {
	return sc.Subject
}

func (sc *SessionClaims) IsAdmin() bool {
	return sc.Role == RoleAdmin
}

func (sc *SessionClaims) HasRole(roles ...string) bool {
	return slices.Contains(roles, sc.Role)
}

func (sc *SessionClaims) IsOwner(userID string) bool {
	return sc.Subject == userID
}

// CanAccess reports whether the caller is the owner of a resource or an admin.
func (sc *SessionClaims) CanAccess(ownerID string) bool {
	return sc.IsAdmin() || sc.IsOwner(ownerID)
}
