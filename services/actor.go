package services

import (
	"github.com/google/uuid"
	"propmarket/models"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID uuid.UUID
	Role   models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// owns reports whether the actor may see a resource owned by userID. Admins
// see everything.
func (a Actor) owns(userID uuid.UUID) bool {
	return a.IsAdmin() || a.UserID == userID
}
