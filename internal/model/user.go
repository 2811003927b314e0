package model

import (
	"fmt"
	"time"
)

// User represents an authenticated account.
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	OrganizationID string     `json:"organizationId,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleSuperAdmin = "superAdmin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleSuperAdmin || role == RoleAdmin || role == RoleUser
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleSuperAdmin: 3,
		RoleAdmin:      2,
		RoleUser:       1,
	}
	return levels[role] >= levels[minimum] && levels[minimum] > 0
}

// ValidatePassword checks a new password against the minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	ID             string
	Role           string
	OrganizationID string
	Contact        string
}

// CanModerate reports whether the actor may act as an administrator for an
// item scoped to organizationID. Platform admins moderate everything;
// organization admins only their own organization's items.
func (a Actor) CanModerate(organizationID string) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return a.OrganizationID == organizationID
	}
	return false
}

// CanManage reports whether the actor owns the item or may moderate it.
func (a Actor) CanManage(item *Item) bool {
	if a.ID != "" && a.ID == item.OwnerID {
		return true
	}
	return a.CanModerate(item.OrganizationID)
}
