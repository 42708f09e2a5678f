package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates the closed set of actor roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleUser       Role = "user"
)

// ParseRole converts raw input into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleUser:
		return true
	}
	return false
}

// IsStaff reports whether the role may see internal comments.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleSupervisor:
		return true
	case RoleUser:
		return false
	}
	return false
}

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// Valid reports whether s is a declared status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

// User is an organization member as stored.
type User struct {
	ID             string
	OrganizationID string
	DepartmentID   *string
	Name           string
	Email          string
	Role           Role
	Status         UserStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Actor is the resolved identity threaded into every core call.
type Actor struct {
	ID             string
	OrganizationID string
	DepartmentID   *string
	Role           Role
	Status         UserStatus
}

// ActorFromUser builds an actor from a stored user record.
func ActorFromUser(u *User) Actor {
	return Actor{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		DepartmentID:   u.DepartmentID,
		Role:           u.Role,
		Status:         u.Status,
	}
}
