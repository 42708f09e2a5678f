package domain

import "time"

// Department routes tickets inside an organization.
type Department struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	SupervisorID   *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Category is an optional ticket classification.
type Category struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
}
