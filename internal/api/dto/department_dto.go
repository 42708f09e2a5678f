package dto

import (
	"time"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// DepartmentRequest is used for both create and update.
type DepartmentRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Description  string  `json:"description" validate:"max=1000"`
	SupervisorID *string `json:"supervisor_id" validate:"omitempty,max=64"`
	IsActive     *bool   `json:"is_active"`
}

// DepartmentResponse is the wire form of a department.
type DepartmentResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SupervisorID *string   `json:"supervisor_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewDepartmentResponse maps a department.
func NewDepartmentResponse(d *domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		SupervisorID: d.SupervisorID,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
