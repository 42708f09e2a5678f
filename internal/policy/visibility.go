// Package policy decides which tickets and comments an actor may see or change.
// Every function is pure; callers thread the actor explicitly.
package policy

import (
	"github.com/spec-kit/complaint-desk/internal/domain"
)

// Field names a mutable ticket attribute.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCategory    Field = "category_id"
	FieldDepartment  Field = "department_id"
	FieldPriority    Field = "priority"
	FieldDueDate     Field = "due_date"
	FieldAssignee    Field = "assigned_to"
	FieldStatus      Field = "status"
	FieldRating      Field = "satisfaction_rating"
	FieldAttachments Field = "attachments"
)

// userEditable is the allow-list for the user role on tickets they created.
var userEditable = map[Field]struct{}{
	FieldTitle:       {},
	FieldDescription: {},
	FieldCategory:    {},
	FieldDepartment:  {},
	FieldPriority:    {},
	FieldDueDate:     {},
	FieldRating:      {},
	FieldAttachments: {},
}

// TicketScope is the filter derived from an actor. It is evaluated in memory
// through Matches and translated to SQL by the repositories.
type TicketScope struct {
	OrganizationID string
	// DepartmentID restricts to one department when set.
	DepartmentID *string
	// ParticipantID restricts to tickets created by or assigned to the user.
	ParticipantID *string
	// Empty matches nothing.
	Empty bool
}

// ComputeFilter derives the ticket scope for actor.
func ComputeFilter(actor domain.Actor) TicketScope {
	scope := TicketScope{OrganizationID: actor.OrganizationID}
	if actor.OrganizationID == "" || actor.Status != domain.UserStatusActive {
		scope.Empty = true
		return scope
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return scope
	case domain.RoleSupervisor:
		if actor.DepartmentID == nil || *actor.DepartmentID == "" {
			scope.Empty = true
			return scope
		}
		dept := *actor.DepartmentID
		scope.DepartmentID = &dept
		return scope
	case domain.RoleUser:
		id := actor.ID
		scope.ParticipantID = &id
		return scope
	}
	scope.Empty = true
	return scope
}

// Narrow intersects the scope with a department drill-down. The value
// domain.AllDepartments leaves the scope unchanged.
func (s TicketScope) Narrow(departmentID string) TicketScope {
	if departmentID == "" || departmentID == domain.AllDepartments {
		return s
	}
	if s.DepartmentID != nil && *s.DepartmentID != departmentID {
		s.Empty = true
		return s
	}
	dept := departmentID
	s.DepartmentID = &dept
	return s
}

// Matches evaluates the scope against a ticket.
func (s TicketScope) Matches(t *domain.Ticket) bool {
	if s.Empty || t == nil {
		return false
	}
	if t.OrganizationID != s.OrganizationID {
		return false
	}
	if s.DepartmentID != nil {
		if t.DepartmentID == nil || *t.DepartmentID != *s.DepartmentID {
			return false
		}
	}
	if s.ParticipantID != nil {
		if t.CreatedBy == *s.ParticipantID {
			return true
		}
		return t.AssignedTo != nil && *t.AssignedTo == *s.ParticipantID
	}
	return true
}

// CanView reports whether actor may read t.
func CanView(actor domain.Actor, t *domain.Ticket) bool {
	return ComputeFilter(actor).Matches(t)
}

// CanMutate reports whether actor may change every field in fields on t.
func CanMutate(actor domain.Actor, t *domain.Ticket, fields []Field) bool {
	if !CanView(actor, t) {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSupervisor:
		return true
	case domain.RoleUser:
		if t.CreatedBy != actor.ID {
			return false
		}
		for _, f := range fields {
			if _, ok := userEditable[f]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

// CanComment reports whether actor may add a comment with the given
// internal flag to t.
func CanComment(actor domain.Actor, t *domain.Ticket, internal bool) bool {
	if !CanView(actor, t) {
		return false
	}
	if internal {
		return actor.Role.IsStaff()
	}
	return true
}

// CanViewComment reports whether actor may read c on parent ticket t.
func CanViewComment(actor domain.Actor, t *domain.Ticket, c *domain.Comment) bool {
	if c == nil || t == nil || c.TicketID != t.ID {
		return false
	}
	if !CanView(actor, t) {
		return false
	}
	if c.IsInternal {
		return actor.Role.IsStaff()
	}
	return true
}

// CanReopen reports whether actor may explicitly reopen t.
func CanReopen(actor domain.Actor, t *domain.Ticket) bool {
	return actor.Role.IsStaff() && CanView(actor, t)
}

// CanManageDepartments reports whether actor may write departments.
func CanManageDepartments(actor domain.Actor) bool {
	return actor.Role == domain.RoleAdmin && actor.Status == domain.UserStatusActive
}
