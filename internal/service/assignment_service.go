package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	*ticketCore
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps TicketDependencies) *AssignmentService {
	return &AssignmentService{ticketCore: newTicketCore(deps, "assignment_service")}
}

// AssignCommand sets or clears (AssigneeID nil) the assignee of TicketID.
type AssignCommand struct {
	TicketID        string
	AssigneeID      *string
	ExpectedVersion *int64
}

// Assign hands a ticket to an active member of the same organization.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, cmd AssignCommand) (*domain.Ticket, error) {
	assignee := normalizeRef(cmd.AssigneeID)

	return s.mutate(ctx, actor, cmd.TicketID, cmd.ExpectedVersion, func(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, _ time.Time) (*change, error) {
		if !policy.CanMutate(actor, ticket, []policy.Field{policy.FieldAssignee}) {
			return nil, apperrors.NewForbidden("not allowed to assign tickets")
		}
		if sameStringPtr(assignee, ticket.AssignedTo) {
			return nil, apperrors.NewValidationError(string(policy.FieldAssignee), "ticket already has this assignee")
		}
		if err := checkAssignee(ctx, repos, ticket.OrganizationID, assignee); err != nil {
			return nil, err
		}
		previous := ticket.AssignedTo
		ticket.AssignedTo = assignee
		return assignmentChange(previous, assignee), nil
	})
}

// checkAssignee requires an active user of organizationID. A nil assignee
// clears the assignment and is always acceptable.
func checkAssignee(ctx context.Context, repos repository.Repositories, organizationID string, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	user, err := repos.Users.GetByID(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(string(policy.FieldAssignee), "unknown assignee")
		}
		return storeError(err, "user")
	}
	if user.OrganizationID != organizationID {
		return apperrors.NewValidationError(string(policy.FieldAssignee), "unknown assignee")
	}
	if user.Status != domain.UserStatusActive {
		return apperrors.NewValidationError(string(policy.FieldAssignee), "assignee is not active")
	}
	return nil
}

func assignmentChange(previous, next *string) *change {
	metadata := map[string]any{"from": nil, "to": nil}
	if previous != nil {
		metadata["from"] = *previous
	}
	description := "Assignment cleared"
	if next != nil {
		metadata["to"] = *next
		description = "Assigned to " + *next
	}
	return &change{
		action:      domain.ActionAssigned,
		description: description,
		metadata:    metadata,
	}
}
