package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

const maxCommentLength = 10000

// AddCommentCommand posts Content on TicketID.
type AddCommentCommand struct {
	TicketID   string
	Content    string
	IsInternal bool
}

// AddAttachmentCommand records metadata for a blob already stored elsewhere.
type AddAttachmentCommand struct {
	TicketID        string
	ExpectedVersion *int64
	Path            string
	FileName        string
	SizeBytes       int64
	MimeType        string
}

// AddComment appends a comment. Internal comments require a staff role and a
// user asking for one is refused rather than downgraded. The comment does not
// depend on the ticket state it read, so a lost version race is retried.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, cmd AddCommentCommand) (*domain.Comment, error) {
	content := s.sanitizeText(cmd.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("content", "comment content is required")
	}
	if len([]rune(content)) > maxCommentLength {
		return nil, apperrors.NewValidationError("content", fmt.Sprintf("comment exceeds %d characters", maxCommentLength))
	}

	attempts := s.settings.CommentRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var comment *domain.Comment
		_, err = s.mutate(ctx, actor, cmd.TicketID, nil, func(_ context.Context, _ repository.Repositories, ticket *domain.Ticket, _ time.Time) (*change, error) {
			if !policy.CanComment(actor, ticket, cmd.IsInternal) {
				return nil, apperrors.NewForbidden("internal comments are restricted to staff")
			}
			comment = &domain.Comment{
				ID:         uuid.NewString(),
				TicketID:   ticket.ID,
				UserID:     actor.ID,
				Content:    content,
				IsInternal: cmd.IsInternal,
			}
			description := "Comment added"
			if cmd.IsInternal {
				description = "Internal note added"
			}
			return &change{
				action:      domain.ActionCommented,
				description: description,
				metadata:    map[string]any{"comment_id": comment.ID, "internal": cmd.IsInternal},
				comment:     comment,
				internal:    cmd.IsInternal,
			}, nil
		})
		if err == nil {
			return comment, nil
		}
		if !apperrors.IsConflict(err) {
			return nil, err
		}
		s.logger.Debug("comment lost version race; retrying",
			zap.String("ticket_id", cmd.TicketID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, err
}

// ListComments returns the thread oldest first, hiding internal comments from
// actors who may not see them.
func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.Repositories().Comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, storeError(err, "comment")
	}
	visible := make([]domain.Comment, 0, len(comments))
	for i := range comments {
		if policy.CanViewComment(actor, ticket, &comments[i]) {
			visible = append(visible, comments[i])
		}
	}
	return visible, nil
}

// Watch subscribes actor to ticket notifications. Watching grants no access
// and is not a ticket mutation.
func (s *TicketService) Watch(ctx context.Context, actor domain.Actor, ticketID string) error {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	watcher := &domain.Watcher{TicketID: ticket.ID, UserID: actor.ID, CreatedAt: s.now()}
	if err := s.store.Repositories().Watchers.Add(ctx, watcher); err != nil {
		return storeError(err, "watcher")
	}
	return nil
}

// Unwatch removes actor's subscription; absent subscriptions are not an error.
func (s *TicketService) Unwatch(ctx context.Context, actor domain.Actor, ticketID string) error {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	if err := s.store.Repositories().Watchers.Remove(ctx, ticket.ID, actor.ID); err != nil {
		return storeError(err, "watcher")
	}
	return nil
}

// ListWatchers returns the watcher set of a visible ticket.
func (s *TicketService) ListWatchers(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Watcher, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	watchers, err := s.store.Repositories().Watchers.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, storeError(err, "watcher")
	}
	if watchers == nil {
		watchers = []domain.Watcher{}
	}
	return watchers, nil
}

// AddAttachment records attachment metadata; bytes live in external storage.
func (s *TicketService) AddAttachment(ctx context.Context, actor domain.Actor, cmd AddAttachmentCommand) (*domain.Attachment, error) {
	path := strings.TrimSpace(cmd.Path)
	fileName := s.sanitizeLine(cmd.FileName)
	mimeType := strings.ToLower(strings.TrimSpace(cmd.MimeType))
	switch {
	case path == "":
		return nil, apperrors.NewValidationError("path", "storage path is required")
	case fileName == "":
		return nil, apperrors.NewValidationError("file_name", "file name is required")
	case mimeType == "":
		return nil, apperrors.NewValidationError("mime_type", "mime type is required")
	case cmd.SizeBytes <= 0:
		return nil, apperrors.NewValidationError("size_bytes", "size must be positive")
	case cmd.SizeBytes > s.settings.MaxAttachmentBytes:
		return nil, apperrors.NewValidationError("size_bytes", fmt.Sprintf("attachments are limited to %d bytes", s.settings.MaxAttachmentBytes))
	}

	var attachment *domain.Attachment
	_, err := s.mutate(ctx, actor, cmd.TicketID, cmd.ExpectedVersion, func(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, now time.Time) (*change, error) {
		if !policy.CanMutate(actor, ticket, []policy.Field{policy.FieldAttachments}) {
			return nil, apperrors.NewForbidden("not allowed to attach files to this ticket")
		}
		attachment = &domain.Attachment{
			ID:         uuid.NewString(),
			TicketID:   ticket.ID,
			UploadedBy: actor.ID,
			Path:       path,
			FileName:   fileName,
			SizeBytes:  cmd.SizeBytes,
			MimeType:   mimeType,
			CreatedAt:  now,
		}
		if err := repos.Attachments.Create(ctx, attachment); err != nil {
			return nil, storeError(err, "attachment")
		}
		return &change{
			action:      domain.ActionUpdated,
			description: "Attached " + fileName,
			metadata: map[string]any{
				"fields":        []string{string(policy.FieldAttachments)},
				"attachment_id": attachment.ID,
				"size_bytes":    cmd.SizeBytes,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// ListAttachments returns attachment metadata of a visible ticket.
func (s *TicketService) ListAttachments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Attachment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.store.Repositories().Attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, storeError(err, "attachment")
	}
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	return attachments, nil
}
