package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/auth"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

// IdentityService turns a raw credential into an Actor.
type IdentityService struct {
	tokens *auth.TokenManager
	users  repository.UserRepository
	logger *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(tokens *auth.TokenManager, users repository.UserRepository, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{tokens: tokens, users: users, logger: logger.With(zap.String("component", "identity_service"))}
}

// Resolve validates rawToken and loads the actor it names. Organization,
// department and role are read from storage. Accounts that are not active
// are rejected.
func (s *IdentityService) Resolve(ctx context.Context, rawToken string) (domain.Actor, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("missing credential")
	}
	claims, err := s.tokens.ParseToken(rawToken)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return domain.Actor{}, apperrors.NewUnauthorized("invalid token")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Actor{}, apperrors.NewUnauthorized("unknown user")
		}
		return domain.Actor{}, apperrors.NewUnavailable(err)
	}
	if user.Status != domain.UserStatusActive {
		return domain.Actor{}, apperrors.NewUnauthorized("account is " + string(user.Status))
	}
	if user.OrganizationID == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("account has no organization")
	}
	return domain.ActorFromUser(user), nil
}
