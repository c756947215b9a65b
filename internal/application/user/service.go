package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lendledger/lendledger/internal/domain/errs"
	domain "github.com/lendledger/lendledger/internal/domain/user"
)

// Service reads user profiles.
type Service struct {
	repo   domain.Repository
	logger zerolog.Logger
}

// NewService creates a user service.
func NewService(repo domain.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "user").Logger(),
	}
}

// Profile is the caller-facing view of a user.
type Profile struct {
	UserID      uuid.UUID     `json:"userId"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	Email       string        `json:"email"`
	Status      domain.Status `json:"status"`
}

// Get loads a profile by id.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, errs.NotFound("user.get", "user not found")
	}
	return &Profile{
		UserID:      u.UserID,
		Username:    u.Username,
		DisplayName: u.Label(),
		Email:       u.Email,
		Status:      u.Status,
	}, nil
}
