package user

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines user lookups.
type Repository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*User, error)
}
