package item

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines item persistence used by the lending core.
type Repository interface {
	GetByID(ctx context.Context, itemID uuid.UUID) (*Item, error)
	GetByIDForUpdate(ctx context.Context, itemID uuid.UUID) (*Item, error)
	// UpdateStatus moves the item from one status to another and reports
	// the number of rows changed; zero means the item was not in from.
	UpdateStatus(ctx context.Context, itemID uuid.UUID, from, to Status) (int64, error)
}
