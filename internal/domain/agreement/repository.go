package agreement

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository,PartyRepository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines agreement persistence. Write methods report affected
// rows so callers can detect writes that silently matched nothing.
type Repository interface {
	Create(ctx context.Context, a *Agreement) (int64, error)
	GetByID(ctx context.Context, agreementID uuid.UUID) (*Agreement, error)
	// GetByIDForUpdate reads the agreement and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, agreementID uuid.UUID) (*Agreement, error)
	// UpdateStatus is a compare-and-set on the previous status.
	UpdateStatus(ctx context.Context, agreementID uuid.UUID, from, to Status, at time.Time) (int64, error)
	// ListOverdueCandidates returns accepted agreements due before now,
	// ordered by (due_at, id) and strictly after the cursor.
	ListOverdueCandidates(ctx context.Context, now time.Time, after OverdueCursor, limit int) ([]*Agreement, error)
}

// OverdueCursor is a keyset position in the overdue listing. The zero value
// starts from the beginning.
type OverdueCursor struct {
	DueAt time.Time
	ID    int64
}

// After reports whether a sorts strictly after the cursor.
func (c OverdueCursor) After(a *Agreement) bool {
	if !a.DueAt.Equal(c.DueAt) {
		return a.DueAt.After(c.DueAt)
	}
	return a.ID > c.ID
}

// CursorOf is the cursor positioned at a.
func CursorOf(a *Agreement) OverdueCursor {
	return OverdueCursor{DueAt: a.DueAt, ID: a.ID}
}

// PartyRepository defines persistence for the two party rows.
type PartyRepository interface {
	Create(ctx context.Context, p *Party) (int64, error)
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]*Party, error)
	// Confirm sets confirmed_at only when it is still unset.
	Confirm(ctx context.Context, agreementID uuid.UUID, role Role, at time.Time) (int64, error)
}
