package agreement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lendledger/lendledger/internal/domain/item"
)

// Status represents agreement status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCanceled  Status = "CANCELED"
	StatusCompleted Status = "COMPLETED"
	StatusOverdue   Status = "OVERDUE"
)

// Statuses lists every agreement status.
var Statuses = []Status{StatusPending, StatusAccepted, StatusRejected, StatusCanceled, StatusCompleted, StatusOverdue}

var ErrInvalidTransition = errors.New("invalid agreement status transition")

var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCanceled},
	StatusAccepted:  {StatusCompleted, StatusOverdue},
	StatusOverdue:   {StatusCompleted},
	StatusRejected:  {},
	StatusCanceled:  {},
	StatusCompleted: {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsActive reports whether the agreement holds its item.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusOverdue
}

// ItemStatus is the item status implied by an agreement in status s.
func (s Status) ItemStatus() item.Status {
	switch {
	case s.IsTerminal(), !ValidStatus(s):
		return item.StatusAvailable
	case s == StatusPending:
		return item.StatusPendingApproval
	default:
		return item.StatusOnLoan
	}
}

// ValidStatus reports whether s is a known agreement status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// MoneyScale is the number of decimal places stored for money amounts.
const MoneyScale = 2

// FitsMoneyScale reports whether d is representable in whole cents.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// Agreement is one lending contract over one item.
type Agreement struct {
	ID          int64            `json:"id"`
	AgreementID uuid.UUID        `json:"agreementId"`
	ItemID      uuid.UUID        `json:"itemId"`
	Status      Status           `json:"status"`
	Principal   *decimal.Decimal `json:"principal,omitempty"`
	DueAt       time.Time        `json:"dueAt"`
	Terms       string           `json:"terms"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// New creates a pending agreement.
func New(itemID uuid.UUID, principal *decimal.Decimal, dueAt time.Time, terms string) *Agreement {
	now := time.Now().UTC()
	return &Agreement{
		AgreementID: uuid.New(),
		ItemID:      itemID,
		Status:      StatusPending,
		Principal:   principal,
		DueAt:       dueAt.UTC(),
		Terms:       terms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransitionTo moves the agreement to target if the table allows it and
// returns the previous status.
func (a *Agreement) TransitionTo(target Status) (Status, error) {
	from := a.Status
	if !CanTransition(from, target) {
		return from, ErrInvalidTransition
	}
	a.Status = target
	a.UpdatedAt = time.Now().UTC()
	return from, nil
}

// IsPastDue reports whether the due date lies strictly before now.
func (a *Agreement) IsPastDue(now time.Time) bool {
	return a.DueAt.Before(now)
}
