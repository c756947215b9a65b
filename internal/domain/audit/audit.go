package audit

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Sink,Repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action tags a lending fact.
type Action string

const (
	ActionAgreementCreated   Action = "AGREEMENT_CREATED"
	ActionAgreementAccepted  Action = "AGREEMENT_ACCEPTED"
	ActionAgreementRejected  Action = "AGREEMENT_REJECTED"
	ActionAgreementCanceled  Action = "AGREEMENT_CANCELED"
	ActionAgreementCompleted Action = "AGREEMENT_COMPLETED"
	ActionAgreementOverdue   Action = "AGREEMENT_OVERDUE"
	ActionRepaymentRequested Action = "REPAYMENT_REQUESTED"
	ActionRepaymentConfirmed Action = "REPAYMENT_CONFIRMED"
	ActionRepaymentRejected  Action = "REPAYMENT_REJECTED"
)

// Event is one recorded fact. UserID is uuid.Nil for system actions.
type Event struct {
	ID          int64     `json:"id"`
	EventID     uuid.UUID `json:"eventId"`
	AgreementID uuid.UUID `json:"agreementId"`
	UserID      uuid.UUID `json:"userId"`
	Action      Action    `json:"action"`
	CreatedAt   time.Time `json:"createdAt"`
	Signature   []byte    `json:"signature,omitempty"`
}

// NewEvent builds an event stamped now.
func NewEvent(agreementID, userID uuid.UUID, action Action) *Event {
	return &Event{
		EventID:     uuid.New(),
		AgreementID: agreementID,
		UserID:      userID,
		Action:      action,
		CreatedAt:   time.Now().UTC(),
	}
}

// Sink receives lending facts. Record must not block the caller's transition.
type Sink interface {
	Record(ctx context.Context, agreementID, userID uuid.UUID, action Action)
}

// Repository persists audit events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]*Event, error)
}
