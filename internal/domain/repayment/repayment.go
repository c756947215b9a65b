package repayment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents repayment request status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
)

var ErrInvalidTransition = errors.New("invalid repayment status transition")

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected},
	StatusConfirmed: {},
	StatusRejected:  {},
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

// Transaction is a single repayment request against a money agreement.
type Transaction struct {
	ID            int64           `json:"id"`
	TransactionID uuid.UUID       `json:"transactionId"`
	AgreementID   uuid.UUID       `json:"agreementId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	DecidedAt     *time.Time      `json:"decidedAt,omitempty"`
}

// New creates a pending repayment request.
func New(agreementID uuid.UUID, amount decimal.Decimal) *Transaction {
	return &Transaction{
		TransactionID: uuid.New(),
		AgreementID:   agreementID,
		Amount:        amount,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// Decide moves a pending request to a terminal status.
func (t *Transaction) Decide(target Status, at time.Time) error {
	if !CanTransition(t.Status, target) {
		return ErrInvalidTransition
	}
	decided := at.UTC()
	t.Status = target
	t.DecidedAt = &decided
	return nil
}
