package repayment

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lendledger/lendledger/internal/domain/agreement"
)

// Repository defines repayment persistence.
type Repository interface {
	Create(ctx context.Context, t *Transaction) (int64, error)
	GetByID(ctx context.Context, transactionID uuid.UUID) (*Transaction, error)
	GetByIDForUpdate(ctx context.Context, transactionID uuid.UUID) (*Transaction, error)
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]*Transaction, error)
	// UpdateStatus is a compare-and-set on the previous status.
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, from, to Status, at time.Time) (int64, error)
	SumConfirmed(ctx context.Context, agreementID uuid.UUID) (decimal.Decimal, error)
}

// Details is what repayment operations return to callers.
type Details struct {
	Transaction     *Transaction     `json:"transaction"`
	AgreementID     uuid.UUID        `json:"agreementId"`
	AgreementStatus agreement.Status `json:"agreementStatus"`
	CreditorID      uuid.UUID        `json:"creditorId"`
	DebtorID        uuid.UUID        `json:"debtorId"`
	CreditorName    string           `json:"creditorName"`
	DebtorName      string           `json:"debtorName"`
	ConfirmedTotal  decimal.Decimal  `json:"confirmedTotal"`
	Remaining       decimal.Decimal  `json:"remaining"`
	Settled         bool             `json:"settled"`
}
