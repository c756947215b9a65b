package agreement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lendledger/lendledger/internal/domain/item"
)

// PartyView is a party with display info resolved from the user directory.
type PartyView struct {
	UserID      uuid.UUID  `json:"userId"`
	Role        Role       `json:"role"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// LedgerSummary reports repayment progress of a money loan.
type LedgerSummary struct {
	Principal      decimal.Decimal `json:"principal"`
	ConfirmedTotal decimal.Decimal `json:"confirmedTotal"`
	Remaining      decimal.Decimal `json:"remaining"`
}

// Details is what agreement operations return to callers.
type Details struct {
	Agreement *Agreement     `json:"agreement"`
	ItemType  item.Type      `json:"itemType"`
	ItemName  string         `json:"itemName"`
	Creditor  PartyView      `json:"creditor"`
	Debtor    PartyView      `json:"debtor"`
	Ledger    *LedgerSummary `json:"ledger,omitempty"`
}
