package item

import (
	"time"

	"github.com/google/uuid"
)

// Type distinguishes money loans from object loans.
type Type string

const (
	TypeMoney  Type = "MONEY"
	TypeObject Type = "OBJECT"
)

// Status represents item availability.
type Status string

const (
	StatusAvailable       Status = "AVAILABLE"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusOnLoan          Status = "ON_LOAN"
)

// Item is the money or object being lent.
type Item struct {
	ID        int64     `json:"id"`
	ItemID    uuid.UUID `json:"itemId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Type      Type      `json:"type"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i *Item) IsMoney() bool {
	return i.Type == TypeMoney
}

func (i *Item) IsAvailable() bool {
	return i.Status == StatusAvailable
}
