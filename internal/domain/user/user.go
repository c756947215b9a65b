package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents user status.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

// User is the read-only view of a registered person the lending core needs
// for existence checks and party display.
type User struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Label returns the name shown to the counterparty.
func (u *User) Label() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return u.Username
}
