package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind names the lifecycle event a notification reports.
type Kind string

const (
	KindAgreementRequested Kind = "AGREEMENT_REQUESTED"
	KindAgreementAccepted  Kind = "AGREEMENT_ACCEPTED"
	KindAgreementRejected  Kind = "AGREEMENT_REJECTED"
	KindAgreementCanceled  Kind = "AGREEMENT_CANCELED"
	KindAgreementCompleted Kind = "AGREEMENT_COMPLETED"
	KindAgreementOverdue   Kind = "AGREEMENT_OVERDUE"
	KindRepaymentRequested Kind = "REPAYMENT_REQUESTED"
	KindRepaymentConfirmed Kind = "REPAYMENT_CONFIRMED"
	KindRepaymentRejected  Kind = "REPAYMENT_REJECTED"
)

var titles = map[Kind]string{
	KindAgreementRequested: "New lending request",
	KindAgreementAccepted:  "Agreement accepted",
	KindAgreementRejected:  "Agreement rejected",
	KindAgreementCanceled:  "Agreement canceled",
	KindAgreementCompleted: "Agreement completed",
	KindAgreementOverdue:   "Agreement overdue",
	KindRepaymentRequested: "Repayment awaiting confirmation",
	KindRepaymentConfirmed: "Repayment confirmed",
	KindRepaymentRejected:  "Repayment rejected",
}

// Title returns the human readable heading for k.
func (k Kind) Title() string {
	if t, ok := titles[k]; ok {
		return t
	}
	return string(k)
}

// Notification is addressed to a single user.
type Notification struct {
	NotificationID uuid.UUID       `json:"notificationId"`
	RecipientID    uuid.UUID       `json:"recipientId"`
	AgreementID    uuid.UUID       `json:"agreementId"`
	Kind           Kind            `json:"kind"`
	Title          string          `json:"title"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NewNotification creates a notification for recipient.
func NewNotification(recipientID, agreementID uuid.UUID, kind Kind, payload json.RawMessage) *Notification {
	return &Notification{
		NotificationID: uuid.New(),
		RecipientID:    recipientID,
		AgreementID:    agreementID,
		Kind:           kind,
		Title:          kind.Title(),
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	}
}

// Fanout dispatches one notification of kind to each recipient, skipping
// uuid.Nil.
func Fanout(ctx context.Context, d Dispatcher, agreementID uuid.UUID, kind Kind, payload json.RawMessage, recipients ...uuid.UUID) {
	if d == nil {
		return
	}
	for _, r := range recipients {
		if r == uuid.Nil {
			continue
		}
		d.Dispatch(ctx, NewNotification(r, agreementID, kind, payload))
	}
}

// SSEClient represents an active SSE connection
type SSEClient struct {
	ClientID    string
	UserID      uuid.UUID
	ConnectedAt time.Time
	MessageChan chan *SSEMessage
}

// NewSSEClient creates a new SSE client
func NewSSEClient(clientID string, userID uuid.UUID) *SSEClient {
	return &SSEClient{
		ClientID:    clientID,
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *SSEMessage, 100),
	}
}

// Close closes the client's message channel
func (c *SSEClient) Close() {
	close(c.MessageChan)
}

// SSEMessage represents a message to be sent via SSE
type SSEMessage struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSSEMessage creates a new SSE message
func NewSSEMessage(event string, data json.RawMessage) *SSEMessage {
	return &SSEMessage{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
