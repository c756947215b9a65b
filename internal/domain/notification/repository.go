package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . SSEHub,Dispatcher

import (
	"context"

	"github.com/google/uuid"
)

// Dispatcher delivers notifications without blocking the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *Notification)
}

// SSEHub defines the interface for managing SSE connections
type SSEHub interface {
	// Register adds client, closing any client already registered under
	// the same ClientID.
	Register(client *SSEClient)
	// Unregister removes client only while it is still the registered one.
	Unregister(client *SSEClient)
	BroadcastToUser(userID uuid.UUID, message *SSEMessage) int
	Stop()
}
