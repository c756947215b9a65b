package notification

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/lendledger/lendledger/internal/domain/notification"
)

const sseEvent = "notification"

// Service pushes lifecycle notifications to connected parties.
type Service struct {
	sseHub notification.SSEHub
	logger zerolog.Logger
}

var _ notification.Dispatcher = (*Service)(nil)

// NewService creates a new notification service
func NewService(sseHub notification.SSEHub, logger zerolog.Logger) *Service {
	return &Service{
		sseHub: sseHub,
		logger: logger.With().Str("service", "notification").Logger(),
	}
}

// Dispatch sends n to every open stream of its recipient. Offline recipients
// miss the message.
func (s *Service) Dispatch(_ context.Context, n *notification.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Error().Err(err).
			Str("notification_id", n.NotificationID.String()).
			Msg("failed to encode notification")
		return
	}

	sent := s.sseHub.BroadcastToUser(n.RecipientID, notification.NewSSEMessage(sseEvent, data))
	if sent == 0 {
		s.logger.Debug().
			Str("recipient_id", n.RecipientID.String()).
			Str("kind", string(n.Kind)).
			Msg("recipient not connected")
		return
	}
	s.logger.Info().
		Str("notification_id", n.NotificationID.String()).
		Str("recipient_id", n.RecipientID.String()).
		Str("agreement_id", n.AgreementID.String()).
		Str("kind", string(n.Kind)).
		Int("streams", sent).
		Msg("notification delivered")
}
