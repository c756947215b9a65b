package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lendledger/lendledger/internal/domain/notification"
	notificationMocks "github.com/lendledger/lendledger/internal/domain/notification/mocks"
	"github.com/lendledger/lendledger/internal/infrastructure/sse"
)

func TestService_Dispatch(t *testing.T) {
	t.Run("broadcasts to recipient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		hub := notificationMocks.NewMockSSEHub(ctrl)
		service := NewService(hub, zerolog.Nop())

		recipient, agreementID := uuid.New(), uuid.New()
		n := notification.NewNotification(recipient, agreementID, notification.KindAgreementAccepted, json.RawMessage(`{"status":"ACCEPTED"}`))

		hub.EXPECT().
			BroadcastToUser(recipient, gomock.Any()).
			DoAndReturn(func(_ uuid.UUID, msg *notification.SSEMessage) int {
				assert.Equal(t, "notification", msg.Event)
				var got notification.Notification
				require.NoError(t, json.Unmarshal(msg.Data, &got))
				assert.Equal(t, n.NotificationID, got.NotificationID)
				assert.Equal(t, notification.KindAgreementAccepted, got.Kind)
				assert.JSONEq(t, `{"status":"ACCEPTED"}`, string(got.Payload))
				return 1
			})

		service.Dispatch(context.Background(), n)
	})

	t.Run("offline recipient is not an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		hub := notificationMocks.NewMockSSEHub(ctrl)
		service := NewService(hub, zerolog.Nop())

		hub.EXPECT().BroadcastToUser(gomock.Any(), gomock.Any()).Return(0)

		service.Dispatch(context.Background(), notification.NewNotification(uuid.New(), uuid.New(), notification.KindAgreementOverdue, nil))
	})
}

func TestService_DispatchThroughHub(t *testing.T) {
	hub := sse.NewHub()
	defer hub.Stop()
	service := NewService(hub, zerolog.Nop())

	recipient := uuid.New()
	client := notification.NewSSEClient("c1", recipient)
	hub.Register(client)

	notification.Fanout(context.Background(), service, uuid.New(), notification.KindRepaymentRequested, nil, recipient, uuid.Nil)

	select {
	case msg := <-client.MessageChan:
		assert.Equal(t, "notification", msg.Event)
	default:
		t.Fatal("expected a message on the recipient stream")
	}
}
