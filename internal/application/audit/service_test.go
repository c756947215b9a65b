package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lendledger/lendledger/internal/domain/audit"
	auditMocks "github.com/lendledger/lendledger/internal/domain/audit/mocks"
)

func TestService_Record(t *testing.T) {
	t.Run("signs and stores asynchronously", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := auditMocks.NewMockRepository(ctrl)
		key := []byte("secret")
		svc := NewService(repo, zerolog.Nop(), key)
		agreementID, userID := uuid.New(), uuid.New()

		repo.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *audit.Event) error {
				assert.Equal(t, agreementID, e.AgreementID)
				assert.Equal(t, userID, e.UserID)
				assert.Equal(t, audit.ActionAgreementAccepted, e.Action)
				ok, err := audit.VerifySignature(e, key)
				require.NoError(t, err)
				assert.True(t, ok)
				return nil
			})

		ctx, cancel := context.WithCancel(context.Background())
		svc.Record(ctx, agreementID, userID, audit.ActionAgreementAccepted)
		cancel()
		svc.Wait()
	})

	t.Run("store failure is not surfaced", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := auditMocks.NewMockRepository(ctrl)
		svc := NewService(repo, zerolog.Nop(), nil)

		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		svc.Record(context.Background(), uuid.New(), uuid.Nil, audit.ActionAgreementOverdue)
		svc.Wait()
	})

	t.Run("unsigned without key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := auditMocks.NewMockRepository(ctrl)
		svc := NewService(repo, zerolog.Nop(), nil)

		repo.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *audit.Event) error {
				assert.Empty(t, e.Signature)
				return nil
			})

		require.NoError(t, svc.RecordSync(context.Background(), audit.NewEvent(uuid.New(), uuid.New(), audit.ActionRepaymentRequested)))
	})
}

func TestService_Trail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := auditMocks.NewMockRepository(ctrl)
	key := []byte("secret")
	svc := NewService(repo, zerolog.Nop(), key)
	agreementID := uuid.New()

	good := audit.NewEvent(agreementID, uuid.New(), audit.ActionAgreementCreated)
	sig, err := audit.Sign(good, key)
	require.NoError(t, err)
	good.Signature = sig
	tampered := audit.NewEvent(agreementID, uuid.New(), audit.ActionAgreementAccepted)
	tampered.Signature = sig

	repo.EXPECT().ListByAgreement(gomock.Any(), agreementID).Return([]*audit.Event{good, tampered}, nil)

	trail, err := svc.Trail(context.Background(), agreementID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.True(t, trail[0].Verified)
	assert.False(t, trail[1].Verified)
}
