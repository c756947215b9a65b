package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/errs"
	"github.com/lendledger/lendledger/internal/domain/item"
	"github.com/lendledger/lendledger/internal/domain/store"
)

func TestInTxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	db := New()
	owner := db.AddUser("alice", "Alice")
	it := db.AddItem(owner.UserID, item.TypeObject, "drill")

	t.Run("rollback discards writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.InTx(ctx, func(st store.Store) error {
			n, err := st.Items().UpdateStatus(ctx, it.ItemID, item.StatusAvailable, item.StatusOnLoan)
			require.NoError(t, err)
			require.EqualValues(t, 1, n)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, item.StatusAvailable, db.Item(it.ItemID).Status)
		assert.Equal(t, 1, db.Rollbacks)
	})

	t.Run("commit publishes writes", func(t *testing.T) {
		err := db.InTx(ctx, func(st store.Store) error {
			_, err := st.Items().UpdateStatus(ctx, it.ItemID, item.StatusAvailable, item.StatusPendingApproval)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, item.StatusPendingApproval, db.Item(it.ItemID).Status)
	})

	t.Run("failed commit rolls back", func(t *testing.T) {
		db.FailCommit = errors.New("commit failed")
		defer func() { db.FailCommit = nil }()
		err := db.InTx(ctx, func(st store.Store) error {
			_, err := st.Items().UpdateStatus(ctx, it.ItemID, item.StatusPendingApproval, item.StatusOnLoan)
			return err
		})
		assert.Error(t, err)
		assert.Equal(t, item.StatusPendingApproval, db.Item(it.ItemID).Status)
	})
}

func TestCompareAndSetWrites(t *testing.T) {
	ctx := context.Background()
	db := New()
	owner := db.AddUser("alice", "")
	it := db.AddItem(owner.UserID, item.TypeMoney, "cash")

	_ = db.InTx(ctx, func(st store.Store) error {
		n, err := st.Items().UpdateStatus(ctx, it.ItemID, item.StatusOnLoan, item.StatusAvailable)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
}

func TestActiveAgreementGuard(t *testing.T) {
	ctx := context.Background()
	db := New()
	owner := db.AddUser("alice", "")
	it := db.AddItem(owner.UserID, item.TypeObject, "tent")

	err := db.InTx(ctx, func(st store.Store) error {
		first := agreement.New(it.ItemID, nil, time.Now().Add(time.Hour), "")
		if _, err := st.Agreements().Create(ctx, first); err != nil {
			return err
		}
		second := agreement.New(it.ItemID, nil, time.Now().Add(time.Hour), "")
		_, err := st.Agreements().Create(ctx, second)
		return err
	})
	assert.True(t, errs.IsCode(err, errs.CodeInvalidState))
}

func TestCommittedUsers(t *testing.T) {
	db := New()
	u := db.AddUser("erin", "Erin")

	got, err := db.Users().GetByID(context.Background(), u.UserID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "erin", got.Username)

	missing, err := db.Users().GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := db.Users().GetByIDs(context.Background(), []uuid.UUID{u.UserID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func TestOverdueCandidatesCursor(t *testing.T) {
	ctx := context.Background()
	db := New()
	owner := db.AddUser("alice", "")
	due := time.Now().Add(-time.Hour).UTC()

	var items []*item.Item
	for _, name := range []string{"a", "b", "c"} {
		items = append(items, db.AddItem(owner.UserID, item.TypeObject, name))
	}
	var created []*agreement.Agreement
	require.NoError(t, db.InTx(ctx, func(st store.Store) error {
		for _, it := range items {
			a := agreement.New(it.ItemID, nil, due, "")
			a.Status = agreement.StatusAccepted
			if _, err := st.Agreements().Create(ctx, a); err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	}))

	var got []int64
	cursor := agreement.OverdueCursor{}
	for {
		var batch []*agreement.Agreement
		require.NoError(t, db.InTx(ctx, func(st store.Store) error {
			var err error
			batch, err = st.Agreements().ListOverdueCandidates(ctx, time.Now(), cursor, 2)
			return err
		}))
		for _, a := range batch {
			got = append(got, a.ID)
		}
		if len(batch) < 2 {
			break
		}
		cursor = agreement.CursorOf(batch[len(batch)-1])
	}
	assert.Equal(t, []int64{created[0].ID, created[1].ID, created[2].ID}, got)
}
