package repayment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecide(t *testing.T) {
	tx := New(uuid.New(), d("6000.00"))
	assert.Equal(t, StatusPending, tx.Status)
	assert.Nil(t, tx.DecidedAt)

	require.NoError(t, tx.Decide(StatusConfirmed, time.Now()))
	assert.Equal(t, StatusConfirmed, tx.Status)
	assert.NotNil(t, tx.DecidedAt)

	assert.ErrorIs(t, tx.Decide(StatusRejected, time.Now()), ErrInvalidTransition)
	assert.ErrorIs(t, tx.Decide(StatusPending, time.Now()), ErrInvalidTransition)
}

func TestLedgerMath(t *testing.T) {
	principal := d("10000.00")

	assert.False(t, IsSettled(d("6000.00"), principal))
	assert.True(t, IsSettled(d("10000"), principal))
	assert.True(t, IsSettled(d("10000.01"), principal))

	assert.True(t, Remaining(d("6000"), principal).Equal(d("4000")))
	assert.True(t, Remaining(d("12000"), principal).IsZero())

	assert.True(t, Fits(d("6000"), d("4000"), principal))
	assert.False(t, Fits(d("6000"), d("4000.01"), principal))
	assert.False(t, Fits(decimal.Zero, d("12000"), principal))
}
