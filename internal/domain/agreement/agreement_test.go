package agreement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendledger/lendledger/internal/domain/item"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusOverdue, false},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusOverdue, true},
		{StatusAccepted, StatusCanceled, false},
		{StatusOverdue, StatusCompleted, true},
		{StatusOverdue, StatusAccepted, false},
		{StatusOverdue, StatusOverdue, false},
		{StatusCompleted, StatusAccepted, false},
		{StatusRejected, StatusPending, false},
		{StatusCanceled, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCanceled, StatusCompleted} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsActive(), s)
	}
	for _, s := range []Status{StatusPending, StatusAccepted, StatusOverdue} {
		assert.False(t, s.IsTerminal(), s)
		assert.True(t, s.IsActive(), s)
	}
	assert.False(t, Status("BOGUS").IsTerminal())
	assert.False(t, ValidStatus("BOGUS"))
}

func TestItemStatusMapping(t *testing.T) {
	assert.Equal(t, item.StatusPendingApproval, StatusPending.ItemStatus())
	assert.Equal(t, item.StatusOnLoan, StatusAccepted.ItemStatus())
	assert.Equal(t, item.StatusOnLoan, StatusOverdue.ItemStatus())
	assert.Equal(t, item.StatusAvailable, StatusCompleted.ItemStatus())
	assert.Equal(t, item.StatusAvailable, StatusRejected.ItemStatus())
	assert.Equal(t, item.StatusAvailable, StatusCanceled.ItemStatus())
	assert.Equal(t, item.StatusAvailable, Status("BOGUS").ItemStatus())
}

func TestFitsMoneyScale(t *testing.T) {
	for _, v := range []string{"1", "10000.00", "0.01", "12.500"} {
		assert.True(t, FitsMoneyScale(decimal.RequireFromString(v)), v)
	}
	for _, v := range []string{"0.001", "10000.005"} {
		assert.False(t, FitsMoneyScale(decimal.RequireFromString(v)), v)
	}
}

func TestNewAgreement(t *testing.T) {
	principal := decimal.RequireFromString("10000.00")
	due := time.Now().Add(48 * time.Hour)
	a := New(uuid.New(), &principal, due, "repay by end of month")

	assert.NotEqual(t, uuid.Nil, a.AgreementID)
	assert.Equal(t, StatusPending, a.Status)
	require.NotNil(t, a.Principal)
	assert.True(t, a.Principal.Equal(principal))
	assert.False(t, a.CreatedAt.IsZero())
	assert.False(t, a.IsPastDue(time.Now()))
	assert.True(t, a.IsPastDue(due.Add(time.Second)))
}

func TestTransitionTo(t *testing.T) {
	a := &Agreement{Status: StatusPending}

	from, err := a.TransitionTo(StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, from)
	assert.Equal(t, StatusAccepted, a.Status)

	_, err = a.TransitionTo(StatusCanceled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusAccepted, a.Status)
}
