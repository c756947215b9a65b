package repayment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfirmedTotal sums confirmed repayments for an agreement. Call it with a
// repository bound to the same database transaction as the write that
// depends on the result.
func ConfirmedTotal(ctx context.Context, repo Repository, agreementID uuid.UUID) (decimal.Decimal, error) {
	total, err := repo.SumConfirmed(ctx, agreementID)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// IsSettled reports whether the confirmed total covers the principal.
func IsSettled(total, principal decimal.Decimal) bool {
	return total.GreaterThanOrEqual(principal)
}

// Remaining is the outstanding balance, never negative.
func Remaining(total, principal decimal.Decimal) decimal.Decimal {
	rest := principal.Sub(total)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Fits reports whether amount can be added to total without exceeding principal.
func Fits(total, amount, principal decimal.Decimal) bool {
	return total.Add(amount).LessThanOrEqual(principal)
}
