package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lendledger/lendledger/internal/domain/repayment"
)

const transactionColumns = `id, transaction_id, agreement_id, amount, status, created_at, decided_at`

// RepaymentRepository implements repayment.Repository.
type RepaymentRepository struct {
	db DBTX
}

func NewRepaymentRepository(db DBTX) *RepaymentRepository {
	return &RepaymentRepository{db: db}
}

func (r *RepaymentRepository) Create(ctx context.Context, t *repayment.Transaction) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO transactions (transaction_id, agreement_id, amount, status, created_at, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, t.TransactionID, t.AgreementID, t.Amount, t.Status, t.CreatedAt, t.DecidedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *RepaymentRepository) GetByID(ctx context.Context, transactionID uuid.UUID) (*repayment.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id=$1`, transactionID)
	return scanTransaction(row)
}

func (r *RepaymentRepository) GetByIDForUpdate(ctx context.Context, transactionID uuid.UUID) (*repayment.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id=$1 FOR UPDATE`, transactionID)
	return scanTransaction(row)
}

func (r *RepaymentRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]*repayment.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE agreement_id=$1 ORDER BY created_at ASC, id ASC
	`, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*repayment.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *RepaymentRepository) UpdateStatus(ctx context.Context, transactionID uuid.UUID, from, to repayment.Status, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET status=$1, decided_at=$2
		WHERE transaction_id=$3 AND status=$4
	`, to, at, transactionID, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *RepaymentRepository) SumConfirmed(ctx context.Context, agreementID uuid.UUID) (decimal.Decimal, error) {
	row := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE status='CONFIRMED'), 0)
		FROM transactions WHERE agreement_id=$1
	`, agreementID)
	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func scanTransaction(row pgx.Row) (*repayment.Transaction, error) {
	var t repayment.Transaction
	if err := row.Scan(&t.ID, &t.TransactionID, &t.AgreementID, &t.Amount, &t.Status, &t.CreatedAt, &t.DecidedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
