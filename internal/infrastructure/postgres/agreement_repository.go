package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lendledger/lendledger/internal/domain/agreement"
)

const agreementColumns = `id, agreement_id, item_id, status, principal, due_at, terms, created_at, updated_at`

// AgreementRepository implements agreement.Repository.
type AgreementRepository struct {
	db DBTX
}

func NewAgreementRepository(db DBTX) *AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) Create(ctx context.Context, a *agreement.Agreement) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO agreements
		(agreement_id, item_id, status, principal, due_at, terms, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.AgreementID, a.ItemID, a.Status, a.Principal, a.DueAt, a.Terms, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, agreementID uuid.UUID) (*agreement.Agreement, error) {
	row := r.db.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE agreement_id=$1`, agreementID)
	return scanAgreement(row)
}

func (r *AgreementRepository) GetByIDForUpdate(ctx context.Context, agreementID uuid.UUID) (*agreement.Agreement, error) {
	row := r.db.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE agreement_id=$1 FOR UPDATE`, agreementID)
	return scanAgreement(row)
}

func (r *AgreementRepository) UpdateStatus(ctx context.Context, agreementID uuid.UUID, from, to agreement.Status, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE agreements SET status=$1, updated_at=$2
		WHERE agreement_id=$3 AND status=$4
	`, to, at, agreementID, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AgreementRepository) ListOverdueCandidates(ctx context.Context, now time.Time, after agreement.OverdueCursor, limit int) ([]*agreement.Agreement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+agreementColumns+`
		FROM agreements
		WHERE status=$1 AND due_at < $2 AND (due_at, id) > ($3, $4)
		ORDER BY due_at ASC, id ASC
		LIMIT $5
	`, agreement.StatusAccepted, now, after.DueAt, after.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*agreement.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAgreement(row pgx.Row) (*agreement.Agreement, error) {
	var a agreement.Agreement
	if err := row.Scan(&a.ID, &a.AgreementID, &a.ItemID, &a.Status, &a.Principal, &a.DueAt, &a.Terms, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if !agreement.ValidStatus(a.Status) {
		return nil, fmt.Errorf("agreement %s: unknown status %q", a.AgreementID, a.Status)
	}
	return &a, nil
}

// PartyRepository implements agreement.PartyRepository.
type PartyRepository struct {
	db DBTX
}

func NewPartyRepository(db DBTX) *PartyRepository {
	return &PartyRepository{db: db}
}

func (r *PartyRepository) Create(ctx context.Context, p *agreement.Party) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO agreement_parties (agreement_id, role, user_id, confirmed_at)
		VALUES ($1,$2,$3,$4)
	`, p.AgreementID, p.Role, p.UserID, p.ConfirmedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PartyRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]*agreement.Party, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, agreement_id, role, user_id, confirmed_at
		FROM agreement_parties WHERE agreement_id=$1 ORDER BY id ASC
	`, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parties []*agreement.Party
	for rows.Next() {
		var p agreement.Party
		if err := rows.Scan(&p.ID, &p.AgreementID, &p.Role, &p.UserID, &p.ConfirmedAt); err != nil {
			return nil, err
		}
		parties = append(parties, &p)
	}
	return parties, rows.Err()
}

func (r *PartyRepository) Confirm(ctx context.Context, agreementID uuid.UUID, role agreement.Role, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE agreement_parties SET confirmed_at=$1
		WHERE agreement_id=$2 AND role=$3 AND confirmed_at IS NULL
	`, at, agreementID, role)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
