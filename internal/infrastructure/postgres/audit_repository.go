package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/lendledger/lendledger/internal/domain/audit"
)

// AuditRepository implements audit.Repository.
type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, e *audit.Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events (event_id, agreement_id, user_id, action, signature, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.EventID, e.AgreementID, e.UserID, e.Action, e.Signature, e.CreatedAt)
	return err
}

func (r *AuditRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]*audit.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_id, agreement_id, user_id, action, signature, created_at
		FROM audit_events WHERE agreement_id=$1 ORDER BY created_at ASC, id ASC
	`, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []*audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.EventID, &e.AgreementID, &e.UserID, &e.Action, &e.Signature, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
