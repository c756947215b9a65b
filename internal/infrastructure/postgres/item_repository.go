package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lendledger/lendledger/internal/domain/item"
)

// ItemRepository implements item.Repository.
type ItemRepository struct {
	db DBTX
}

func NewItemRepository(db DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) GetByID(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, item_id, owner_id, item_type, name, status, created_at, updated_at
		FROM items WHERE item_id=$1
	`, itemID)
	return scanItem(row)
}

func (r *ItemRepository) GetByIDForUpdate(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, item_id, owner_id, item_type, name, status, created_at, updated_at
		FROM items WHERE item_id=$1 FOR UPDATE
	`, itemID)
	return scanItem(row)
}

func (r *ItemRepository) UpdateStatus(ctx context.Context, itemID uuid.UUID, from, to item.Status) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE items SET status=$1, updated_at=NOW()
		WHERE item_id=$2 AND status=$3
	`, to, itemID, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanItem(row pgx.Row) (*item.Item, error) {
	var i item.Item
	if err := row.Scan(&i.ID, &i.ItemID, &i.OwnerID, &i.Type, &i.Name, &i.Status, &i.CreatedAt, &i.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}
