package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/errs"
	"github.com/lendledger/lendledger/internal/domain/item"
	"github.com/lendledger/lendledger/internal/domain/repayment"
	"github.com/lendledger/lendledger/internal/domain/store"
	"github.com/lendledger/lendledger/internal/domain/user"
)

// TxRunner implements store.TxRunner on pgx transactions.
type TxRunner struct {
	pool *pgxpool.Pool
}

var _ store.TxRunner = (*TxRunner)(nil)

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(st store.Store) error) error {
	const op = "postgres.tx"
	if fn == nil {
		return nil
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(op, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(newStore(tx)); err != nil {
		return mapError(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxCommitRollback) {
			return errs.New(errs.CodeUpdateFailed, op, "transaction rolled back at commit", err)
		}
		return mapError(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// pgStore binds every repository to one DBTX.
type pgStore struct {
	agreements   *AgreementRepository
	parties      *PartyRepository
	items        *ItemRepository
	transactions *RepaymentRepository
	users        *UserRepository
}

func newStore(db DBTX) *pgStore {
	return &pgStore{
		agreements:   NewAgreementRepository(db),
		parties:      NewPartyRepository(db),
		items:        NewItemRepository(db),
		transactions: NewRepaymentRepository(db),
		users:        NewUserRepository(db),
	}
}

func (s *pgStore) Agreements() agreement.Repository   { return s.agreements }
func (s *pgStore) Parties() agreement.PartyRepository { return s.parties }
func (s *pgStore) Items() item.Repository             { return s.items }
func (s *pgStore) Transactions() repayment.Repository { return s.transactions }
func (s *pgStore) Users() user.Repository             { return s.users }
