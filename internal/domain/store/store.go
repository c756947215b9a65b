package store

import (
	"context"

	"github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/item"
	"github.com/lendledger/lendledger/internal/domain/repayment"
	"github.com/lendledger/lendledger/internal/domain/user"
)

// Store exposes repositories bound to one unit of work.
type Store interface {
	Agreements() agreement.Repository
	Parties() agreement.PartyRepository
	Items() item.Repository
	Transactions() repayment.Repository
	Users() user.Repository
}

// TxRunner provides the transaction boundary for lending writes. fn's
// writes commit together when it returns nil and roll back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(st Store) error) error
}
