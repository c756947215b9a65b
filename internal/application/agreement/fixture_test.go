package agreement

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domainAgreement "github.com/lendledger/lendledger/internal/domain/agreement"
	agreementMocks "github.com/lendledger/lendledger/internal/domain/agreement/mocks"
	"github.com/lendledger/lendledger/internal/domain/item"
	itemMocks "github.com/lendledger/lendledger/internal/domain/item/mocks"
	"github.com/lendledger/lendledger/internal/domain/repayment"
	repaymentMocks "github.com/lendledger/lendledger/internal/domain/repayment/mocks"
	"github.com/lendledger/lendledger/internal/domain/store"
	"github.com/lendledger/lendledger/internal/domain/user"
	userMocks "github.com/lendledger/lendledger/internal/domain/user/mocks"
	"github.com/lendledger/lendledger/internal/infrastructure/memstore"
)

type fixture struct {
	db       *memstore.DB
	svc      *Service
	creditor *user.User
	debtor   *user.User
	stranger *user.User
	money    *item.Item
	object   *item.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	f := &fixture{
		db:       db,
		svc:      NewService(db, nil, nil, zerolog.Nop()),
		creditor: db.AddUser("carol", "Carol"),
		debtor:   db.AddUser("dave", ""),
		stranger: db.AddUser("sam", "Sam"),
	}
	f.money = db.AddItem(f.creditor.UserID, item.TypeMoney, "cash")
	f.object = db.AddItem(f.creditor.UserID, item.TypeObject, "ladder")
	return f
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (f *fixture) create(t *testing.T, it *item.Item, principal *decimal.Decimal) *domainAgreement.Agreement {
	t.Helper()
	d, err := f.svc.Create(context.Background(), CreateInput{
		CreditorID: f.creditor.UserID,
		ItemID:     it.ItemID,
		DebtorID:   f.debtor.UserID,
		Principal:  principal,
		DueAt:      time.Now().Add(72 * time.Hour),
		Terms:      "back by friday",
	})
	require.NoError(t, err)
	return d.Agreement
}

func (f *fixture) accepted(t *testing.T, it *item.Item, principal *decimal.Decimal) *domainAgreement.Agreement {
	t.Helper()
	a := f.create(t, it, principal)
	_, err := f.svc.Accept(context.Background(), f.debtor.UserID, a.AgreementID)
	require.NoError(t, err)
	return f.db.Agreement(a.AgreementID)
}

// after shifts the service clock past d from now.
func (f *fixture) after(d time.Duration) {
	at := time.Now().UTC().Add(d)
	f.svc.now = func() time.Time { return at }
}

// mockStore binds generated repository mocks into a store.Store.
type mockStore struct {
	agreements   *agreementMocks.MockRepository
	parties      *agreementMocks.MockPartyRepository
	items        *itemMocks.MockRepository
	transactions *repaymentMocks.MockRepository
	users        *userMocks.MockRepository
}

func (m *mockStore) Agreements() domainAgreement.Repository   { return m.agreements }
func (m *mockStore) Parties() domainAgreement.PartyRepository { return m.parties }
func (m *mockStore) Items() item.Repository                   { return m.items }
func (m *mockStore) Transactions() repayment.Repository       { return m.transactions }
func (m *mockStore) Users() user.Repository                   { return m.users }

// directRunner runs fn without a transaction.
type directRunner struct {
	st store.Store
}

func (r directRunner) InTx(_ context.Context, fn func(st store.Store) error) error {
	return fn(r.st)
}
