// Package memstore is an in-memory store.TxRunner for tests and local runs.
// Transactions are serialized and work on a copy of the data that replaces
// the committed state only when fn succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/item"
	"github.com/lendledger/lendledger/internal/domain/repayment"
	"github.com/lendledger/lendledger/internal/domain/store"
	"github.com/lendledger/lendledger/internal/domain/user"
)

type state struct {
	seq          int64
	users        map[uuid.UUID]user.User
	items        map[uuid.UUID]item.Item
	agreements   map[uuid.UUID]agreement.Agreement
	parties      map[uuid.UUID][]agreement.Party
	transactions map[uuid.UUID]repayment.Transaction
}

func newState() *state {
	return &state{
		users:        make(map[uuid.UUID]user.User),
		items:        make(map[uuid.UUID]item.Item),
		agreements:   make(map[uuid.UUID]agreement.Agreement),
		parties:      make(map[uuid.UUID][]agreement.Party),
		transactions: make(map[uuid.UUID]repayment.Transaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.agreements {
		c.agreements[k] = v
	}
	for k, v := range s.parties {
		c.parties[k] = append([]agreement.Party(nil), v...)
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// DB holds committed state.
type DB struct {
	mu    sync.Mutex
	state *state

	// FailCommit, when set, is returned instead of committing.
	FailCommit error

	Commits   int
	Rollbacks int
}

var _ store.TxRunner = (*DB)(nil)

func New() *DB {
	return &DB{state: newState()}
}

func (db *DB) InTx(ctx context.Context, fn func(st store.Store) error) error {
	if fn == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := db.state.clone()
	if err := fn(&txStore{s: work}); err != nil {
		db.Rollbacks++
		return err
	}
	if db.FailCommit != nil {
		db.Rollbacks++
		return db.FailCommit
	}
	db.state = work
	db.Commits++
	return nil
}

// AddUser seeds an active user.
func (db *DB) AddUser(username, displayName string) *user.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := user.User{
		ID:          db.state.nextID(),
		UserID:      uuid.New(),
		Username:    username,
		DisplayName: displayName,
		Email:       username + "@example.com",
		Status:      user.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	db.state.users[u.UserID] = u
	return &u
}

// AddItem seeds an available item owned by ownerID.
func (db *DB) AddItem(ownerID uuid.UUID, typ item.Type, name string) *item.Item {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := time.Now().UTC()
	i := item.Item{
		ID:        db.state.nextID(),
		ItemID:    uuid.New(),
		OwnerID:   ownerID,
		Type:      typ,
		Name:      name,
		Status:    item.StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.state.items[i.ItemID] = i
	return &i
}

// Item returns the committed item.
func (db *DB) Item(itemID uuid.UUID) *item.Item {
	db.mu.Lock()
	defer db.mu.Unlock()
	i, ok := db.state.items[itemID]
	if !ok {
		return nil
	}
	return &i
}

// SetItemStatus overwrites a committed item status.
func (db *DB) SetItemStatus(itemID uuid.UUID, status item.Status) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if i, ok := db.state.items[itemID]; ok {
		i.Status = status
		db.state.items[itemID] = i
	}
}

// Agreement returns the committed agreement.
func (db *DB) Agreement(agreementID uuid.UUID) *agreement.Agreement {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.state.agreements[agreementID]
	if !ok {
		return nil
	}
	return &a
}

// SetAgreement overwrites a committed agreement, e.g. to move its due date.
func (db *DB) SetAgreement(a *agreement.Agreement) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.agreements[a.AgreementID] = *a
}

// SetParties overwrites the committed party rows of an agreement.
func (db *DB) SetParties(agreementID uuid.UUID, parties []agreement.Party) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.parties[agreementID] = append([]agreement.Party(nil), parties...)
}

// Parties returns the committed party rows.
func (db *DB) Parties(agreementID uuid.UUID) []agreement.Party {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]agreement.Party(nil), db.state.parties[agreementID]...)
}

// Transactions returns the committed repayments of an agreement.
func (db *DB) Transactions(agreementID uuid.UUID) []repayment.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []repayment.Transaction
	for _, t := range db.state.transactions {
		if t.AgreementID == agreementID {
			out = append(out, t)
		}
	}
	sortTransactions(out)
	return out
}

func sortTransactions(ts []repayment.Transaction) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

type txStore struct {
	s *state
}

func (t *txStore) Agreements() agreement.Repository   { return agreementRepo{t.s} }
func (t *txStore) Parties() agreement.PartyRepository { return partyRepo{t.s} }
func (t *txStore) Items() item.Repository             { return itemRepo{t.s} }
func (t *txStore) Transactions() repayment.Repository { return repaymentRepo{t.s} }
func (t *txStore) Users() user.Repository             { return userRepo{t.s} }

type agreementRepo struct{ s *state }

func (r agreementRepo) Create(_ context.Context, a *agreement.Agreement) (int64, error) {
	if _, ok := r.s.agreements[a.AgreementID]; ok {
		return 0, nil
	}
	if a.Status.IsActive() {
		for _, other := range r.s.agreements {
			if other.ItemID == a.ItemID && other.Status.IsActive() {
				return 0, errActiveAgreement
			}
		}
	}
	a.ID = r.s.nextID()
	r.s.agreements[a.AgreementID] = *a
	return 1, nil
}

func (r agreementRepo) GetByID(_ context.Context, id uuid.UUID) (*agreement.Agreement, error) {
	a, ok := r.s.agreements[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r agreementRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*agreement.Agreement, error) {
	return r.GetByID(ctx, id)
}

func (r agreementRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to agreement.Status, at time.Time) (int64, error) {
	a, ok := r.s.agreements[id]
	if !ok || a.Status != from {
		return 0, nil
	}
	a.Status = to
	a.UpdatedAt = at.UTC()
	r.s.agreements[id] = a
	return 1, nil
}

func (r agreementRepo) ListOverdueCandidates(_ context.Context, now time.Time, after agreement.OverdueCursor, limit int) ([]*agreement.Agreement, error) {
	var out []*agreement.Agreement
	for _, a := range r.s.agreements {
		if a.Status == agreement.StatusAccepted && a.DueAt.Before(now) && after.After(&a) {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type partyRepo struct{ s *state }

func (r partyRepo) Create(_ context.Context, p *agreement.Party) (int64, error) {
	for _, existing := range r.s.parties[p.AgreementID] {
		if existing.Role == p.Role || existing.UserID == p.UserID {
			return 0, nil
		}
	}
	p.ID = r.s.nextID()
	r.s.parties[p.AgreementID] = append(r.s.parties[p.AgreementID], *p)
	return 1, nil
}

func (r partyRepo) ListByAgreement(_ context.Context, agreementID uuid.UUID) ([]*agreement.Party, error) {
	rows := r.s.parties[agreementID]
	out := make([]*agreement.Party, 0, len(rows))
	for _, p := range rows {
		p := p
		out = append(out, &p)
	}
	return out, nil
}

func (r partyRepo) Confirm(_ context.Context, agreementID uuid.UUID, role agreement.Role, at time.Time) (int64, error) {
	rows := r.s.parties[agreementID]
	for i := range rows {
		if rows[i].Role == role && rows[i].Confirm(at) {
			return 1, nil
		}
	}
	return 0, nil
}

type itemRepo struct{ s *state }

func (r itemRepo) GetByID(_ context.Context, id uuid.UUID) (*item.Item, error) {
	i, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r itemRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*item.Item, error) {
	return r.GetByID(ctx, id)
}

func (r itemRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to item.Status) (int64, error) {
	i, ok := r.s.items[id]
	if !ok || i.Status != from {
		return 0, nil
	}
	i.Status = to
	i.UpdatedAt = time.Now().UTC()
	r.s.items[id] = i
	return 1, nil
}

type repaymentRepo struct{ s *state }

func (r repaymentRepo) Create(_ context.Context, t *repayment.Transaction) (int64, error) {
	if _, ok := r.s.transactions[t.TransactionID]; ok {
		return 0, nil
	}
	t.ID = r.s.nextID()
	r.s.transactions[t.TransactionID] = *t
	return 1, nil
}

func (r repaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*repayment.Transaction, error) {
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r repaymentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*repayment.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r repaymentRepo) ListByAgreement(_ context.Context, agreementID uuid.UUID) ([]*repayment.Transaction, error) {
	var rows []repayment.Transaction
	for _, t := range r.s.transactions {
		if t.AgreementID == agreementID {
			rows = append(rows, t)
		}
	}
	sortTransactions(rows)
	out := make([]*repayment.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (r repaymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to repayment.Status, at time.Time) (int64, error) {
	t, ok := r.s.transactions[id]
	if !ok || t.Status != from {
		return 0, nil
	}
	decided := at.UTC()
	t.Status = to
	t.DecidedAt = &decided
	r.s.transactions[id] = t
	return 1, nil
}

func (r repaymentRepo) SumConfirmed(_ context.Context, agreementID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range r.s.transactions {
		if t.AgreementID == agreementID && t.Status == repayment.StatusConfirmed {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

type userRepo struct{ s *state }

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*user.User, error) {
	out := make(map[uuid.UUID]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			u := u
			out[id] = &u
		}
	}
	return out, nil
}

// Users reads committed users outside a unit of work.
func (db *DB) Users() user.Repository {
	return committedUsers{db}
}

type committedUsers struct{ db *DB }

func (c committedUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return userRepo{c.db.state}.GetByID(ctx, id)
}

func (c committedUsers) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*user.User, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return userRepo{c.db.state}.GetByIDs(ctx, ids)
}
