package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	domainAgreement "github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/audit"
	"github.com/lendledger/lendledger/internal/domain/errs"
	"github.com/lendledger/lendledger/internal/domain/item"
	"github.com/lendledger/lendledger/internal/domain/notification"
	"github.com/lendledger/lendledger/internal/domain/repayment"
	"github.com/lendledger/lendledger/internal/domain/store"
	"github.com/lendledger/lendledger/internal/domain/user"
)

// Service drives the agreement state machine.
type Service struct {
	tx       store.TxRunner
	audit    audit.Sink
	notifier notification.Dispatcher
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates an agreement service. auditSink and notifier may be nil.
func NewService(tx store.TxRunner, auditSink audit.Sink, notifier notification.Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		tx:       tx,
		audit:    auditSink,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("service", "agreement").Logger(),
	}
}

// CreateInput describes a new lending request.
type CreateInput struct {
	CreditorID uuid.UUID
	ItemID     uuid.UUID
	DebtorID   uuid.UUID
	Principal  *decimal.Decimal
	DueAt      time.Time
	Terms      string
}

// Create opens a PENDING agreement and reserves the item.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domainAgreement.Details, error) {
	const op = "agreement.create"
	if in.CreditorID == in.DebtorID {
		return nil, errs.InvalidState(op, "creditor and debtor must be different users")
	}
	now := s.now()

	var details *domainAgreement.Details
	err := s.tx.InTx(ctx, func(st store.Store) error {
		it, err := st.Items().GetByIDForUpdate(ctx, in.ItemID)
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}
		if it == nil {
			return errs.NotFound(op, "item not found")
		}
		users, err := st.Users().GetByIDs(ctx, []uuid.UUID{in.CreditorID, in.DebtorID})
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		if users[in.CreditorID] == nil {
			return errs.NotFound(op, "creditor not found")
		}
		debtor := users[in.DebtorID]
		if debtor == nil {
			return errs.NotFound(op, "debtor not found")
		}
		if it.OwnerID != in.CreditorID {
			return errs.NotAuthorized(op, "only the item owner may lend it")
		}
		if !it.IsAvailable() {
			return errs.InvalidState(op, "item is not available")
		}
		if !debtor.IsActive() {
			return errs.InvalidState(op, "debtor account is not active")
		}
		if err := validateTerms(op, it, in.Principal, in.DueAt, now); err != nil {
			return err
		}

		a := domainAgreement.New(it.ItemID, in.Principal, in.DueAt, strings.TrimSpace(in.Terms))
		a.CreatedAt, a.UpdatedAt = now, now
		if err := expectOne(op, "insert agreement")(st.Agreements().Create(ctx, a)); err != nil {
			return err
		}
		creditorParty, debtorParty := domainAgreement.NewParties(a.AgreementID, in.CreditorID, in.DebtorID, now)
		for _, p := range []*domainAgreement.Party{creditorParty, debtorParty} {
			if err := expectOne(op, "insert agreement party")(st.Parties().Create(ctx, p)); err != nil {
				return err
			}
		}
		if err := expectOne(op, "reserve item")(st.Items().UpdateStatus(ctx, it.ItemID, item.StatusAvailable, domainAgreement.StatusPending.ItemStatus())); err != nil {
			return err
		}
		details, err = s.details(ctx, st, a, &domainAgreement.PartyPair{Creditor: creditorParty, Debtor: debtorParty})
		return err
	})
	if err != nil {
		return nil, err
	}

	a := details.Agreement
	s.logger.Info().
		Str("agreement_id", a.AgreementID.String()).
		Str("item_id", a.ItemID.String()).
		Str("user_id", in.CreditorID.String()).
		Msg("agreement created")
	s.emit(ctx, details, in.CreditorID, audit.ActionAgreementCreated, notification.KindAgreementRequested)
	return details, nil
}

func validateTerms(op string, it *item.Item, principal *decimal.Decimal, dueAt, now time.Time) error {
	if it.IsMoney() {
		if principal == nil || !principal.IsPositive() {
			return errs.InvalidState(op, "money loans require a positive principal")
		}
		if !domainAgreement.FitsMoneyScale(*principal) {
			return errs.InvalidState(op, "principal supports at most 2 decimal places")
		}
	} else if principal != nil {
		return errs.InvalidState(op, "object loans cannot carry a principal")
	}
	if !dueAt.After(now) {
		return errs.InvalidState(op, "due date must be in the future")
	}
	return nil
}

type move struct {
	op      string
	role    domainAgreement.Role
	allowed []domainAgreement.Status
	target  domainAgreement.Status
	action  audit.Action
	kind    notification.Kind
}

var (
	acceptMove = move{
		op: "agreement.accept", role: domainAgreement.RoleDebtor,
		allowed: []domainAgreement.Status{domainAgreement.StatusPending}, target: domainAgreement.StatusAccepted,
		action: audit.ActionAgreementAccepted, kind: notification.KindAgreementAccepted,
	}
	rejectMove = move{
		op: "agreement.reject", role: domainAgreement.RoleDebtor,
		allowed: []domainAgreement.Status{domainAgreement.StatusPending}, target: domainAgreement.StatusRejected,
		action: audit.ActionAgreementRejected, kind: notification.KindAgreementRejected,
	}
	cancelMove = move{
		op: "agreement.cancel", role: domainAgreement.RoleCreditor,
		allowed: []domainAgreement.Status{domainAgreement.StatusPending}, target: domainAgreement.StatusCanceled,
		action: audit.ActionAgreementCanceled, kind: notification.KindAgreementCanceled,
	}
	completeMove = move{
		op: "agreement.complete", role: domainAgreement.RoleCreditor,
		allowed: []domainAgreement.Status{domainAgreement.StatusAccepted, domainAgreement.StatusOverdue}, target: domainAgreement.StatusCompleted,
		action: audit.ActionAgreementCompleted, kind: notification.KindAgreementCompleted,
	}
)

// Accept is the debtor agreeing to a pending request.
func (s *Service) Accept(ctx context.Context, userID, agreementID uuid.UUID) (*domainAgreement.Details, error) {
	return s.transition(ctx, acceptMove, userID, agreementID)
}

// Reject is the debtor declining a pending request.
func (s *Service) Reject(ctx context.Context, userID, agreementID uuid.UUID) (*domainAgreement.Details, error) {
	return s.transition(ctx, rejectMove, userID, agreementID)
}

// Cancel is the creditor withdrawing a pending request.
func (s *Service) Cancel(ctx context.Context, userID, agreementID uuid.UUID) (*domainAgreement.Details, error) {
	return s.transition(ctx, cancelMove, userID, agreementID)
}

// Complete is the creditor closing an active loan.
func (s *Service) Complete(ctx context.Context, userID, agreementID uuid.UUID) (*domainAgreement.Details, error) {
	return s.transition(ctx, completeMove, userID, agreementID)
}

func (s *Service) transition(ctx context.Context, m move, userID, agreementID uuid.UUID) (*domainAgreement.Details, error) {
	now := s.now()
	var (
		details *domainAgreement.Details
		from    domainAgreement.Status
	)
	err := s.tx.InTx(ctx, func(st store.Store) error {
		a, pair, err := s.LockAndVerify(ctx, st, m.op, agreementID, domainAgreement.RolePtr(m.role), userID, m.allowed...)
		if err != nil {
			return err
		}
		from = a.Status
		if err := s.apply(ctx, st, m.op, a, m.target, now); err != nil {
			return err
		}
		if m.target == domainAgreement.StatusAccepted {
			if err := expectOne(m.op, "confirm debtor")(st.Parties().Confirm(ctx, a.AgreementID, domainAgreement.RoleDebtor, now)); err != nil {
				return err
			}
			pair.Debtor.Confirm(now)
		}
		details, err = s.details(ctx, st, a, pair)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("agreement_id", agreementID.String()).
		Str("user_id", userID.String()).
		Str("from", string(from)).
		Str("to", string(m.target)).
		Msg("agreement transitioned")
	s.emit(ctx, details, userID, m.action, m.kind)
	return details, nil
}

// LockAndVerify loads the agreement under a row lock and checks the caller
// against it. It must run inside InTx.
func (s *Service) LockAndVerify(ctx context.Context, st store.Store, op string, agreementID uuid.UUID, role *domainAgreement.Role, userID uuid.UUID, allowed ...domainAgreement.Status) (*domainAgreement.Agreement, *domainAgreement.PartyPair, error) {
	a, err := st.Agreements().GetByIDForUpdate(ctx, agreementID)
	if err != nil {
		return nil, nil, fmt.Errorf("load agreement: %w", err)
	}
	if a == nil {
		return nil, nil, errs.NotFound(op, "agreement not found")
	}
	pair, err := s.verify(ctx, st, a, role, userID, allowed...)
	if err != nil {
		return nil, nil, err
	}
	return a, pair, nil
}

func (s *Service) verify(ctx context.Context, st store.Store, a *domainAgreement.Agreement, role *domainAgreement.Role, userID uuid.UUID, allowed ...domainAgreement.Status) (*domainAgreement.PartyPair, error) {
	parties, err := st.Parties().ListByAgreement(ctx, a.AgreementID)
	if err != nil {
		return nil, fmt.Errorf("load agreement parties: %w", err)
	}
	pair, err := domainAgreement.VerifyParties(a, parties, role, userID, allowed...)
	if err != nil {
		if errors.Is(err, domainAgreement.ErrPartyIntegrity) {
			s.logger.Error().
				Str("agreement_id", a.AgreementID.String()).
				Int("party_rows", len(parties)).
				Msg(domainAgreement.ErrPartyIntegrity.Error())
		}
		return nil, err
	}
	return pair, nil
}

// apply moves a to target and keeps the item in step with it.
func (s *Service) apply(ctx context.Context, st store.Store, op string, a *domainAgreement.Agreement, target domainAgreement.Status, now time.Time) error {
	itemFrom := a.Status.ItemStatus()
	from, err := a.TransitionTo(target)
	if err != nil {
		return errs.New(errs.CodeInvalidState, op, fmt.Sprintf("cannot move agreement from %s to %s", from, target), err)
	}
	a.UpdatedAt = now
	if err := expectOne(op, "update agreement status")(st.Agreements().UpdateStatus(ctx, a.AgreementID, from, target, now)); err != nil {
		return err
	}
	if itemTo := target.ItemStatus(); itemTo != itemFrom {
		if err := expectOne(op, "update item status")(st.Items().UpdateStatus(ctx, a.ItemID, itemFrom, itemTo)); err != nil {
			return err
		}
	}
	return nil
}

// CompleteWithin completes a inside an open unit of work. The caller must
// hold the agreement row lock and have authorized the move.
func (s *Service) CompleteWithin(ctx context.Context, st store.Store, a *domainAgreement.Agreement) error {
	const op = "agreement.complete"
	if a.Status != domainAgreement.StatusAccepted && a.Status != domainAgreement.StatusOverdue {
		return errs.InvalidState(op, "operation not allowed while agreement is "+string(a.Status))
	}
	return s.apply(ctx, st, op, a, domainAgreement.StatusCompleted, s.now())
}

// MarkOverdue flags an accepted agreement whose due date has passed. It
// reports false when the agreement did not qualify, including when it is
// already OVERDUE.
func (s *Service) MarkOverdue(ctx context.Context, agreementID uuid.UUID) (bool, error) {
	const op = "agreement.mark_overdue"
	now := s.now()
	var (
		marked  bool
		details *domainAgreement.Details
	)
	err := s.tx.InTx(ctx, func(st store.Store) error {
		a, err := st.Agreements().GetByIDForUpdate(ctx, agreementID)
		if err != nil {
			return fmt.Errorf("load agreement: %w", err)
		}
		if a == nil {
			return errs.NotFound(op, "agreement not found")
		}
		if a.Status != domainAgreement.StatusAccepted || !a.IsPastDue(now) {
			return nil
		}
		if err := s.apply(ctx, st, op, a, domainAgreement.StatusOverdue, now); err != nil {
			return err
		}
		marked = true

		parties, err := st.Parties().ListByAgreement(ctx, a.AgreementID)
		if err != nil {
			return fmt.Errorf("load agreement parties: %w", err)
		}
		pair, err := domainAgreement.ResolveParties(parties)
		if err != nil {
			s.logger.Error().
				Str("agreement_id", a.AgreementID.String()).
				Int("party_rows", len(parties)).
				Msg(domainAgreement.ErrPartyIntegrity.Error())
			details = &domainAgreement.Details{Agreement: a}
			return nil
		}
		details, err = s.details(ctx, st, a, pair)
		return err
	})
	if err != nil || !marked {
		return false, err
	}

	s.logger.Info().
		Str("agreement_id", agreementID.String()).
		Str("from", string(domainAgreement.StatusAccepted)).
		Str("to", string(domainAgreement.StatusOverdue)).
		Msg("agreement marked overdue")
	s.emit(ctx, details, uuid.Nil, audit.ActionAgreementOverdue, notification.KindAgreementOverdue)
	return true, nil
}

// Get returns the agreement to either of its parties.
func (s *Service) Get(ctx context.Context, userID, agreementID uuid.UUID) (*domainAgreement.Details, error) {
	const op = "agreement.get"
	var details *domainAgreement.Details
	err := s.tx.InTx(ctx, func(st store.Store) error {
		a, err := st.Agreements().GetByID(ctx, agreementID)
		if err != nil {
			return fmt.Errorf("load agreement: %w", err)
		}
		if a == nil {
			return errs.NotFound(op, "agreement not found")
		}
		pair, err := s.verify(ctx, st, a, nil, userID, domainAgreement.Statuses...)
		if err != nil {
			return err
		}
		details, err = s.details(ctx, st, a, pair)
		return err
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Service) details(ctx context.Context, st store.Store, a *domainAgreement.Agreement, pair *domainAgreement.PartyPair) (*domainAgreement.Details, error) {
	it, err := st.Items().GetByID(ctx, a.ItemID)
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if it == nil {
		return nil, errs.NotFound("agreement.details", "item not found")
	}
	users, err := st.Users().GetByIDs(ctx, []uuid.UUID{pair.Creditor.UserID, pair.Debtor.UserID})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	d := &domainAgreement.Details{
		Agreement: a,
		ItemType:  it.Type,
		ItemName:  it.Name,
		Creditor:  partyView(pair.Creditor, users[pair.Creditor.UserID]),
		Debtor:    partyView(pair.Debtor, users[pair.Debtor.UserID]),
	}
	if it.IsMoney() && a.Principal != nil {
		total, err := repayment.ConfirmedTotal(ctx, st.Transactions(), a.AgreementID)
		if err != nil {
			return nil, fmt.Errorf("sum confirmed repayments: %w", err)
		}
		d.Ledger = &domainAgreement.LedgerSummary{
			Principal:      *a.Principal,
			ConfirmedTotal: total,
			Remaining:      repayment.Remaining(total, *a.Principal),
		}
	}
	return d, nil
}

func partyView(p *domainAgreement.Party, u *user.User) domainAgreement.PartyView {
	v := domainAgreement.PartyView{UserID: p.UserID, Role: p.Role, ConfirmedAt: p.ConfirmedAt}
	if u != nil {
		v.Username = u.Username
		v.DisplayName = u.Label()
	}
	return v
}

// emit records the fact and notifies the other party, or both parties for
// system actions. It runs after commit and never fails the caller.
func (s *Service) emit(ctx context.Context, d *domainAgreement.Details, actor uuid.UUID, action audit.Action, kind notification.Kind) {
	a := d.Agreement
	if s.audit != nil {
		s.audit.Record(ctx, a.AgreementID, actor, action)
	}
	payload, err := json.Marshal(map[string]any{
		"agreementId": a.AgreementID,
		"status":      a.Status,
		"itemName":    d.ItemName,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode notification payload")
		return
	}
	notification.Fanout(ctx, s.notifier, a.AgreementID, kind, payload, Recipients(d, actor)...)
}

// Recipients returns the parties other than actor. A system actor (uuid.Nil)
// addresses both parties.
func Recipients(d *domainAgreement.Details, actor uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range []uuid.UUID{d.Creditor.UserID, d.Debtor.UserID} {
		if id != uuid.Nil && id != actor {
			out = append(out, id)
		}
	}
	return out
}

// expectOne turns a write result into an error unless exactly one row changed.
func expectOne(op, what string) func(int64, error) error {
	return func(n int64, err error) error {
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if n != 1 {
			return errs.UpdateFailed(op, what+" affected no rows")
		}
		return nil
	}
}
