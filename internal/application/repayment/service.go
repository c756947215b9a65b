package repayment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/audit"
	"github.com/lendledger/lendledger/internal/domain/errs"
	"github.com/lendledger/lendledger/internal/domain/notification"
	domainRepayment "github.com/lendledger/lendledger/internal/domain/repayment"
	"github.com/lendledger/lendledger/internal/domain/store"
)

// Agreements is the part of the agreement state machine repayments drive.
type Agreements interface {
	LockAndVerify(ctx context.Context, st store.Store, op string, agreementID uuid.UUID, role *agreement.Role, userID uuid.UUID, allowed ...agreement.Status) (*agreement.Agreement, *agreement.PartyPair, error)
	CompleteWithin(ctx context.Context, st store.Store, a *agreement.Agreement) error
}

// Service drives the repayment state machine.
type Service struct {
	tx         store.TxRunner
	agreements Agreements
	audit      audit.Sink
	notifier   notification.Dispatcher
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a repayment service. auditSink and notifier may be nil.
func NewService(tx store.TxRunner, agreements Agreements, auditSink audit.Sink, notifier notification.Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		tx:         tx,
		agreements: agreements,
		audit:      auditSink,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "repayment").Logger(),
	}
}

var activeStatuses = []agreement.Status{agreement.StatusAccepted, agreement.StatusOverdue}

// Create records a pending repayment requested by the debtor.
func (s *Service) Create(ctx context.Context, debtorID, agreementID uuid.UUID, amount decimal.Decimal) (*domainRepayment.Details, error) {
	const op = "repayment.create"
	var details *domainRepayment.Details
	err := s.tx.InTx(ctx, func(st store.Store) error {
		a, pair, err := s.agreements.LockAndVerify(ctx, st, op, agreementID, agreement.RolePtr(agreement.RoleDebtor), debtorID, activeStatuses...)
		if err != nil {
			return err
		}
		it, err := st.Items().GetByID(ctx, a.ItemID)
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}
		if it == nil {
			return errs.NotFound(op, "item not found")
		}
		if !it.IsMoney() || a.Principal == nil {
			return errs.InvalidState(op, "repayments apply to money loans only")
		}
		if !amount.IsPositive() {
			return errs.InvalidState(op, "amount must be positive")
		}
		if !agreement.FitsMoneyScale(amount) {
			return errs.InvalidState(op, "amount supports at most 2 decimal places")
		}
		total, err := domainRepayment.ConfirmedTotal(ctx, st.Transactions(), a.AgreementID)
		if err != nil {
			return fmt.Errorf("sum confirmed repayments: %w", err)
		}
		if !domainRepayment.Fits(total, amount, *a.Principal) {
			return errs.InvalidState(op, "exceeds remaining balance")
		}

		t := domainRepayment.New(a.AgreementID, amount)
		t.CreatedAt = s.now()
		n, err := st.Transactions().Create(ctx, t)
		if err != nil {
			return fmt.Errorf("insert repayment: %w", err)
		}
		if n != 1 {
			return errs.UpdateFailed(op, "insert repayment affected no rows")
		}
		details, err = s.details(ctx, st, t, a, pair, total)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", details.Transaction.TransactionID.String()).
		Str("agreement_id", agreementID.String()).
		Str("user_id", debtorID.String()).
		Str("amount", amount.String()).
		Msg("repayment requested")
	s.emit(ctx, details, debtorID, audit.ActionRepaymentRequested, notification.KindRepaymentRequested)
	return details, nil
}

// Confirm accepts a pending domainRepayment. When the confirmed total reaches the
// principal the agreement is completed in the same transaction.
func (s *Service) Confirm(ctx context.Context, creditorID, transactionID uuid.UUID) (*domainRepayment.Details, error) {
	return s.decide(ctx, "repayment.confirm", creditorID, transactionID, domainRepayment.StatusConfirmed)
}

// Reject declines a pending domainRepayment. The agreement and item are untouched.
func (s *Service) Reject(ctx context.Context, creditorID, transactionID uuid.UUID) (*domainRepayment.Details, error) {
	return s.decide(ctx, "repayment.reject", creditorID, transactionID, domainRepayment.StatusRejected)
}

func (s *Service) decide(ctx context.Context, op string, creditorID, transactionID uuid.UUID, target domainRepayment.Status) (*domainRepayment.Details, error) {
	now := s.now()
	var (
		details   *domainRepayment.Details
		completed bool
	)
	err := s.tx.InTx(ctx, func(st store.Store) error {
		// The agreement lock comes first so decisions on one agreement serialize.
		peek, err := st.Transactions().GetByID(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("load repayment: %w", err)
		}
		if peek == nil {
			return errs.NotFound(op, "transaction not found")
		}
		a, pair, err := s.agreements.LockAndVerify(ctx, st, op, peek.AgreementID, agreement.RolePtr(agreement.RoleCreditor), creditorID, activeStatuses...)
		if err != nil {
			return err
		}
		t, err := st.Transactions().GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("lock repayment: %w", err)
		}
		if t == nil {
			return errs.NotFound(op, "transaction not found")
		}
		if t.Status != domainRepayment.StatusPending {
			return errs.InvalidState(op, "transaction already processed")
		}
		if a.Principal == nil {
			return errs.InvalidState(op, "repayments apply to money loans only")
		}

		total, err := domainRepayment.ConfirmedTotal(ctx, st.Transactions(), a.AgreementID)
		if err != nil {
			return fmt.Errorf("sum confirmed repayments: %w", err)
		}
		if target == domainRepayment.StatusConfirmed && !domainRepayment.Fits(total, t.Amount, *a.Principal) {
			return errs.InvalidState(op, "exceeds remaining balance")
		}
		if err := t.Decide(target, now); err != nil {
			return errs.New(errs.CodeInvalidState, op, "transaction already processed", err)
		}
		n, err := st.Transactions().UpdateStatus(ctx, t.TransactionID, domainRepayment.StatusPending, target, now)
		if err != nil {
			return fmt.Errorf("update repayment status: %w", err)
		}
		if n != 1 {
			return errs.UpdateFailed(op, "update repayment status affected no rows")
		}

		if target == domainRepayment.StatusConfirmed {
			total, err = domainRepayment.ConfirmedTotal(ctx, st.Transactions(), a.AgreementID)
			if err != nil {
				return fmt.Errorf("sum confirmed repayments: %w", err)
			}
			if domainRepayment.IsSettled(total, *a.Principal) {
				if err := s.agreements.CompleteWithin(ctx, st, a); err != nil {
					return err
				}
				completed = true
			}
		}
		details, err = s.details(ctx, st, t, a, pair, total)
		return err
	})
	if err != nil {
		return nil, err
	}

	t := details.Transaction
	s.logger.Info().
		Str("transaction_id", t.TransactionID.String()).
		Str("agreement_id", t.AgreementID.String()).
		Str("user_id", creditorID.String()).
		Str("to", string(target)).
		Bool("settled", details.Settled).
		Msg("repayment decided")

	if target == domainRepayment.StatusConfirmed {
		s.emit(ctx, details, creditorID, audit.ActionRepaymentConfirmed, notification.KindRepaymentConfirmed)
	} else {
		s.emit(ctx, details, creditorID, audit.ActionRepaymentRejected, notification.KindRepaymentRejected)
	}
	if completed {
		s.logger.Info().
			Str("agreement_id", t.AgreementID.String()).
			Str("to", string(agreement.StatusCompleted)).
			Msg("agreement settled by repayment")
		s.emit(ctx, details, creditorID, audit.ActionAgreementCompleted, notification.KindAgreementCompleted)
	}
	return details, nil
}

// List returns the repayment history of an agreement to either party.
func (s *Service) List(ctx context.Context, userID, agreementID uuid.UUID) ([]*domainRepayment.Transaction, error) {
	const op = "repayment.list"
	var out []*domainRepayment.Transaction
	err := s.tx.InTx(ctx, func(st store.Store) error {
		a, err := st.Agreements().GetByID(ctx, agreementID)
		if err != nil {
			return fmt.Errorf("load agreement: %w", err)
		}
		if a == nil {
			return errs.NotFound(op, "agreement not found")
		}
		parties, err := st.Parties().ListByAgreement(ctx, agreementID)
		if err != nil {
			return fmt.Errorf("load agreement parties: %w", err)
		}
		if _, err := agreement.VerifyParties(a, parties, nil, userID, agreement.Statuses...); err != nil {
			if errors.Is(err, agreement.ErrPartyIntegrity) {
				s.logger.Error().
					Str("agreement_id", agreementID.String()).
					Int("party_rows", len(parties)).
					Msg(agreement.ErrPartyIntegrity.Error())
			}
			return err
		}
		out, err = st.Transactions().ListByAgreement(ctx, agreementID)
		if err != nil {
			return fmt.Errorf("list repayments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) details(ctx context.Context, st store.Store, t *domainRepayment.Transaction, a *agreement.Agreement, pair *agreement.PartyPair, total decimal.Decimal) (*domainRepayment.Details, error) {
	users, err := st.Users().GetByIDs(ctx, []uuid.UUID{pair.Creditor.UserID, pair.Debtor.UserID})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	d := &domainRepayment.Details{
		Transaction:     t,
		AgreementID:     a.AgreementID,
		AgreementStatus: a.Status,
		CreditorID:      pair.Creditor.UserID,
		DebtorID:        pair.Debtor.UserID,
		ConfirmedTotal:  total,
	}
	if u := users[pair.Creditor.UserID]; u != nil {
		d.CreditorName = u.Label()
	}
	if u := users[pair.Debtor.UserID]; u != nil {
		d.DebtorName = u.Label()
	}
	if a.Principal != nil {
		d.Remaining = domainRepayment.Remaining(total, *a.Principal)
		d.Settled = domainRepayment.IsSettled(total, *a.Principal)
	}
	return d, nil
}

// emit records the fact and notifies the other party after commit.
func (s *Service) emit(ctx context.Context, d *domainRepayment.Details, actor uuid.UUID, action audit.Action, kind notification.Kind) {
	if s.audit != nil {
		s.audit.Record(ctx, d.AgreementID, actor, action)
	}
	payload, err := json.Marshal(map[string]any{
		"agreementId":    d.AgreementID,
		"transactionId":  d.Transaction.TransactionID,
		"amount":         d.Transaction.Amount,
		"status":         d.Transaction.Status,
		"confirmedTotal": d.ConfirmedTotal,
		"remaining":      d.Remaining,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode notification payload")
		return
	}
	recipient := d.CreditorID
	if actor == d.CreditorID {
		recipient = d.DebtorID
	}
	notification.Fanout(ctx, s.notifier, d.AgreementID, kind, payload, recipient)
}
