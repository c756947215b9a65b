package agreement

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lendledger/lendledger/internal/domain/errs"
)

// Role tags a party row.
type Role string

const (
	RoleCreditor Role = "CREDITOR"
	RoleDebtor   Role = "DEBTOR"
)

// ErrPartyIntegrity marks party rows that do not resolve to exactly one
// creditor and one debtor. It signals corrupted data, not a caller mistake.
var ErrPartyIntegrity = errors.New("agreement party records inconsistent")

// Party is one of the two participants of an agreement.
type Party struct {
	ID          int64      `json:"id"`
	AgreementID uuid.UUID  `json:"agreementId"`
	Role        Role       `json:"role"`
	UserID      uuid.UUID  `json:"userId"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// Confirm stamps the confirmation time once. It reports false if the party
// was already confirmed.
func (p *Party) Confirm(at time.Time) bool {
	if p.ConfirmedAt != nil {
		return false
	}
	t := at.UTC()
	p.ConfirmedAt = &t
	return true
}

// NewParties builds the creditor and debtor rows for a new agreement. The
// creditor is confirmed at creation.
func NewParties(agreementID, creditorID, debtorID uuid.UUID, now time.Time) (*Party, *Party) {
	creditor := &Party{AgreementID: agreementID, Role: RoleCreditor, UserID: creditorID}
	creditor.Confirm(now)
	debtor := &Party{AgreementID: agreementID, Role: RoleDebtor, UserID: debtorID}
	return creditor, debtor
}

// PartyPair holds the resolved participants of an agreement.
type PartyPair struct {
	Creditor *Party
	Debtor   *Party
}

// RoleOf returns the role userID holds, if any.
func (p *PartyPair) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case p.Creditor.UserID:
		return RoleCreditor, true
	case p.Debtor.UserID:
		return RoleDebtor, true
	}
	return "", false
}

// ResolveParties splits the party rows by role.
func ResolveParties(parties []*Party) (*PartyPair, error) {
	if len(parties) != 2 {
		return nil, ErrPartyIntegrity
	}
	pair := &PartyPair{}
	for _, p := range parties {
		if p == nil {
			return nil, ErrPartyIntegrity
		}
		switch p.Role {
		case RoleCreditor:
			if pair.Creditor != nil {
				return nil, ErrPartyIntegrity
			}
			pair.Creditor = p
		case RoleDebtor:
			if pair.Debtor != nil {
				return nil, ErrPartyIntegrity
			}
			pair.Debtor = p
		default:
			return nil, ErrPartyIntegrity
		}
	}
	if pair.Creditor == nil || pair.Debtor == nil || pair.Creditor.UserID == pair.Debtor.UserID {
		return nil, ErrPartyIntegrity
	}
	return pair, nil
}

// VerifyParties checks that a may be acted on by userID. required names the
// role the caller must hold; nil accepts either party. allowed lists the
// statuses in which the action is legal.
func VerifyParties(a *Agreement, parties []*Party, required *Role, userID uuid.UUID, allowed ...Status) (*PartyPair, error) {
	const op = "agreement.verify"
	pair, err := ResolveParties(parties)
	if err != nil {
		return nil, errs.New(errs.CodeNotFound, op, "agreement parties not found", err)
	}
	if !statusIn(a.Status, allowed) {
		return nil, errs.InvalidState(op, "operation not allowed while agreement is "+string(a.Status))
	}
	role, ok := pair.RoleOf(userID)
	if !ok {
		return nil, errs.NotAuthorized(op, "user is not a party to this agreement")
	}
	if required != nil && role != *required {
		return nil, errs.NotAuthorized(op, "only the "+roleName(*required)+" may perform this action")
	}
	return pair, nil
}

func statusIn(s Status, allowed []Status) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

func roleName(r Role) string {
	if r == RoleCreditor {
		return "creditor"
	}
	return "debtor"
}

// RolePtr is a convenience for VerifyParties callers.
func RolePtr(r Role) *Role {
	return &r
}
