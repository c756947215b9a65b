package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appAgreement "github.com/lendledger/lendledger/internal/application/agreement"
	domainAgreement "github.com/lendledger/lendledger/internal/domain/agreement"
)

type createAgreementRequest struct {
	ItemID    uuid.UUID        `json:"itemId"`
	DebtorID  uuid.UUID        `json:"debtorId"`
	Principal *decimal.Decimal `json:"principal,omitempty"`
	DueAt     time.Time        `json:"dueAt"`
	Terms     string           `json:"terms"`
}

func (s *Server) createAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.ItemID == uuid.Nil || req.DebtorID == uuid.Nil || req.DueAt.IsZero() {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "itemId, debtorId and dueAt are required")
		return
	}
	caller := authUserFromContext(r.Context())
	d, err := s.agreementSvc.Create(r.Context(), appAgreement.CreateInput{
		CreditorID: caller.UserID,
		ItemID:     req.ItemID,
		DebtorID:   req.DebtorID,
		Principal:  req.Principal,
		DueAt:      req.DueAt,
		Terms:      req.Terms,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (s *Server) getAgreement(w http.ResponseWriter, r *http.Request) {
	s.agreementAction(w, r, s.agreementSvc.Get)
}

func (s *Server) acceptAgreement(w http.ResponseWriter, r *http.Request) {
	s.agreementAction(w, r, s.agreementSvc.Accept)
}

func (s *Server) rejectAgreement(w http.ResponseWriter, r *http.Request) {
	s.agreementAction(w, r, s.agreementSvc.Reject)
}

func (s *Server) cancelAgreement(w http.ResponseWriter, r *http.Request) {
	s.agreementAction(w, r, s.agreementSvc.Cancel)
}

func (s *Server) completeAgreement(w http.ResponseWriter, r *http.Request) {
	s.agreementAction(w, r, s.agreementSvc.Complete)
}

type agreementFunc func(ctx context.Context, userID, agreementID uuid.UUID) (*domainAgreement.Details, error)

func (s *Server) agreementAction(w http.ResponseWriter, r *http.Request, fn agreementFunc) {
	id, err := parseUUIDParam(r, "agreementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid agreementId")
		return
	}
	d, err := fn(r.Context(), authUserFromContext(r.Context()).UserID, id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
