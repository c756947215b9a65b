package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	agreementID, err := parseUUIDParam(r, "agreementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid agreementId")
		return
	}
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	d, err := s.repaymentSvc.Create(r.Context(), authUserFromContext(r.Context()).UserID, agreementID, req.Amount)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	agreementID, err := parseUUIDParam(r, "agreementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid agreementId")
		return
	}
	txs, err := s.repaymentSvc.List(r.Context(), authUserFromContext(r.Context()).UserID, agreementID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

func (s *Server) confirmTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "transactionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid transactionId")
		return
	}
	d, err := s.repaymentSvc.Confirm(r.Context(), authUserFromContext(r.Context()).UserID, id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) rejectTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "transactionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid transactionId")
		return
	}
	d, err := s.repaymentSvc.Reject(r.Context(), authUserFromContext(r.Context()).UserID, id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
