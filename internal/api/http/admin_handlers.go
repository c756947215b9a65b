package httpapi

import (
	"net/http"
)

func (s *Server) runOverdue(w http.ResponseWriter, r *http.Request) {
	n := s.agreementSvc.ProcessOverdueAgreements(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{"processed": n})
}

func (s *Server) agreementAudit(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "agreementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid agreementId")
		return
	}
	trail, err := s.auditSvc.Trail(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agreement_id": id, "events": trail})
}
