package httpapi

import "net/http"

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	caller := authUserFromContext(r.Context())
	p, err := s.userSvc.Get(r.Context(), caller.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": p,
		"role": caller.Role,
	})
}
