package httpapi

import (
	"errors"
	"net/http"
	"strings"

	appAuth "github.com/lendledger/lendledger/internal/application/auth"
)

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.authSvc.Authenticate(r.Context(), extractToken(r))
		if err != nil {
			switch {
			case errors.Is(err, appAuth.ErrInvalidToken):
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing token")
			case errors.Is(err, appAuth.ErrUserDisabled):
				respondError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
			default:
				s.logger.Error().Err(err).Msg("authentication failed")
				respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(withAuthUser(r.Context(), p)))
	})
}

func (s *Server) requireRole(roles ...appAuth.Role) func(http.Handler) http.Handler {
	allowed := make(map[appAuth.Role]struct{})
	for _, r := range roles {
		allowed[appAuth.Role(strings.ToUpper(string(r)))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := authUserFromContext(r.Context())
			if user == nil {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
				return
			}
			if _, ok := allowed[appAuth.Role(strings.ToUpper(string(user.Role)))]; !ok {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	// EventSource cannot set headers.
	if r.URL.Path != "" && strings.HasSuffix(r.URL.Path, "/sse") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
