package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAgreement "github.com/lendledger/lendledger/internal/application/agreement"
	appAudit "github.com/lendledger/lendledger/internal/application/audit"
	appAuth "github.com/lendledger/lendledger/internal/application/auth"
	appRepayment "github.com/lendledger/lendledger/internal/application/repayment"
	appUser "github.com/lendledger/lendledger/internal/application/user"
	"github.com/lendledger/lendledger/internal/domain/errs"
	"github.com/lendledger/lendledger/internal/infrastructure/sse"
)

// Pinger reports storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	agreementSvc *appAgreement.Service
	repaymentSvc *appRepayment.Service
	auditSvc     *appAudit.Service
	authSvc      *appAuth.Service
	userSvc      *appUser.Service
	sseHub       *sse.Hub
	db           Pinger
	logger       zerolog.Logger
}

func NewServer(
	agreementSvc *appAgreement.Service,
	repaymentSvc *appRepayment.Service,
	auditSvc *appAudit.Service,
	authSvc *appAuth.Service,
	userSvc *appUser.Service,
	sseHub *sse.Hub,
	db Pinger,
	logger zerolog.Logger,
) *Server {
	return &Server{
		agreementSvc: agreementSvc,
		repaymentSvc: repaymentSvc,
		auditSvc:     auditSvc,
		authSvc:      authSvc,
		userSvc:      userSvc,
		sseHub:       sseHub,
		db:           db,
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		// streams outlive the request timeout
		r.Get("/notifications/sse", s.sseEndpoint)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/me", s.me)

			r.Route("/agreements", func(r chi.Router) {
				r.Post("/", s.createAgreement)
				r.Get("/{agreementId}", s.getAgreement)
				r.Post("/{agreementId}/accept", s.acceptAgreement)
				r.Post("/{agreementId}/reject", s.rejectAgreement)
				r.Post("/{agreementId}/cancel", s.cancelAgreement)
				r.Post("/{agreementId}/complete", s.completeAgreement)
				r.Get("/{agreementId}/transactions", s.listTransactions)
				r.Post("/{agreementId}/transactions", s.createTransaction)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/{transactionId}/confirm", s.confirmTransaction)
				r.Post("/{transactionId}/reject", s.rejectTransaction)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireRole(appAuth.RoleAdmin))
				r.Post("/overdue/run", s.runOverdue)
				r.Get("/agreements/{agreementId}/audit", s.agreementAudit)
			})
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps a service error onto a status code. Unclassified
// errors are logged and hidden from the caller.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	switch e.Code {
	case errs.CodeNotFound:
		respondError(w, http.StatusNotFound, string(e.Code), e.Message)
	case errs.CodeInvalidState:
		respondError(w, http.StatusConflict, string(e.Code), e.Message)
	case errs.CodeNotAuthorized:
		respondError(w, http.StatusForbidden, string(e.Code), e.Message)
	default:
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, string(e.Code), e.Message)
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
