package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lendledger/lendledger/internal/domain/audit"
)

// Service records lending facts.
type Service struct {
	repo    audit.Repository
	signKey []byte
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

var _ audit.Sink = (*Service)(nil)

// NewService creates a new audit service. Events are signed when signKey is set.
func NewService(repo audit.Repository, logger zerolog.Logger, signKey []byte) *Service {
	return &Service{
		repo:    repo,
		signKey: signKey,
		logger:  logger.With().Str("service", "audit").Logger(),
	}
}

// Record stores the event asynchronously. Failures are logged only.
func (s *Service) Record(ctx context.Context, agreementID, userID uuid.UUID, action audit.Action) {
	e := audit.NewEvent(agreementID, userID, action)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.RecordSync(context.WithoutCancel(ctx), e); err != nil {
			s.logger.Error().Err(err).
				Str("agreement_id", agreementID.String()).
				Str("action", string(action)).
				Msg("failed to record audit event")
		}
	}()
}

// RecordSync signs and stores e.
func (s *Service) RecordSync(ctx context.Context, e *audit.Event) error {
	if len(s.signKey) > 0 {
		sig, err := audit.Sign(e, s.signKey)
		if err != nil {
			return fmt.Errorf("failed to sign audit event: %w", err)
		}
		e.Signature = sig
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	s.logger.Debug().
		Str("event_id", e.EventID.String()).
		Str("agreement_id", e.AgreementID.String()).
		Str("user_id", e.UserID.String()).
		Str("action", string(e.Action)).
		Msg("audit event recorded")
	return nil
}

// Wait blocks until pending asynchronous writes finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// TrailEntry is an event with its signature check.
type TrailEntry struct {
	*audit.Event
	Verified bool `json:"verified"`
}

// Trail lists the events of an agreement oldest first.
func (s *Service) Trail(ctx context.Context, agreementID uuid.UUID) ([]TrailEntry, error) {
	events, err := s.repo.ListByAgreement(ctx, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	out := make([]TrailEntry, 0, len(events))
	for _, e := range events {
		entry := TrailEntry{Event: e}
		if len(s.signKey) > 0 {
			ok, err := audit.VerifySignature(e, s.signKey)
			if err != nil {
				return nil, fmt.Errorf("failed to verify audit event: %w", err)
			}
			entry.Verified = ok
		}
		out = append(out, entry)
	}
	return out, nil
}
