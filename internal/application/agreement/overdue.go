package agreement

import (
	"context"
	"fmt"
	"time"

	domainAgreement "github.com/lendledger/lendledger/internal/domain/agreement"
	"github.com/lendledger/lendledger/internal/domain/store"
)

const overdueBatchSize = 200

// ProcessOverdueAgreements marks every accepted agreement past its due date
// as OVERDUE. Each agreement is handled in its own transaction and failures
// are logged and skipped. Listing walks a (due_at, id) cursor so agreements
// that keep failing never hide the ones behind them. It returns how many
// agreements were marked.
func (s *Service) ProcessOverdueAgreements(ctx context.Context) int {
	now := s.now()
	var cursor domainAgreement.OverdueCursor
	processed, scanned := 0, 0
	for ctx.Err() == nil {
		batch, err := s.listOverdue(ctx, now, cursor)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to list overdue agreements")
			break
		}
		for _, a := range batch {
			scanned++
			marked, err := s.MarkOverdue(ctx, a.AgreementID)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("agreement_id", a.AgreementID.String()).
					Msg("failed to mark agreement overdue")
				continue
			}
			if marked {
				processed++
			}
		}
		if len(batch) < overdueBatchSize {
			break
		}
		cursor = domainAgreement.CursorOf(batch[len(batch)-1])
	}
	s.logger.Info().Int("processed", processed).Int("scanned", scanned).Msg("overdue sweep finished")
	return processed
}

func (s *Service) listOverdue(ctx context.Context, now time.Time, after domainAgreement.OverdueCursor) ([]*domainAgreement.Agreement, error) {
	var batch []*domainAgreement.Agreement
	err := s.tx.InTx(ctx, func(st store.Store) error {
		var err error
		batch, err = st.Agreements().ListOverdueCandidates(ctx, now, after, overdueBatchSize)
		if err != nil {
			return fmt.Errorf("list overdue candidates: %w", err)
		}
		return nil
	})
	return batch, err
}
