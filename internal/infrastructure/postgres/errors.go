package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lendledger/lendledger/internal/domain/errs"
)

const activeAgreementIndex = "agreements_item_active_uniq"

// mapError classifies driver failures. Errors that already carry a lending
// code pass through untouched; unclassified errors are returned as is.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errs.CodeOf(err) != "" {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			if pgErr.ConstraintName == activeAgreementIndex {
				return errs.New(errs.CodeInvalidState, op, "item already has an active agreement", err)
			}
			return errs.New(errs.CodeInvalidState, op, "duplicate record", err)
		case "23514":
			return errs.New(errs.CodeInvalidState, op, "check constraint violated", err)
		case "40001", "40P01", "55P03":
			return errs.New(errs.CodeUpdateFailed, op, "concurrent update conflict", err) // serialization/deadlock/lock_not_available
		}
	}
	return err
}
