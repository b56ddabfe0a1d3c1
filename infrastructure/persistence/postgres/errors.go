package postgres

import (
	"errors"
	"strings"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// translateError maps gorm and driver failures onto the error taxonomy,
// keeping the original error as the cause.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.GetAppError(err) != nil {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgerrors.NewConflictError("record already exists").WithCause(err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return pkgerrors.NewValidationError("referenced record does not exist").WithCause(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.NewNotFoundError("record", op).WithCause(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return pkgerrors.NewConflictError("record already exists").WithCause(err)
		case "23503": // foreign_key_violation
			return pkgerrors.NewValidationError("referenced record does not exist").WithCause(err)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return pkgerrors.NewConflictError("concurrent write").WithCause(err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint failed"):
		return pkgerrors.NewConflictError("record already exists").WithCause(err)
	}

	return pkgerrors.Classify(op, err)
}
