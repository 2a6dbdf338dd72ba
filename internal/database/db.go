package database

import (
	"errors"

	"github.com/BradenHooton/authcore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into model error kinds.
// Unrecognised errors are returned unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrDuplicateKey
		case "23514", "23502": // check_violation, not_null_violation
			return models.ErrValidation
		}
	}

	return err
}
