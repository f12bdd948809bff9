package database

import (
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/punchflow/punchflow/pkg/errors"
	"modernc.org/sqlite"
)

// SQLite extended result codes for constraint failures.
const (
	sqliteConstraintCheck      = 275
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// MapError converts a driver constraint error into an AppError naming the
// relation being written. Returns nil for anything that is not a constraint
// violation.
func MapError(relation string, err error) *errors.AppError {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return mapPQError(relation, pqErr)
	}

	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		return mapSQLiteError(relation, liteErr)
	}

	return nil
}

func mapPQError(relation string, pqErr *pq.Error) *errors.AppError {
	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return errors.BadRequest(fmt.Sprintf("%s: check constraint %s failed", relation, pqErr.Constraint))

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(fmt.Sprintf("%s: duplicate natural key (%s)", relation, pqErr.Constraint))

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			relation + "." + col: "must not be empty",
		})

	default:
		return nil
	}
}

func mapSQLiteError(relation string, liteErr *sqlite.Error) *errors.AppError {
	switch liteErr.Code() {
	case sqliteConstraintCheck:
		return errors.BadRequest(fmt.Sprintf("%s: %s", relation, liteErr.Error()))
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return errors.Conflict(fmt.Sprintf("%s: duplicate natural key", relation))
	case sqliteConstraintNotNull:
		return errors.Validation(map[string]string{
			relation: liteErr.Error(),
		})
	default:
		return nil
	}
}
