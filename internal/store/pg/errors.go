package pg

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"garnizon.org/internal/auth"
	"garnizon.org/internal/fault"
	"garnizon.org/internal/obs"
)

// PostgreSQL SQLSTATE codes translated at this boundary.
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
	pgErrNotNullViolation    = "23502"
	pgErrLockNotAvailable    = "55P03"
	pgErrSerializationFail   = "40001"
	pgErrDeadlockDetected    = "40P01"
	pgErrTooManyConnections  = "53300"
)

// translate maps low-level storage errors into the service error
// taxonomy. Raw driver errors never cross this boundary; their detail is
// logged here and replaced with a generic classified message.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fault.Wrap(fault.AlreadyExists, "resource already exists", err)
		case pgErrNotNullViolation, pgErrForeignKeyViolation:
			return fault.Wrap(fault.InvalidArgument, "invalid reference", err)
		case pgErrLockNotAvailable, pgErrSerializationFail, pgErrDeadlockDetected, pgErrTooManyConnections:
			return fault.Wrap(fault.Unavailable, "storage busy", err)
		}
	}
	obs.Logger().WithError(err).Error("storage error")
	return fault.Wrap(fault.Internal, "storage error", err)
}
