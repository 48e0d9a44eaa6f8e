package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrSymbientExists is returned when creating a second symbient for an
	// account; the unique index makes the concurrent case surface here too.
	ErrSymbientExists = errors.New("symbient already exists for account")

	// ErrDuplicateVote is returned when the (account, post) vote pair
	// already exists. Concurrent toggles treat it as "already succeeded".
	ErrDuplicateVote = errors.New("vote already exists")
)

// isUniqueViolation reports whether err is a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
