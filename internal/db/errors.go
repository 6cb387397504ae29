package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates no rows matched the query.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or integrity conflict.
	ErrConflict = errors.New("conflict")
)

// MapRowErr converts a QueryRow/Scan error into the package sentinels.
func MapRowErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return MapPgErr(err)
}

// MapPgErr wraps integrity violations in ErrConflict and passes everything else through.
func MapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514":
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}
