package database

import (
	stderrors "errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = stderrors.New("database: record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = stderrors.New("database: duplicate record")
)

// isUniqueViolation reports whether err is a unique or primary key violation in either dialect
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
