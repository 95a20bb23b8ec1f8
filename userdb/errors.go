package userdb

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNoResultFound = errors.New("no result found")
	ErrInvalidFilter = errors.New("invalid user filter")
	ErrInvalidField  = errors.New("invalid user field")
)

// DuplicateKeyError is returned when a write breaks a unique constraint.
type DuplicateKeyError struct {
	Field string
	err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: %s already exists", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.err
}

var uniqueConstraintRegex = regexp.MustCompile(`UNIQUE constraint failed: \w+\.(\w+)`)

func wrapDuplicate(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return err
	}

	field := "unknown"
	if m := uniqueConstraintRegex.FindStringSubmatch(err.Error()); len(m) > 1 {
		field = m[1]
	}
	return &DuplicateKeyError{Field: field, err: err}
}
