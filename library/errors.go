package library

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrBookNotFound    = fmt.Errorf("book %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidState    = errors.New("invalid state")
	ErrNotAvailable    = errors.New("no copies available")
	ErrAlreadyBorrowed = errors.New("book already borrowed by this user")
	ErrNotBorrowed     = errors.New("book not borrowed by this user")
	ErrHasActiveLoans  = errors.New("record has active loans")
	ErrPermission      = errors.New("permission denied")
	ErrAccountInactive = errors.New("account is inactive")
	ErrLoanLimit       = errors.New("loan limit reached")
	ErrAlreadyFavorite = errors.New("book already in favorites")
	ErrNotFavorite     = errors.New("book not in favorites")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStorage         = errors.New("storage error")
	ErrCorruptData     = errors.New("corrupt data")
)

// StorageError reports a failed read or write of a record file.
// No partial state is committed when one is returned.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// CorruptDataError reports a record file that parsed but failed validation,
// or did not parse at all.
type CorruptDataError struct {
	Path   string
	Record string
	Reason string
}

func (e *CorruptDataError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("corrupt data in %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("corrupt data in %s: record %q: %s", e.Path, e.Record, e.Reason)
}

func (e *CorruptDataError) Is(target error) bool { return target == ErrCorruptData }
