package library

import (
	"fmt"
	"log/slog"
)

// Catalog is the part of the catalog store that circulation drives.
type Catalog interface {
	Get(bookID string) (*Book, error)
	AdjustAvailability(bookID string, delta int) (*Book, error)
	Persist() error
}

// Roster is the part of the user store that circulation drives.
type Roster interface {
	Get(userID string) (*User, error)
	AddLoan(userID, bookID string) error
	RemoveLoan(userID, bookID string) error
	Persist() error

	// restoreLoan undoes RemoveLoan regardless of the loan limit.
	restoreLoan(userID, bookID string) error
}

// Circulation moves copies between the catalog and users' borrowed sets.
// It owns no data. Every transition mutates both stores or neither, so the
// copies on loan for a book always equal the number of users holding it.
type Circulation struct {
	catalog Catalog
	users   Roster
	logger  *slog.Logger
}

// NewCirculation wires circulation to the stores it coordinates.
func NewCirculation(catalog Catalog, users Roster, logger *slog.Logger) *Circulation {
	return &Circulation{catalog: catalog, users: users, logger: logger}
}

// Borrow lends one copy of bookID to userID and returns the updated book.
func (c *Circulation) Borrow(userID, bookID string) (*Book, error) {
	user, err := c.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if user.Status == StatusInactive {
		return nil, fmt.Errorf("%w: %q", ErrAccountInactive, userID)
	}
	book, err := c.catalog.Get(bookID)
	if err != nil {
		return nil, err
	}
	// A repeat borrow is reported as such even when it took the last copy.
	if user.HasLoan(bookID) {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyBorrowed, bookID)
	}
	if book.Available == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotAvailable, bookID)
	}

	updated, err := c.catalog.AdjustAvailability(bookID, -1)
	if err != nil {
		return nil, err
	}
	if err := c.users.AddLoan(userID, bookID); err != nil {
		c.compensate("borrow", userID, bookID, func() error {
			_, err := c.catalog.AdjustAvailability(bookID, +1)
			return err
		})
		return nil, err
	}

	undo := func() error {
		if err := c.users.RemoveLoan(userID, bookID); err != nil {
			return err
		}
		_, err := c.catalog.AdjustAvailability(bookID, +1)
		return err
	}
	if err := c.persist("borrow", userID, bookID, undo); err != nil {
		return nil, err
	}

	c.logger.Debug("book borrowed", "user", userID, "book", bookID, "available", updated.Available)
	return updated, nil
}

// Return takes bookID back from userID and returns the updated book.
func (c *Circulation) Return(userID, bookID string) (*Book, error) {
	user, err := c.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if !user.HasLoan(bookID) {
		return nil, fmt.Errorf("%w: %q", ErrNotBorrowed, bookID)
	}

	if err := c.users.RemoveLoan(userID, bookID); err != nil {
		return nil, err
	}
	updated, err := c.catalog.AdjustAvailability(bookID, +1)
	if err != nil {
		c.compensate("return", userID, bookID, func() error {
			return c.users.restoreLoan(userID, bookID)
		})
		return nil, err
	}

	undo := func() error {
		if _, err := c.catalog.AdjustAvailability(bookID, -1); err != nil {
			return err
		}
		return c.users.restoreLoan(userID, bookID)
	}
	if err := c.persist("return", userID, bookID, undo); err != nil {
		return nil, err
	}

	c.logger.Debug("book returned", "user", userID, "book", bookID, "available", updated.Available)
	return updated, nil
}

// persist flushes the catalog, then the users. When the user write fails
// the in-memory transition is undone and the catalog rewritten, so neither
// file reflects the transition.
func (c *Circulation) persist(op, userID, bookID string, undo func() error) error {
	if err := c.catalog.Persist(); err != nil {
		c.compensate(op, userID, bookID, undo)
		return err
	}
	if err := c.users.Persist(); err != nil {
		c.compensate(op, userID, bookID, undo)
		if rerr := c.catalog.Persist(); rerr != nil {
			c.logger.Error("catalog restore failed after user write error",
				"op", op, "user", userID, "book", bookID, "err", rerr)
		}
		return err
	}
	return nil
}

func (c *Circulation) compensate(op, userID, bookID string, undo func() error) {
	if err := undo(); err != nil {
		c.logger.Error("rollback failed", "op", op, "user", userID, "book", bookID, "err", err)
	}
}
