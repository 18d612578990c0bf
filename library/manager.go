package library

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LibraryManager is the façade the CLI talks to. Every operation reloads the
// stores from disk first and flushes what it changed before returning.
type LibraryManager struct {
	cfg    Config
	logger *slog.Logger

	catalog  *CatalogStore
	users    *UserStore
	activity *ActivityLog
	circ     *Circulation
}

// NewLibraryManager opens (or creates) the stores under cfg.DataDir.
// A fresh data directory is seeded with sample books and the default admin
// when cfg.Seed is set.
func NewLibraryManager(cfg Config, logger *slog.Logger) (*LibraryManager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: cfg.DataDir, Err: err}
	}

	lm := &LibraryManager{
		cfg:      cfg,
		logger:   logger,
		catalog:  NewCatalogStore(cfg.BooksPath(), logger),
		users:    NewUserStore(cfg.UsersPath(), cfg.MaxLoans, logger),
		activity: NewActivityLog(cfg.ActivityPath(), cfg.ActivityLimit, logger),
	}
	lm.circ = NewCirculation(lm.catalog, lm.users, logger)

	if cfg.Seed {
		if err := lm.seedIfEmpty(); err != nil {
			return nil, err
		}
	}
	if err := lm.load(); err != nil {
		return nil, err
	}
	return lm, nil
}

// Config returns the configuration the manager was opened with.
func (lm *LibraryManager) Config() Config { return lm.cfg }

func (lm *LibraryManager) load() error {
	if err := lm.catalog.Load(); err != nil {
		return err
	}
	return lm.users.Load()
}

type storeSet uint8

const (
	touchCatalog storeSet = 1 << iota
	touchUsers
)

// commit reloads the stores, applies fn and persists the stores named in
// touched. On any failure the in-memory state is restored and no file is
// left reflecting a partial change.
func (lm *LibraryManager) commit(touched storeSet, fn func() error) error {
	if err := lm.load(); err != nil {
		return err
	}
	catalogBefore, usersBefore := lm.catalog.snapshot(), lm.users.snapshot()
	rollback := func() {
		lm.catalog.restore(catalogBefore)
		lm.users.restore(usersBefore)
	}

	if err := fn(); err != nil {
		rollback()
		return err
	}
	if touched&touchCatalog != 0 {
		if err := lm.catalog.Persist(); err != nil {
			rollback()
			return err
		}
	}
	if touched&touchUsers != 0 {
		if err := lm.users.Persist(); err != nil {
			rollback()
			if touched&touchCatalog != 0 {
				if rerr := lm.catalog.Persist(); rerr != nil {
					lm.logger.Error("catalog restore failed after user write error", "err", rerr)
				}
			}
			return err
		}
	}
	return nil
}

// record appends to the activity log. Failures are logged, never returned.
// An unreadable log is left as it is on disk and the entry is dropped.
func (lm *LibraryManager) record(userID, action, details string) {
	if err := lm.activity.Load(); err != nil {
		lm.logger.Warn("activity log unreadable, entry dropped", "action", action, "user", userID, "err", err)
		return
	}
	if err := lm.activity.Record(userID, action, details); err != nil {
		lm.logger.Warn("activity log write failed", "action", action, "user", userID, "err", err)
	}
}

// requireAdmin checks that actorID names an active admin.
func (lm *LibraryManager) requireAdmin(actorID string) error {
	actor, err := lm.users.Get(actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown user %q", ErrPermission, actorID)
		}
		return err
	}
	if actor.Status != StatusActive {
		return fmt.Errorf("%w: %q", ErrAccountInactive, actorID)
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: %q is not an admin", ErrPermission, actorID)
	}
	return nil
}

func (lm *LibraryManager) activeAdmins() int {
	n := 0
	for _, u := range lm.users.List() {
		if u.IsAdmin() && u.Status == StatusActive {
			n++
		}
	}
	return n
}

// ------------------ Users ------------------

// Register creates a student account.
func (lm *LibraryManager) Register(userID, name, email string) (*User, error) {
	var u *User
	err := lm.commit(touchUsers, func() error {
		var err error
		u, err = lm.users.Register(userID, name, email, RoleStudent)
		return err
	})
	if err != nil {
		return nil, err
	}
	lm.record(u.ID, ActionRegister, "New student: "+u.Name)
	return u, nil
}

// Login returns the user for an active account.
func (lm *LibraryManager) Login(userID string) (*User, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	u, err := lm.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if u.Status != StatusActive {
		return nil, fmt.Errorf("%w: %q", ErrAccountInactive, userID)
	}
	lm.record(u.ID, ActionLogin, string(u.Role)+" login")
	return u, nil
}

// GetUser returns the account userID.
func (lm *LibraryManager) GetUser(userID string) (*User, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	return lm.users.Get(userID)
}

// ListUsers returns every account. Admin only.
func (lm *LibraryManager) ListUsers(actorID string) ([]*User, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	if err := lm.requireAdmin(actorID); err != nil {
		return nil, err
	}
	return lm.users.List(), nil
}

// RemoveUser deletes an account without active loans. Admin only.
func (lm *LibraryManager) RemoveUser(actorID, userID string) error {
	err := lm.commit(touchUsers, func() error {
		if err := lm.requireAdmin(actorID); err != nil {
			return err
		}
		target, err := lm.users.Get(userID)
		if err != nil {
			return err
		}
		if target.IsAdmin() && target.Status == StatusActive && lm.activeAdmins() == 1 {
			return fmt.Errorf("%w: %q is the last active admin", ErrInvalidState, userID)
		}
		return lm.users.Remove(userID)
	})
	if err != nil {
		return err
	}
	lm.record(actorID, ActionRemoveUser, "Removed user "+userID)
	return nil
}

// SetUserStatus activates or deactivates an account. Admin only.
func (lm *LibraryManager) SetUserStatus(actorID, userID string, status Status) (*User, error) {
	var u *User
	err := lm.commit(touchUsers, func() error {
		if err := lm.requireAdmin(actorID); err != nil {
			return err
		}
		target, err := lm.users.Get(userID)
		if err != nil {
			return err
		}
		if status == StatusInactive && target.IsAdmin() && target.Status == StatusActive && lm.activeAdmins() == 1 {
			return fmt.Errorf("%w: %q is the last active admin", ErrInvalidState, userID)
		}
		u, err = lm.users.SetStatus(userID, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	action := ActionActivateUser
	if status == StatusInactive {
		action = ActionDeactivateUser
	}
	lm.record(actorID, action, "User "+userID)
	return u, nil
}

// ------------------ Books ------------------

// GetBook returns the catalog entry bookID.
func (lm *LibraryManager) GetBook(bookID string) (*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	return lm.catalog.Get(bookID)
}

// ListBooks returns the whole catalog ordered by id.
func (lm *LibraryManager) ListBooks() ([]*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	return lm.catalog.List(), nil
}

// SearchBooks returns the books matching q.
func (lm *LibraryManager) SearchBooks(q Search) ([]*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	return lm.catalog.Search(q), nil
}

// Categories lists the distinct categories in the catalog.
func (lm *LibraryManager) Categories() ([]string, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	return lm.catalog.Categories(), nil
}

// AddBook adds a title to the catalog. Admin only.
func (lm *LibraryManager) AddBook(actorID string, nb NewBook) (*Book, error) {
	var b *Book
	err := lm.commit(touchCatalog, func() error {
		if err := lm.requireAdmin(actorID); err != nil {
			return err
		}
		var err error
		b, err = lm.catalog.Add(nb)
		return err
	})
	if err != nil {
		return nil, err
	}
	lm.record(actorID, ActionAddBook, fmt.Sprintf("Added %s: %s by %s", b.ID, b.Title, b.Author))
	return b, nil
}

// EditBook updates a title. Admin only.
func (lm *LibraryManager) EditBook(actorID, bookID string, e BookEdit) (*Book, error) {
	var b *Book
	err := lm.commit(touchCatalog, func() error {
		if err := lm.requireAdmin(actorID); err != nil {
			return err
		}
		var err error
		b, err = lm.catalog.Edit(bookID, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	lm.record(actorID, ActionEditBook, "Edited book "+bookID)
	return b, nil
}

// RemoveBook deletes a title with no copies on loan and drops it from every
// user's favorites. Admin only.
func (lm *LibraryManager) RemoveBook(actorID, bookID string) error {
	err := lm.commit(touchCatalog|touchUsers, func() error {
		if err := lm.requireAdmin(actorID); err != nil {
			return err
		}
		if err := lm.catalog.Remove(bookID); err != nil {
			return err
		}
		lm.users.forgetFavorite(bookID)
		return nil
	})
	if err != nil {
		return err
	}
	lm.record(actorID, ActionRemoveBook, "Removed book "+bookID)
	return nil
}

// ------------------ Circulation ------------------

// Borrow lends a copy of bookID to userID.
func (lm *LibraryManager) Borrow(userID, bookID string) (*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	b, err := lm.circ.Borrow(userID, bookID)
	if err != nil {
		return nil, err
	}
	lm.record(userID, ActionBorrow, fmt.Sprintf("Book %s: %s", b.ID, b.Title))
	return b, nil
}

// Return takes a copy of bookID back from userID.
func (lm *LibraryManager) Return(userID, bookID string) (*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	b, err := lm.circ.Return(userID, bookID)
	if err != nil {
		return nil, err
	}
	lm.record(userID, ActionReturn, fmt.Sprintf("Book %s: %s", b.ID, b.Title))
	return b, nil
}

// Loans returns the books userID currently holds.
func (lm *LibraryManager) Loans(userID string) ([]*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	u, err := lm.users.Get(userID)
	if err != nil {
		return nil, err
	}
	return lm.booksByID(u.Borrowed), nil
}

func (lm *LibraryManager) booksByID(ids []string) []*Book {
	books := make([]*Book, 0, len(ids))
	for _, id := range ids {
		b, err := lm.catalog.Get(id)
		if err != nil {
			lm.logger.Warn("user references missing book", "book", id)
			continue
		}
		books = append(books, b)
	}
	return books
}

// ------------------ Favorites ------------------

// AddFavorite marks an existing book as a favorite of userID.
func (lm *LibraryManager) AddFavorite(userID, bookID string) error {
	var b *Book
	err := lm.commit(touchUsers, func() error {
		var err error
		if b, err = lm.catalog.Get(bookID); err != nil {
			return err
		}
		return lm.users.AddFavorite(userID, bookID)
	})
	if err != nil {
		return err
	}
	lm.record(userID, ActionAddFavorite, "Book: "+b.Title)
	return nil
}

// RemoveFavorite drops bookID from userID's favorites.
func (lm *LibraryManager) RemoveFavorite(userID, bookID string) error {
	err := lm.commit(touchUsers, func() error {
		return lm.users.RemoveFavorite(userID, bookID)
	})
	if err != nil {
		return err
	}
	lm.record(userID, ActionRemoveFavorite, "Book "+bookID)
	return nil
}

// Favorites returns the books userID has marked, skipping removed ones.
func (lm *LibraryManager) Favorites(userID string) ([]*Book, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	u, err := lm.users.Get(userID)
	if err != nil {
		return nil, err
	}
	return lm.booksByID(u.Favorites), nil
}

// ------------------ Reporting ------------------

// Stats summarizes the catalog and users. Admin only.
func (lm *LibraryManager) Stats(actorID string) (Stats, error) {
	if err := lm.load(); err != nil {
		return Stats{}, err
	}
	if err := lm.requireAdmin(actorID); err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, b := range lm.catalog.List() {
		st.Titles++
		st.TotalCopies += b.Total
		st.AvailableCopies += b.Available
		st.CopiesOnLoan += b.OnLoan()
		if b.Available > 0 {
			st.TitlesAvailable++
		}
	}
	for _, u := range lm.users.List() {
		if u.Role == RoleStudent {
			st.Students++
		}
		if len(u.Borrowed) > 0 {
			st.ActiveBorrowers++
		}
	}
	return st, nil
}

// Activity returns the audit trail, optionally for one user. Admin only.
func (lm *LibraryManager) Activity(actorID, userID string) ([]ActivityEntry, error) {
	if err := lm.load(); err != nil {
		return nil, err
	}
	if err := lm.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if err := lm.activity.Load(); err != nil {
		return nil, err
	}
	return lm.activity.Entries(strings.TrimSpace(userID)), nil
}

// CheckConsistency verifies that every book's copies on loan equal the
// number of users holding it and that every loan refers to a known book.
// An unreadable activity log is reported alongside.
func (lm *LibraryManager) CheckConsistency() error {
	if err := lm.load(); err != nil {
		return err
	}

	holders := make(map[string]int)
	var problems []error
	for _, u := range lm.users.List() {
		for _, id := range u.Borrowed {
			if _, err := lm.catalog.Get(id); err != nil {
				problems = append(problems, fmt.Errorf("%w: user %q holds unknown book %q", ErrInvalidState, u.ID, id))
				continue
			}
			holders[id]++
		}
	}
	for _, b := range lm.catalog.List() {
		if b.OnLoan() != holders[b.ID] {
			problems = append(problems, fmt.Errorf("%w: book %q has %d copies on loan but %d borrowers",
				ErrInvalidState, b.ID, b.OnLoan(), holders[b.ID]))
		}
	}
	if err := lm.activity.Load(); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}
