package library

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// UserStore owns registered users and their borrowed-book sets.
type UserStore struct {
	file     *recordFile
	logger   *slog.Logger
	maxLoans int
	now      func() time.Time

	users map[string]*User
}

// NewUserStore returns an empty user store backed by the file at path.
// maxLoans caps each user's borrowed set; zero means unlimited.
func NewUserStore(path string, maxLoans int, logger *slog.Logger) *UserStore {
	return &UserStore{
		file:     newRecordFile(path),
		logger:   logger,
		maxLoans: maxLoans,
		now:      time.Now,
		users:    make(map[string]*User),
	}
}

// Path returns the backing file.
func (s *UserStore) Path() string { return s.file.path }

// Load replaces the in-memory users with the file contents.
func (s *UserStore) Load() error {
	var doc userFile
	found, err := s.file.load(&doc)
	if err != nil {
		return err
	}
	if !found {
		s.users = make(map[string]*User)
		return nil
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*User)
	}
	for key, u := range doc.Users {
		if err := s.validate(key, u); err != nil {
			return err
		}
	}
	s.users = doc.Users
	s.logger.Debug("users loaded", "path", s.file.path, "users", len(s.users))
	return nil
}

func (s *UserStore) validate(key string, u *User) error {
	corrupt := func(reason string) error {
		return &CorruptDataError{Path: s.file.path, Record: key, Reason: reason}
	}
	switch {
	case u == nil:
		return corrupt("null record")
	case u.ID == "":
		return corrupt("missing id")
	case u.ID != key:
		return corrupt(fmt.Sprintf("id %q does not match key", u.ID))
	case !u.Role.valid():
		return corrupt(fmt.Sprintf("unknown role %q", u.Role))
	case !u.Status.valid():
		return corrupt(fmt.Sprintf("unknown status %q", u.Status))
	}
	for _, set := range []struct {
		name string
		ids  *[]string
	}{
		{"borrowed_books", &u.Borrowed},
		{"favorites", &u.Favorites},
	} {
		if *set.ids == nil {
			*set.ids = []string{}
		}
		slices.Sort(*set.ids)
		if len(slices.Compact(slices.Clone(*set.ids))) != len(*set.ids) {
			return corrupt("duplicate id in " + set.name)
		}
	}
	return nil
}

// Persist writes all users back to their file.
func (s *UserStore) Persist() error {
	if err := s.file.persist(&userFile{Users: s.users}); err != nil {
		return err
	}
	s.logger.Debug("users persisted", "path", s.file.path, "users", len(s.users))
	return nil
}

// Get returns a copy of the user with the given id.
func (s *UserStore) Get(userID string) (*User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	return u.clone(), nil
}

// Len returns the number of registered users.
func (s *UserStore) Len() int { return len(s.users) }

// List returns copies of all users ordered by id.
func (s *UserStore) List() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.clone())
	}
	slices.SortFunc(out, func(a, b *User) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Register creates an active user. An empty name defaults to the id.
func (s *UserStore) Register(userID, name, email string, role Role) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsFunc(userID, isSpace) {
		return nil, fmt.Errorf("%w: user id must be non-empty and contain no spaces", ErrInvalidInput)
	}
	if !role.valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, exists := s.users[userID]; exists {
		return nil, fmt.Errorf("%w: user %q", ErrDuplicateID, userID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = userID
	}

	u := &User{
		ID:           userID,
		Name:         name,
		Email:        strings.TrimSpace(email),
		Role:         role,
		Status:       StatusActive,
		Borrowed:     []string{},
		Favorites:    []string{},
		RegisteredAt: s.now().UTC().Truncate(time.Second),
	}
	s.users[userID] = u
	return u.clone(), nil
}

// Remove deletes a user. Users holding borrowed books cannot be removed.
func (s *UserStore) Remove(userID string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	if len(u.Borrowed) > 0 {
		return fmt.Errorf("%w: user %q holds %d books", ErrHasActiveLoans, userID, len(u.Borrowed))
	}
	delete(s.users, userID)
	return nil
}

// SetStatus activates or deactivates a user.
func (s *UserStore) SetStatus(userID string, status Status) (*User, error) {
	if !status.valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	u.Status = status
	return u.clone(), nil
}

// AddLoan records bookID in the user's borrowed set. It is driven by
// circulation only.
func (s *UserStore) AddLoan(userID, bookID string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	if u.HasLoan(bookID) {
		return fmt.Errorf("%w: %q", ErrAlreadyBorrowed, bookID)
	}
	if s.maxLoans > 0 && len(u.Borrowed) >= s.maxLoans {
		return fmt.Errorf("%w: user %q already holds %d books", ErrLoanLimit, userID, len(u.Borrowed))
	}
	u.Borrowed, _ = insertSorted(u.Borrowed, bookID)
	return nil
}

// restoreLoan puts bookID back into the user's borrowed set without
// applying the loan policy. Rollbacks use it to undo a RemoveLoan.
func (s *UserStore) restoreLoan(userID, bookID string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	u.Borrowed, _ = insertSorted(u.Borrowed, bookID)
	return nil
}

// RemoveLoan drops bookID from the user's borrowed set.
func (s *UserStore) RemoveLoan(userID, bookID string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	var removed bool
	if u.Borrowed, removed = deleteSorted(u.Borrowed, bookID); !removed {
		return fmt.Errorf("%w: %q", ErrNotBorrowed, bookID)
	}
	return nil
}

// AddFavorite adds bookID to the user's favorites.
func (s *UserStore) AddFavorite(userID, bookID string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	var added bool
	if u.Favorites, added = insertSorted(u.Favorites, bookID); !added {
		return fmt.Errorf("%w: %q", ErrAlreadyFavorite, bookID)
	}
	return nil
}

// RemoveFavorite drops bookID from the user's favorites.
func (s *UserStore) RemoveFavorite(userID, bookID string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	var removed bool
	if u.Favorites, removed = deleteSorted(u.Favorites, bookID); !removed {
		return fmt.Errorf("%w: %q", ErrNotFavorite, bookID)
	}
	return nil
}

// forgetFavorite drops bookID from every user's favorites and reports how
// many users changed.
func (s *UserStore) forgetFavorite(bookID string) int {
	n := 0
	for _, u := range s.users {
		var removed bool
		if u.Favorites, removed = deleteSorted(u.Favorites, bookID); removed {
			n++
		}
	}
	return n
}

func (s *UserStore) snapshot() map[string]*User {
	st := make(map[string]*User, len(s.users))
	for id, u := range s.users {
		st[id] = u.clone()
	}
	return st
}

func (s *UserStore) restore(st map[string]*User) { s.users = st }

func insertSorted(set []string, id string) ([]string, bool) {
	i, found := slices.BinarySearch(set, id)
	if found {
		return set, false
	}
	return slices.Insert(set, i, id), true
}

func deleteSorted(set []string, id string) ([]string, bool) {
	i, found := slices.BinarySearch(set, id)
	if !found {
		return set, false
	}
	return slices.Delete(set, i, i+1), true
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
