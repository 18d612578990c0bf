package library

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// CatalogStore owns the book records and their availability counters.
// State is held in memory between Load and Persist.
type CatalogStore struct {
	file   *recordFile
	logger *slog.Logger

	nextID int
	books  map[string]*Book
}

// NewCatalogStore returns an empty catalog backed by the file at path.
// Call Load to read existing records.
func NewCatalogStore(path string, logger *slog.Logger) *CatalogStore {
	return &CatalogStore{
		file:   newRecordFile(path),
		logger: logger,
		nextID: 1,
		books:  make(map[string]*Book),
	}
}

// Path returns the backing file.
func (s *CatalogStore) Path() string { return s.file.path }

// Load replaces the in-memory catalog with the file contents. A missing file
// yields an empty catalog. Malformed records fail with ErrCorruptData and
// leave the current state untouched.
func (s *CatalogStore) Load() error {
	var doc catalogFile
	found, err := s.file.load(&doc)
	if err != nil {
		return err
	}
	if !found {
		s.nextID, s.books = 1, make(map[string]*Book)
		return nil
	}
	if doc.Books == nil {
		doc.Books = make(map[string]*Book)
	}

	nextID := max(doc.NextID, 1)
	for key, b := range doc.Books {
		if err := s.validate(key, b); err != nil {
			return err
		}
		if n, ok := numericID(b.ID); ok && n >= nextID {
			nextID = n + 1
		}
	}

	s.nextID, s.books = nextID, doc.Books
	s.logger.Debug("catalog loaded", "path", s.file.path, "books", len(s.books))
	return nil
}

func (s *CatalogStore) validate(key string, b *Book) error {
	corrupt := func(reason string) error {
		return &CorruptDataError{Path: s.file.path, Record: key, Reason: reason}
	}
	switch {
	case b == nil:
		return corrupt("null record")
	case b.ID == "":
		return corrupt("missing id")
	case b.ID != key:
		return corrupt(fmt.Sprintf("id %q does not match key", b.ID))
	case strings.TrimSpace(b.Title) == "":
		return corrupt("missing title")
	case b.Total < 0 || b.Available < 0:
		return corrupt("negative copy count")
	case b.Available > b.Total:
		return corrupt(fmt.Sprintf("available copies %d exceed total %d", b.Available, b.Total))
	}
	return nil
}

// Persist writes the whole catalog back to its file.
func (s *CatalogStore) Persist() error {
	doc := catalogFile{NextID: s.nextID, Books: s.books}
	if err := s.file.persist(&doc); err != nil {
		return err
	}
	s.logger.Debug("catalog persisted", "path", s.file.path, "books", len(s.books))
	return nil
}

// Get returns a copy of the book with the given id.
func (s *CatalogStore) Get(bookID string) (*Book, error) {
	b, ok := s.books[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, bookID)
	}
	c := *b
	return &c, nil
}

// Len returns the number of titles.
func (s *CatalogStore) Len() int { return len(s.books) }

// List returns copies of all books ordered by id.
func (s *CatalogStore) List() []*Book {
	return s.Search(Search{})
}

// Add inserts a new title with all copies available.
func (s *CatalogStore) Add(nb NewBook) (*Book, error) {
	b := &Book{
		ID:       strings.TrimSpace(nb.ID),
		Title:    strings.TrimSpace(nb.Title),
		Author:   strings.TrimSpace(nb.Author),
		Category: strings.TrimSpace(nb.Category),
		Total:    nb.Copies,
	}
	if b.Title == "" || b.Author == "" || b.Category == "" {
		return nil, fmt.Errorf("%w: title, author and category are required", ErrInvalidInput)
	}
	if b.Total < 1 {
		return nil, fmt.Errorf("%w: copies must be at least 1, got %d", ErrInvalidInput, b.Total)
	}

	if b.ID == "" {
		for s.books[strconv.Itoa(s.nextID)] != nil {
			s.nextID++
		}
		b.ID = strconv.Itoa(s.nextID)
	}
	if _, exists := s.books[b.ID]; exists {
		return nil, fmt.Errorf("%w: book %q", ErrDuplicateID, b.ID)
	}
	if n, ok := numericID(b.ID); ok && n >= s.nextID {
		s.nextID = n + 1
	}

	b.Available = b.Total
	s.books[b.ID] = b
	c := *b
	return &c, nil
}

// Edit updates the mutable fields of a book. Changing the total keeps the
// number of copies on loan fixed; a total below that number fails with
// ErrInvalidState.
func (s *CatalogStore) Edit(bookID string, e BookEdit) (*Book, error) {
	b, ok := s.books[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, bookID)
	}

	next := *b
	for _, f := range []struct {
		name string
		val  *string
		dst  *string
	}{
		{"title", e.Title, &next.Title},
		{"author", e.Author, &next.Author},
		{"category", e.Category, &next.Category},
	} {
		if f.val == nil {
			continue
		}
		v := strings.TrimSpace(*f.val)
		if v == "" {
			return nil, fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, f.name)
		}
		*f.dst = v
	}

	if e.Total != nil {
		total := *e.Total
		if total < 0 {
			return nil, fmt.Errorf("%w: total copies cannot be negative", ErrInvalidInput)
		}
		onLoan := b.OnLoan()
		if total < onLoan {
			return nil, fmt.Errorf("%w: book %q has %d copies on loan, cannot reduce total to %d",
				ErrInvalidState, bookID, onLoan, total)
		}
		next.Total, next.Available = total, total-onLoan
	}

	*b = next
	return &next, nil
}

// Remove deletes a book. Books with copies on loan cannot be removed.
func (s *CatalogStore) Remove(bookID string) error {
	b, ok := s.books[bookID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBookNotFound, bookID)
	}
	if b.Available < b.Total {
		return fmt.Errorf("%w: book %q has %d copies on loan", ErrHasActiveLoans, bookID, b.OnLoan())
	}
	delete(s.books, bookID)
	return nil
}

// AdjustAvailability moves the available counter by delta. It is driven by
// circulation only.
func (s *CatalogStore) AdjustAvailability(bookID string, delta int) (*Book, error) {
	b, ok := s.books[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, bookID)
	}
	avail := b.Available + delta
	if avail < 0 || avail > b.Total {
		return nil, fmt.Errorf("%w: book %q available copies would become %d of %d",
			ErrInvalidState, bookID, avail, b.Total)
	}
	b.Available = avail
	c := *b
	return &c, nil
}

// Search returns copies of the books matching q, ordered by id.
// Query matches title or author case-insensitively; Category must match
// exactly, ignoring case.
func (s *CatalogStore) Search(q Search) []*Book {
	query := strings.ToLower(strings.TrimSpace(q.Query))
	category := strings.TrimSpace(q.Category)

	results := make([]*Book, 0, len(s.books))
	for _, b := range s.books {
		if category != "" && !strings.EqualFold(b.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(b.Title), query) &&
			!strings.Contains(strings.ToLower(b.Author), query) {
			continue
		}
		if q.AvailableOnly && b.Available <= 0 {
			continue
		}
		c := *b
		results = append(results, &c)
	}
	slices.SortFunc(results, func(a, b *Book) int { return compareIDs(a.ID, b.ID) })
	return results
}

// Categories returns the distinct categories in sorted order.
func (s *CatalogStore) Categories() []string {
	seen := make(map[string]struct{}, len(s.books))
	for _, b := range s.books {
		seen[b.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

type catalogState struct {
	nextID int
	books  map[string]Book
}

func (s *CatalogStore) snapshot() catalogState {
	st := catalogState{nextID: s.nextID, books: make(map[string]Book, len(s.books))}
	for id, b := range s.books {
		st.books[id] = *b
	}
	return st
}

func (s *CatalogStore) restore(st catalogState) {
	s.nextID = st.nextID
	s.books = make(map[string]*Book, len(st.books))
	for id, b := range st.books {
		s.books[id] = &b
	}
}

func numericID(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// compareIDs orders numeric ids numerically and before any other id.
func compareIDs(a, b string) int {
	na, aok := numericID(a)
	nb, bok := numericID(b)
	switch {
	case aok && bok:
		return cmp.Compare(na, nb)
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a, b)
}
