package library

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// legacyDialect renders queries against databases written by the previous
// SQLite-backed release of the tool.
var legacyDialect = goqu.Dialect("sqlite3")

// LegacyBook is a row of the legacy books table. Each row is a single copy.
type LegacyBook struct {
	ID         int64  `db:"id"`
	Title      string `db:"title"`
	Author     string `db:"author"`
	Available  bool   `db:"available"`
	BorrowerID int64  `db:"borrower_id"`
}

// LegacyMember is a row of the legacy members table.
type LegacyMember struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// LegacySnapshot is everything the importer needs from a legacy database.
type LegacySnapshot struct {
	Books   []LegacyBook
	Members []LegacyMember
}

// ReadLegacyDatabase reads books and members from the SQLite database at
// path. The database is opened read-only.
func ReadLegacyDatabase(ctx context.Context, path string) (*LegacySnapshot, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}

	booksQuery, _, err := legacyDialect.From("books").
		Select("id", "title", "author", "available",
			goqu.COALESCE(goqu.C("borrower_id"), 0).As("borrower_id")).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build books query: %w", err)
	}
	membersQuery, _, err := legacyDialect.From("members").
		Select("id", "name").
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build members query: %w", err)
	}

	var snap LegacySnapshot
	if err := db.SelectContext(ctx, &snap.Members, membersQuery); err != nil {
		return nil, &StorageError{Op: "read members", Path: path, Err: err}
	}
	if err := db.SelectContext(ctx, &snap.Books, booksQuery); err != nil {
		return nil, &StorageError{Op: "read books", Path: path, Err: err}
	}
	return &snap, nil
}

// ImportOptions controls how legacy rows map onto catalog and user records.
type ImportOptions struct {
	Category     string // category given to every imported book
	MemberPrefix string // prepended to numeric member ids, e.g. "m" gives "m7"
}

// ImportReport summarizes an import.
type ImportReport struct {
	Books   int
	Members int
	Loans   int
	Skipped []string
}

// ImportLegacy merges a legacy snapshot into the stores. Books become
// single-copy titles, members become students, and checked-out books are
// lent through circulation so copy counts and borrowed sets agree. Rows that
// collide with existing records or fail validation are skipped and listed in
// the report.
func (lm *LibraryManager) ImportLegacy(snap *LegacySnapshot, opts ImportOptions) (ImportReport, error) {
	var report ImportReport
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = "General"
	}
	memberID := func(id int64) string { return opts.MemberPrefix + strconv.FormatInt(id, 10) }

	imported := make(map[string]bool)
	err := lm.commit(touchCatalog|touchUsers, func() error {
		for _, m := range snap.Members {
			_, err := lm.users.Register(memberID(m.ID), m.Name, "", RoleStudent)
			if err != nil {
				if !errors.Is(err, ErrDuplicateID) && !errors.Is(err, ErrInvalidInput) {
					return err
				}
				report.Skipped = append(report.Skipped, fmt.Sprintf("member %d: %v", m.ID, err))
				continue
			}
			report.Members++
		}
		for _, lb := range snap.Books {
			author := lb.Author
			if strings.TrimSpace(author) == "" {
				author = "Unknown"
			}
			b, err := lm.catalog.Add(NewBook{
				ID:       strconv.FormatInt(lb.ID, 10),
				Title:    lb.Title,
				Author:   author,
				Category: category,
				Copies:   1,
			})
			if err != nil {
				if !errors.Is(err, ErrDuplicateID) && !errors.Is(err, ErrInvalidInput) {
					return err
				}
				report.Skipped = append(report.Skipped, fmt.Sprintf("book %d: %v", lb.ID, err))
				continue
			}
			imported[b.ID] = true
			report.Books++
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, err
	}

	for _, lb := range snap.Books {
		bookID := strconv.FormatInt(lb.ID, 10)
		if lb.Available || lb.BorrowerID == 0 || !imported[bookID] {
			continue
		}
		if _, err := lm.circ.Borrow(memberID(lb.BorrowerID), bookID); err != nil {
			if errors.Is(err, ErrStorage) {
				return report, err
			}
			report.Skipped = append(report.Skipped, fmt.Sprintf("loan of book %d to member %d: %v", lb.ID, lb.BorrowerID, err))
			continue
		}
		report.Loans++
	}

	lm.record("", ActionImport, fmt.Sprintf("Imported %d books, %d members, %d loans", report.Books, report.Members, report.Loans))
	lm.logger.Info("legacy import finished", "books", report.Books, "members", report.Members,
		"loans", report.Loans, "skipped", len(report.Skipped))
	return report, nil
}
