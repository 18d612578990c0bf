package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

const legacySchema = `
CREATE TABLE members (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE books (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	author      TEXT,
	available   BOOLEAN NOT NULL DEFAULT 1,
	borrower_id INTEGER REFERENCES members(id)
);
INSERT INTO members (name) VALUES ('Ada'), ('Grace');
INSERT INTO books (title, author, available, borrower_id) VALUES
	('Dune', 'Frank Herbert', 1, NULL),
	('Emma', '', 0, 2),
	('', 'Nobody', 1, NULL),
	('Ghost Loan', 'X', 0, 9);
`

func legacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(legacySchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return path
}

func TestReadLegacyDatabase(t *testing.T) {
	snap, err := ReadLegacyDatabase(context.Background(), legacyDB(t))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snap.Members) != 2 || snap.Members[1].Name != "Grace" {
		t.Fatalf("members = %+v", snap.Members)
	}
	if len(snap.Books) != 4 {
		t.Fatalf("read %d books, want 4", len(snap.Books))
	}
	if snap.Books[0].BorrowerID != 0 || !snap.Books[0].Available {
		t.Fatalf("NULL borrower not mapped to 0: %+v", snap.Books[0])
	}
	if snap.Books[1].Available || snap.Books[1].BorrowerID != 2 {
		t.Fatalf("checked-out row = %+v", snap.Books[1])
	}
}

func TestReadLegacyDatabaseMissingFile(t *testing.T) {
	_, err := ReadLegacyDatabase(context.Background(), filepath.Join(t.TempDir(), "none.db"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("got %v, want ErrStorage", err)
	}
}

func TestImportLegacy(t *testing.T) {
	snap, err := ReadLegacyDatabase(context.Background(), legacyDB(t))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Seed = false
	mgr, err := NewLibraryManager(cfg, discard)
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}

	report, err := mgr.ImportLegacy(snap, ImportOptions{Category: "Imported", MemberPrefix: "m"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Members != 2 || report.Books != 3 || report.Loans != 1 {
		t.Fatalf("report = %+v", report)
	}
	// The untitled row and the loan to an unknown member are skipped.
	if len(report.Skipped) != 2 {
		t.Fatalf("skipped = %v", report.Skipped)
	}

	emma, err := mgr.GetBook("2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if emma.Author != "Unknown" || emma.Category != "Imported" || emma.Available != 0 {
		t.Fatalf("imported book = %+v", emma)
	}
	loans, err := mgr.Loans("m2")
	if err != nil {
		t.Fatalf("loans: %v", err)
	}
	if len(loans) != 1 || loans[0].ID != "2" {
		t.Fatalf("m2 loans = %+v", loans)
	}
	ghost, _ := mgr.GetBook("4")
	if ghost.Available != 1 {
		t.Fatalf("loan to unknown member left the copy out: %+v", ghost)
	}
	if err := mgr.CheckConsistency(); err != nil {
		t.Fatalf("inconsistent after import: %v", err)
	}

	// A second run collides with every record.
	again, err := mgr.ImportLegacy(snap, ImportOptions{Category: "Imported", MemberPrefix: "m"})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if again.Books != 0 || again.Members != 0 || again.Loans != 0 {
		t.Fatalf("second import = %+v", again)
	}
}
