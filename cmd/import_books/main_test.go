package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLegacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	db, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE members (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);
		CREATE TABLE books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			available BOOLEAN NOT NULL DEFAULT 1,
			borrower_id INTEGER
		);
		INSERT INTO members (name) VALUES ('Ada');
		INSERT INTO books (title, author, available, borrower_id) VALUES
			('1984', 'George Orwell', 0, 1),
			('Animal Farm', 'George Orwell', 1, NULL);
	`)
	require.NoError(t, err)
	return path
}

func TestImportBooks(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	src := writeLegacyDB(t)
	dataDir := t.TempDir()

	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--from", src, "--data-dir", dataDir, "--member-prefix", "m"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	assert.Contains(t, out.String(), "Found 2 books and 1 members.")
	assert.Contains(t, out.String(), "Books imported:   2")
	assert.Contains(t, out.String(), "Loans carried:    1")
	assert.Contains(t, out.String(), "Animal Farm")
	assert.FileExists(t, filepath.Join(dataDir, "users.json"))
}

func TestImportBooksMissingDatabase(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--from", filepath.Join(t.TempDir(), "none.db"), "--data-dir", t.TempDir()}, &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Error reading legacy database")
}

func TestImportBooksBadFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"--bogus"}, &out, &errOut))
}
