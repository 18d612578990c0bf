package library

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestPersistFailureKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	f := newRecordFile(path)
	if err := f.persist(&catalogFile{NextID: 1, Books: map[string]*Book{}}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	f.write = func(string, io.Reader) error { return errors.New("disk full") }
	err = f.persist(&catalogFile{NextID: 9, Books: map[string]*Book{}})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("got %v, want ErrStorage", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Path != path || se.Op != "write" {
		t.Fatalf("unexpected storage error %#v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("file changed after failed write:\n%s", after)
	}
}

func TestPersistWritesReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	f := newRecordFile(path)
	if err := f.persist(&userFile{Users: map[string]*User{}}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePerm {
		t.Fatalf("mode = %o, want %o", perm, filePerm)
	}
	data, _ := os.ReadFile(path)
	if !bytes.HasSuffix(data, []byte("}\n")) {
		t.Fatalf("missing trailing newline: %q", data)
	}

	var doc userFile
	found, err := f.load(&doc)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	f := newRecordFile(filepath.Join(t.TempDir(), "nope.json"))
	var doc catalogFile
	found, err := f.load(&doc)
	if err != nil || found {
		t.Fatalf("found=%v err=%v, want false <nil>", found, err)
	}
	exists, err := f.exists()
	if err != nil || exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}
}

func TestLoadUnreadablePath(t *testing.T) {
	// A directory in place of the file cannot be read.
	dir := t.TempDir()
	f := newRecordFile(dir)
	var doc catalogFile
	if _, err := f.load(&doc); !errors.Is(err, ErrStorage) {
		t.Fatalf("got %v, want ErrStorage", err)
	}
}
