package library

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/natefinch/atomic"
)

const filePerm = 0o644

// recordJSON is the codec for all record files. Keys are sorted so a
// persisted file only changes where its records changed.
var recordJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// recordFile is a JSON document that is always read and written whole.
type recordFile struct {
	path string

	// write replaces the file contents. It must never leave a truncated file
	// behind; the default writes to a temp file and renames it into place.
	write func(path string, r io.Reader) error
}

func newRecordFile(path string) *recordFile {
	return &recordFile{path: path, write: atomic.WriteFile}
}

// exists reports whether the file is present on disk.
func (f *recordFile) exists() (bool, error) {
	_, err := os.Stat(f.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &StorageError{Op: "stat", Path: f.path, Err: err}
}

// load decodes the file into v. A missing file returns found=false and
// leaves v untouched.
func (f *recordFile) load(v any) (found bool, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &StorageError{Op: "read", Path: f.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return true, &CorruptDataError{Path: f.path, Reason: "file is empty"}
	}
	if err := recordJSON.Unmarshal(data, v); err != nil {
		return true, &CorruptDataError{Path: f.path, Reason: err.Error()}
	}
	return true, nil
}

// persist encodes v and atomically replaces the file with it.
func (f *recordFile) persist(v any) error {
	data, err := recordJSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: f.path, Err: err}
	}
	data = append(data, '\n')

	if err := f.write(f.path, bytes.NewReader(data)); err != nil {
		return &StorageError{Op: "write", Path: f.path, Err: err}
	}
	// atomic.WriteFile creates new files from a 0600 temp file.
	if err := os.Chmod(f.path, filePerm); err != nil {
		return &StorageError{Op: "chmod", Path: f.path, Err: err}
	}
	return nil
}
