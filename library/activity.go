package library

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the activity log.
const (
	ActionRegister       = "REGISTER"
	ActionLogin          = "LOGIN"
	ActionAddBook        = "ADD_BOOK"
	ActionEditBook       = "EDIT_BOOK"
	ActionRemoveBook     = "REMOVE_BOOK"
	ActionBorrow         = "BORROW"
	ActionReturn         = "RETURN"
	ActionAddFavorite    = "ADD_FAVORITE"
	ActionRemoveFavorite = "REMOVE_FAVORITE"
	ActionRemoveUser     = "REMOVE_USER"
	ActionDeactivateUser = "DEACTIVATE_USER"
	ActionActivateUser   = "ACTIVATE_USER"
	ActionImport         = "IMPORT"
)

// ActivityLog is a bounded, file-backed audit trail.
type ActivityLog struct {
	file   *recordFile
	logger *slog.Logger
	limit  int
	now    func() time.Time

	entries []ActivityEntry
}

// NewActivityLog returns a log backed by path that keeps at most limit
// entries; zero keeps everything.
func NewActivityLog(path string, limit int, logger *slog.Logger) *ActivityLog {
	return &ActivityLog{file: newRecordFile(path), logger: logger, limit: limit, now: time.Now}
}

// Load reads the log file. A missing file yields an empty log.
func (l *ActivityLog) Load() error {
	var doc activityFile
	found, err := l.file.load(&doc)
	if err != nil {
		return err
	}
	if !found {
		l.entries = nil
		return nil
	}
	for i, e := range doc.Entries {
		if e.ID == "" || e.Action == "" || e.Timestamp.IsZero() {
			return &CorruptDataError{Path: l.file.path, Record: fmt.Sprintf("entry %d", i), Reason: "missing id, action or timestamp"}
		}
	}
	l.entries = doc.Entries
	return nil
}

// Record appends an entry and persists the log. The oldest entries are
// dropped once the limit is exceeded.
func (l *ActivityLog) Record(userID, action, details string) error {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	l.entries = append(l.entries, ActivityEntry{
		ID:        id.String(),
		Timestamp: l.now().UTC(),
		UserID:    userID,
		Action:    action,
		Details:   details,
	})
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = append([]ActivityEntry(nil), l.entries[len(l.entries)-l.limit:]...)
	}
	return l.file.persist(&activityFile{Entries: l.entries})
}

// Entries returns the log oldest first, restricted to userID when non-empty.
func (l *ActivityLog) Entries(userID string) []ActivityEntry {
	out := make([]ActivityEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if userID == "" || e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
