package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRegisterUser(t *testing.T) {
	_, users := newStores(t, 0)
	users.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 15, 500, time.UTC) }

	u, err := users.Register(" s1 ", "", "s1@example.com", RoleStudent)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	want := &User{
		ID:           "s1",
		Name:         "s1",
		Email:        "s1@example.com",
		Role:         RoleStudent,
		Status:       StatusActive,
		Borrowed:     []string{},
		Favorites:    []string{},
		RegisteredAt: time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC),
	}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	if _, err := users.Register("s1", "Other", "", RoleStudent); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := users.Register("has space", "", "", RoleStudent); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("space in id: got %v", err)
	}
	if _, err := users.Register("x", "", "", Role("librarian")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad role: got %v", err)
	}
}

func TestUserLoans(t *testing.T) {
	_, users := newStores(t, 0)
	addUser(t, users, "U1")

	for _, id := range []string{"B3", "B1", "B2"} {
		if err := users.AddLoan("U1", id); err != nil {
			t.Fatalf("add loan %s: %v", id, err)
		}
	}
	if err := users.AddLoan("U1", "B1"); !errors.Is(err, ErrAlreadyBorrowed) {
		t.Fatalf("duplicate loan: got %v", err)
	}
	u, _ := users.Get("U1")
	if diff := cmp.Diff([]string{"B1", "B2", "B3"}, u.Borrowed); diff != "" {
		t.Fatalf("borrowed (-want +got):\n%s", diff)
	}

	if err := users.RemoveLoan("U1", "B2"); err != nil {
		t.Fatalf("remove loan: %v", err)
	}
	if err := users.RemoveLoan("U1", "B2"); !errors.Is(err, ErrNotBorrowed) {
		t.Fatalf("remove twice: got %v", err)
	}
	if err := users.AddLoan("ghost", "B1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestRestoreLoanSkipsLimit(t *testing.T) {
	_, users := newStores(t, 1)
	addUser(t, users, "U1")
	if err := users.AddLoan("U1", "B1"); err != nil {
		t.Fatalf("add loan: %v", err)
	}
	if err := users.AddLoan("U1", "B2"); !errors.Is(err, ErrLoanLimit) {
		t.Fatalf("over limit: got %v", err)
	}
	if err := users.restoreLoan("U1", "B2"); err != nil {
		t.Fatalf("restore loan: %v", err)
	}
	u, _ := users.Get("U1")
	if diff := cmp.Diff([]string{"B1", "B2"}, u.Borrowed); diff != "" {
		t.Fatalf("borrowed (-want +got):\n%s", diff)
	}
	if err := users.restoreLoan("ghost", "B1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestUserGetReturnsCopy(t *testing.T) {
	_, users := newStores(t, 0)
	addUser(t, users, "U1")
	if err := users.AddLoan("U1", "B1"); err != nil {
		t.Fatalf("add loan: %v", err)
	}

	u, _ := users.Get("U1")
	u.Borrowed[0] = "tampered"
	u.Role = RoleAdmin

	again, _ := users.Get("U1")
	if again.Borrowed[0] != "B1" || again.Role != RoleStudent {
		t.Fatalf("store mutated through returned copy: %+v", again)
	}
}

func TestRemoveUserBlockedByLoans(t *testing.T) {
	_, users := newStores(t, 0)
	addUser(t, users, "U1")
	if err := users.AddLoan("U1", "B1"); err != nil {
		t.Fatalf("add loan: %v", err)
	}

	if err := users.Remove("U1"); !errors.Is(err, ErrHasActiveLoans) {
		t.Fatalf("got %v, want ErrHasActiveLoans", err)
	}
	if err := users.RemoveLoan("U1", "B1"); err != nil {
		t.Fatalf("remove loan: %v", err)
	}
	if err := users.Remove("U1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := users.Remove("U1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove twice: got %v", err)
	}
}

func TestUserFavorites(t *testing.T) {
	_, users := newStores(t, 0)
	addUser(t, users, "U1")
	addUser(t, users, "U2")

	if err := users.AddFavorite("U1", "B1"); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if err := users.AddFavorite("U1", "B1"); !errors.Is(err, ErrAlreadyFavorite) {
		t.Fatalf("twice: got %v", err)
	}
	if err := users.AddFavorite("U2", "B1"); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if n := users.forgetFavorite("B1"); n != 2 {
		t.Fatalf("forgot in %d users, want 2", n)
	}
	if err := users.RemoveFavorite("U1", "B1"); !errors.Is(err, ErrNotFavorite) {
		t.Fatalf("after forget: got %v", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	_, users := newStores(t, 0)
	addUser(t, users, "U1")
	if _, err := users.Register("root", "Root", "root@example.com", RoleAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := users.AddLoan("U1", "B2"); err != nil {
		t.Fatalf("add loan: %v", err)
	}
	if err := users.AddFavorite("U1", "B9"); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if _, err := users.SetStatus("U1", StatusInactive); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := users.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded := NewUserStore(users.Path(), 0, discard)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(users.List(), loaded.List()); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestUserLoadRejectsCorruptData(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown role", `{"users": {"u": {"id": "u", "role": "librarian", "status": "active", "borrowed_books": [], "favorites": []}}}`},
		{"missing status", `{"users": {"u": {"id": "u", "role": "student", "borrowed_books": [], "favorites": []}}}`},
		{"duplicate loan", `{"users": {"u": {"id": "u", "role": "student", "status": "active", "borrowed_books": ["1", "1"], "favorites": []}}}`},
		{"key mismatch", `{"users": {"u": {"id": "v", "role": "student", "status": "active"}}}`},
		{"borrowed not a list", `{"users": {"u": {"id": "u", "role": "student", "status": "active", "borrowed_books": "1"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "users.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			users := NewUserStore(path, 0, discard)
			if err := users.Load(); !errors.Is(err, ErrCorruptData) {
				t.Fatalf("got %v, want ErrCorruptData", err)
			}
		})
	}
}
