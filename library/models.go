package library

import (
	"slices"
	"time"
)

// Role gates which operations a user may perform.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) valid() bool { return r == RoleStudent || r == RoleAdmin }

// Status marks whether an account may log in and borrow.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) valid() bool { return s == StatusActive || s == StatusInactive }

// Book represents a catalog title and its copy counters.
// Invariant: 0 <= Available <= Total.
type Book struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Total     int    `json:"total_copies"`
	Available int    `json:"available_copies"`
}

// OnLoan is the number of copies currently lent out.
func (b *Book) OnLoan() int { return b.Total - b.Available }

// User represents a registered library user.
// Borrowed and Favorites are sets kept in sorted order.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	Borrowed     []string  `json:"borrowed_books"`
	Favorites    []string  `json:"favorites"`
	RegisteredAt time.Time `json:"registered_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// HasLoan reports whether bookID is in the user's borrowed set.
func (u *User) HasLoan(bookID string) bool {
	_, found := slices.BinarySearch(u.Borrowed, bookID)
	return found
}

// HasFavorite reports whether bookID is in the user's favorites.
func (u *User) HasFavorite(bookID string) bool {
	_, found := slices.BinarySearch(u.Favorites, bookID)
	return found
}

func (u *User) clone() *User {
	c := *u
	c.Borrowed = slices.Clone(u.Borrowed)
	c.Favorites = slices.Clone(u.Favorites)
	return &c
}

// ActivityEntry is one line of the audit trail.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// NewBook carries the fields an admin supplies when adding a title.
// An empty ID asks the catalog to assign the next numeric id.
type NewBook struct {
	ID       string
	Title    string
	Author   string
	Category string
	Copies   int
}

// BookEdit lists the mutable book fields; nil means unchanged.
type BookEdit struct {
	Title    *string
	Author   *string
	Category *string
	Total    *int
}

// Search filters the catalog. Zero values match everything.
type Search struct {
	Query         string
	Category      string
	AvailableOnly bool
}

// Stats summarizes the library for admins.
type Stats struct {
	Titles          int
	TotalCopies     int
	AvailableCopies int
	CopiesOnLoan    int
	TitlesAvailable int
	Students        int
	ActiveBorrowers int
}

// catalogFile is the persisted form of the catalog.
type catalogFile struct {
	NextID int              `json:"next_id"`
	Books  map[string]*Book `json:"books"`
}

// userFile is the persisted form of the user store.
type userFile struct {
	Users map[string]*User `json:"users"`
}

// activityFile is the persisted form of the activity log.
type activityFile struct {
	Entries []ActivityEntry `json:"entries"`
}
