package main

import (
	"fmt"
	"io"
	"strings"

	"campus-library/internal/cliutil"
	"campus-library/library"
)

const timeLayout = "2006-01-02 15:04"

func printBooks(w io.Writer, books []*library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}

	fmt.Fprintf(w, "%-6s %-30s %-22s %-18s %s\n", "ID", "Title", "Author", "Category", "Available")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, b := range books {
		fmt.Fprintf(w, "%-6s %-30s %-22s %-18s %d/%d\n",
			cliutil.Truncate(b.ID, 6),
			cliutil.Truncate(b.Title, 30),
			cliutil.Truncate(b.Author, 22),
			cliutil.Truncate(b.Category, 18),
			b.Available, b.Total)
	}
}

func printUsers(w io.Writer, users []*library.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users registered.")
		return
	}

	fmt.Fprintf(w, "%-12s %-24s %-26s %-8s %-9s %s\n", "ID", "Name", "Email", "Role", "Status", "Borrowed")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, u := range users {
		fmt.Fprintf(w, "%-12s %-24s %-26s %-8s %-9s %d\n",
			cliutil.Truncate(u.ID, 12),
			cliutil.Truncate(u.Name, 24),
			cliutil.Truncate(u.Email, 26),
			u.Role,
			u.Status,
			len(u.Borrowed))
	}
}

func printStats(w io.Writer, st library.Stats) {
	fmt.Fprintln(w, "Library statistics")
	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintf(w, "%-20s %d\n", "Titles:", st.Titles)
	fmt.Fprintf(w, "%-20s %d\n", "Total copies:", st.TotalCopies)
	fmt.Fprintf(w, "%-20s %d\n", "Available copies:", st.AvailableCopies)
	fmt.Fprintf(w, "%-20s %d\n", "Copies on loan:", st.CopiesOnLoan)
	fmt.Fprintf(w, "%-20s %d\n", "Titles available:", st.TitlesAvailable)
	fmt.Fprintf(w, "%-20s %d\n", "Students:", st.Students)
	fmt.Fprintf(w, "%-20s %d\n", "Active borrowers:", st.ActiveBorrowers)
}

func printActivity(w io.Writer, entries []library.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity recorded.")
		return
	}

	fmt.Fprintf(w, "%-17s %-12s %-16s %s\n", "Time", "User", "Action", "Details")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, e := range entries {
		user := e.UserID
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "%-17s %-12s %-16s %s\n",
			e.Timestamp.Local().Format(timeLayout),
			cliutil.Truncate(user, 12),
			e.Action,
			e.Details)
	}
}
