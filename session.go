package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"campus-library/library"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// prompter reads one line of operator input per call. It returns io.EOF
// when the input is exhausted or the operator aborts.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// newPrompter uses line editing when both ends are a terminal and falls
// back to plain line scanning otherwise.
func newPrompter(in io.Reader, out io.Writer) prompter {
	fin, inOK := in.(*os.File)
	fout, outOK := out.(*os.File)
	if inOK && outOK && term.IsTerminal(int(fin.Fd())) && term.IsTerminal(int(fout.Fd())) {
		return newLinePrompter()
	}
	return &scanPrompter{sc: bufio.NewScanner(in), out: out}
}

type scanPrompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (p *scanPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.sc.Text(), nil
}

func (p *scanPrompter) AppendHistory(string) {}

func (p *scanPrompter) Close() error { return nil }

type linePrompter struct {
	state *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".library_history")
}

func newLinePrompter() *linePrompter {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	st.SetCompleter(completeCommand)
	if f, err := os.Open(historyFile()); err == nil {
		st.ReadHistory(f)
		f.Close()
	}
	return &linePrompter{state: st}
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (p *linePrompter) AppendHistory(line string) { p.state.AppendHistory(line) }

func (p *linePrompter) Close() error {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			p.state.WriteHistory(f)
			f.Close()
		}
	}
	return p.state.Close()
}

var (
	generalCommands = []string{
		"list books", "search book", "borrow", "return", "my books",
		"favorites", "add favorite", "remove favorite",
	}
	adminCommands = []string{
		"add book", "edit book", "remove book", "list users", "remove user",
		"deactivate user", "activate user", "stats", "logs",
	}
)

func completeCommand(line string) []string {
	var out []string
	for _, group := range [][]string{generalCommands, adminCommands, {"help", "exit"}} {
		for _, c := range group {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
	}
	return out
}

// session is one logged-in operator at the menu.
type session struct {
	mgr  *library.LibraryManager
	p    prompter
	out  io.Writer
	user *library.User
}

// ask prompts for a single field. ok is false once input is exhausted.
func (s *session) ask(label string) (string, bool) {
	line, err := s.p.Prompt(label)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (s *session) fail(err error) {
	fmt.Fprintf(s.out, "Error: %v\n", err)
}

// runSession logs a user in and serves menu commands until exit or end of
// input. Operation errors are printed and the loop continues.
func runSession(a *app, userID string) error {
	p := newPrompter(a.in, a.out)
	defer p.Close()
	s := &session{mgr: a.mgr, p: p, out: a.out}

	fmt.Fprintln(s.out, "Welcome to the Campus Library!")
	if userID != "" {
		u, err := s.mgr.Login(userID)
		if err != nil {
			return err
		}
		s.user = u
	} else if !s.login() {
		fmt.Fprintln(s.out, "Goodbye!")
		return nil
	}

	fmt.Fprintf(s.out, "Logged in as %s (%s).\n", s.user.Name, s.user.Role)
	printMenu(s.out, s.user.IsAdmin())

	for {
		line, err := s.p.Prompt("\n> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		cmd := strings.ToLower(strings.Join(strings.Fields(line), " "))
		if cmd == "" {
			continue
		}
		s.p.AppendHistory(cmd)

		switch cmd {
		case "list books":
			handleListBooks(s)
		case "search book":
			handleSearchBooks(s)
		case "borrow":
			handleBorrow(s)
		case "return":
			handleReturn(s)
		case "my books":
			handleMyBooks(s)
		case "favorites":
			handleFavorites(s)
		case "add favorite":
			handleAddFavorite(s)
		case "remove favorite":
			handleRemoveFavorite(s)
		case "add book":
			handleAddBook(s)
		case "edit book":
			handleEditBook(s)
		case "remove book":
			handleRemoveBook(s)
		case "list users":
			handleListUsers(s)
		case "remove user":
			handleRemoveUser(s)
		case "deactivate user":
			handleSetStatus(s, library.StatusInactive)
		case "activate user":
			handleSetStatus(s, library.StatusActive)
		case "stats":
			handleStats(s)
		case "logs":
			handleLogs(s)
		case "help":
			printMenu(s.out, s.user.IsAdmin())
		case "exit", "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown command. Type 'help' to see the available commands.")
		}
	}
}

// login prompts until a user logs in. It returns false when input runs out.
func (s *session) login() bool {
	for {
		id, ok := s.ask("User ID (or 'register'): ")
		if !ok {
			return false
		}
		switch id {
		case "":
			continue
		case "register":
			if id, ok = handleRegister(s); !ok {
				return false
			}
			if id == "" {
				continue
			}
		}
		u, err := s.mgr.Login(id)
		if err != nil {
			s.fail(err)
			continue
		}
		s.user = u
		return true
	}
}

func printMenu(w io.Writer, admin bool) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintf(w, "  Books: %s\n", strings.Join(generalCommands[:2], ", "))
	fmt.Fprintf(w, "  Circulation: %s\n", strings.Join(generalCommands[2:5], ", "))
	fmt.Fprintf(w, "  Favorites: %s\n", strings.Join(generalCommands[5:], ", "))
	if admin {
		fmt.Fprintf(w, "  Admin: %s\n", strings.Join(adminCommands, ", "))
	}
	fmt.Fprintln(w, "  System: help, exit")
}

// handleRegister creates a student account. It returns the new id, or ""
// when registration failed.
func handleRegister(s *session) (string, bool) {
	id, ok := s.ask("New user ID: ")
	if !ok {
		return "", false
	}
	name, ok := s.ask("Name: ")
	if !ok {
		return "", false
	}
	email, ok := s.ask("Email: ")
	if !ok {
		return "", false
	}
	u, err := s.mgr.Register(id, name, email)
	if err != nil {
		s.fail(err)
		return "", true
	}
	fmt.Fprintf(s.out, "Registered student '%s' with ID %s\n", u.Name, u.ID)
	return u.ID, true
}

func handleListBooks(s *session) {
	books, err := s.mgr.ListBooks()
	if err != nil {
		s.fail(err)
		return
	}
	printBooks(s.out, books)
}

func handleSearchBooks(s *session) {
	query, ok := s.ask("Query (title or author, Enter for any): ")
	if !ok {
		return
	}
	categories, err := s.mgr.Categories()
	if err != nil {
		s.fail(err)
		return
	}
	category, ok := s.ask(fmt.Sprintf("Category [%s] (Enter for any): ", strings.Join(categories, ", ")))
	if !ok {
		return
	}
	avail, ok := s.ask("Only available books? (y/N): ")
	if !ok {
		return
	}

	books, err := s.mgr.SearchBooks(library.Search{
		Query:         query,
		Category:      category,
		AvailableOnly: strings.EqualFold(avail, "y") || strings.EqualFold(avail, "yes"),
	})
	if err != nil {
		s.fail(err)
		return
	}
	if len(books) > 0 {
		fmt.Fprintf(s.out, "Found %d book(s):\n", len(books))
	}
	printBooks(s.out, books)
}

func handleBorrow(s *session) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	b, err := s.mgr.Borrow(s.user.ID, bookID)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Book '%s' checked out to %s\n", b.Title, s.user.Name)
}

func handleReturn(s *session) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	b, err := s.mgr.Return(s.user.ID, bookID)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Book '%s' returned. Thank you!\n", b.Title)
}

func handleMyBooks(s *session) {
	books, err := s.mgr.Loans(s.user.ID)
	if err != nil {
		s.fail(err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "You have no borrowed books.")
		return
	}
	printBooks(s.out, books)
}

func handleFavorites(s *session) {
	books, err := s.mgr.Favorites(s.user.ID)
	if err != nil {
		s.fail(err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "You have no favorite books.")
		return
	}
	printBooks(s.out, books)
}

func handleAddFavorite(s *session) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.AddFavorite(s.user.ID, bookID); err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Book %s added to favorites\n", bookID)
}

func handleRemoveFavorite(s *session) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveFavorite(s.user.ID, bookID); err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Book %s removed from favorites\n", bookID)
}

func handleAddBook(s *session) {
	var nb library.NewBook
	var ok bool
	if nb.Title, ok = s.ask("Title: "); !ok {
		return
	}
	if nb.Author, ok = s.ask("Author: "); !ok {
		return
	}
	if nb.Category, ok = s.ask("Category: "); !ok {
		return
	}
	copiesStr, ok := s.ask("Copies: ")
	if !ok {
		return
	}
	copies, err := strconv.Atoi(copiesStr)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid number of copies: %s\n", copiesStr)
		return
	}
	nb.Copies = copies

	b, err := s.mgr.AddBook(s.user.ID, nb)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Added book ID %s: '%s' by %s (%d copies)\n", b.ID, b.Title, b.Author, b.Total)
}

func handleEditBook(s *session) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	current, err := s.mgr.GetBook(bookID)
	if err != nil {
		s.fail(err)
		return
	}

	// Blank answers keep the current value.
	var e library.BookEdit
	for _, f := range []struct {
		label string
		cur   string
		dst   **string
	}{
		{"Title", current.Title, &e.Title},
		{"Author", current.Author, &e.Author},
		{"Category", current.Category, &e.Category},
	} {
		v, ok := s.ask(fmt.Sprintf("%s [%s]: ", f.label, f.cur))
		if !ok {
			return
		}
		if v != "" {
			*f.dst = &v
		}
	}
	totalStr, ok := s.ask(fmt.Sprintf("Total copies [%d]: ", current.Total))
	if !ok {
		return
	}
	if totalStr != "" {
		total, err := strconv.Atoi(totalStr)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid number of copies: %s\n", totalStr)
			return
		}
		e.Total = &total
	}

	b, err := s.mgr.EditBook(s.user.ID, bookID, e)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Updated book ID %s: '%s' by %s (%d/%d available)\n", b.ID, b.Title, b.Author, b.Available, b.Total)
}

func handleRemoveBook(s *session) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveBook(s.user.ID, bookID); err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Removed book ID %s\n", bookID)
}

func handleListUsers(s *session) {
	users, err := s.mgr.ListUsers(s.user.ID)
	if err != nil {
		s.fail(err)
		return
	}
	printUsers(s.out, users)
}

func handleRemoveUser(s *session) {
	userID, ok := s.ask("User ID: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveUser(s.user.ID, userID); err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Removed user %s\n", userID)
}

func handleSetStatus(s *session, status library.Status) {
	userID, ok := s.ask("User ID: ")
	if !ok {
		return
	}
	u, err := s.mgr.SetUserStatus(s.user.ID, userID, status)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "User %s is now %s\n", u.ID, u.Status)
}

func handleStats(s *session) {
	st, err := s.mgr.Stats(s.user.ID)
	if err != nil {
		s.fail(err)
		return
	}
	printStats(s.out, st)
}

func handleLogs(s *session) {
	userID, ok := s.ask("User ID (Enter for everyone): ")
	if !ok {
		return
	}
	entries, err := s.mgr.Activity(s.user.ID, userID)
	if err != nil {
		s.fail(err)
		return
	}
	const shown = 20
	if len(entries) > shown {
		entries = entries[len(entries)-shown:]
	}
	printActivity(s.out, entries)
}
