package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func script(lines ...string) string { return strings.Join(lines, "\n") + "\n" }

func TestSessionStudentFlow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("register", "s1", "--name", "Sam")

	out, errOut, code := c.runWithInput(script(
		"s1",
		"borrow", "1",
		"borrow", "1",
		"my books",
		"add favorite", "3",
		"favorites",
		"return", "1",
		"stats",
		"bogus",
		"exit",
	), "session")
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "Logged in as Sam (student)")
	assert.NotContains(t, out, "Admin:")
	assert.Contains(t, out, "Book 'Python Programming' checked out to Sam")
	assert.Contains(t, out, "Error: ")
	assert.Contains(t, out, "already borrowed")
	assert.Contains(t, out, "Book 3 added to favorites")
	assert.Contains(t, out, "Web Development")
	assert.Contains(t, out, "returned. Thank you!")
	assert.Contains(t, out, "permission denied")
	assert.Contains(t, out, "Unknown command.")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"), out)

	assert.Contains(t, c.mustRun("check"), "OK")
}

func TestSessionRegisterThenLogin(t *testing.T) {
	c := newCLI(t)
	out, errOut, code := c.runWithInput(script(
		"ghost",
		"register", "newbie", "New Bie", "nb@example.com",
		"list books",
	))
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "Error: user not found")
	assert.Contains(t, out, "Registered student 'New Bie' with ID newbie")
	assert.Contains(t, out, "Logged in as New Bie (student)")
	assert.Contains(t, out, "Python Programming")
	// End of input ends the session cleanly.
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"), out)
}

func TestSessionAdminFlow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("register", "s1")

	out, errOut, code := c.runWithInput(script(
		"add book", "The Go Programming Language", "Donovan", "Programming", "2",
		"edit book", "6", "", "", "", "3",
		"add book", "Broken", "Nobody", "Misc", "many",
		"deactivate user", "s1",
		"list users",
		"activate user", "s1",
		"remove book", "6",
		"deactivate user", "admin",
		"logs", "",
		"exit",
	), "session", "--user", "admin")
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "Admin: add book")
	assert.Contains(t, out, "Added book ID 6")
	assert.Contains(t, out, "(3/3 available)")
	assert.Contains(t, out, "Invalid number of copies: many")
	assert.Contains(t, out, "User s1 is now inactive")
	assert.Contains(t, out, "User s1 is now active")
	assert.Contains(t, out, "Removed book ID 6")
	assert.Contains(t, out, "last active admin")
	assert.Contains(t, out, "REMOVE_BOOK")
}

func TestSessionUnknownUserFlag(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.runWithInput("", "session", "--user", "nobody")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "user not found")
}

func TestSessionInactiveUserCannotLogIn(t *testing.T) {
	c := newCLI(t)
	c.mustRun("register", "s1")
	c.mustRun("deactivate-user", "s1", "--as", "admin")

	out, _, code := c.runWithInput(script("s1"))
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "account is inactive")
	assert.NotContains(t, out, "Logged in")
}
