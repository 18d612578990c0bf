package main

import (
	"fmt"
	"strings"

	"campus-library/library"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

func newSessionCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start an interactive menu session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSession(a, userID)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Log in as `id` instead of prompting")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register ID",
		Short: "Register a student account",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			u, err := a.mgr.Register(args[0], name, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered student '%s' with ID %s\n", u.Name, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the id)")
	cmd.Flags().StringVar(&email, "email", "", "Contact email")
	return cmd
}

func newBooksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			books, err := a.mgr.ListBooks()
			if err != nil {
				return err
			}
			printBooks(a.out, books)
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var q library.Search
	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search titles and authors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Query = args[0]
			}
			books, err := a.mgr.SearchBooks(q)
			if err != nil {
				return err
			}
			if len(books) > 0 {
				fmt.Fprintf(a.out, "Found %d book(s):\n", len(books))
			}
			printBooks(a.out, books)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "Only books in `category`")
	cmd.Flags().BoolVar(&q.AvailableOnly, "available", false, "Only books with a copy on the shelf")
	return cmd
}

func newBorrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow USER BOOK",
		Short: "Lend a copy of a book to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := a.mgr.Borrow(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Book '%s' checked out to %s (%d/%d available)\n", b.Title, args[0], b.Available, b.Total)
			return nil
		},
	}
}

func newReturnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return USER BOOK",
		Short: "Take a borrowed copy back",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := a.mgr.Return(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Book '%s' returned by %s (%d/%d available)\n", b.Title, args[0], b.Available, b.Total)
			return nil
		},
	}
}

func newLoansCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "loans USER",
		Short: "List the books a user holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			books, err := a.mgr.Loans(args[0])
			if err != nil {
				return err
			}
			printBooks(a.out, books)
			return nil
		},
	}
}

func newFavoritesCmd(a *app) *cobra.Command {
	var add, remove string
	cmd := &cobra.Command{
		Use:   "favorites USER",
		Short: "List or change a user's favorite books",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			user := args[0]
			if add != "" {
				if err := a.mgr.AddFavorite(user, add); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Added book %s to favorites\n", add)
			}
			if remove != "" {
				if err := a.mgr.RemoveFavorite(user, remove); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed book %s from favorites\n", remove)
			}
			if add != "" || remove != "" {
				return nil
			}
			books, err := a.mgr.Favorites(user)
			if err != nil {
				return err
			}
			printBooks(a.out, books)
			return nil
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "Add `book` to favorites")
	cmd.Flags().StringVar(&remove, "remove", "", "Remove `book` from favorites")
	return cmd
}

// addActorFlag registers the --as flag admin commands authenticate with.
func addActorFlag(fs *flag.FlagSet, actor *string) {
	fs.StringVar(actor, "as", "", "Act as admin `id`")
}

func newAddBookCmd(a *app) *cobra.Command {
	var (
		actor string
		nb    library.NewBook
	)
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a title to the catalog (admin)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			b, err := a.mgr.AddBook(actor, nb)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added book ID %s: '%s' by %s (%d copies)\n", b.ID, b.Title, b.Author, b.Total)
			return nil
		},
	}
	fs := cmd.Flags()
	addActorFlag(fs, &actor)
	fs.StringVar(&nb.ID, "id", "", "Book id (assigned when empty)")
	fs.StringVar(&nb.Title, "title", "", "Title")
	fs.StringVar(&nb.Author, "author", "", "Author")
	fs.StringVar(&nb.Category, "category", "", "Category")
	fs.IntVar(&nb.Copies, "copies", 1, "Number of copies")
	return cmd
}

func newEditBookCmd(a *app) *cobra.Command {
	var (
		actor                   string
		title, author, category string
		copies                  int
	)
	cmd := &cobra.Command{
		Use:   "edit-book BOOK",
		Short: "Change a title's details or copy count (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var e library.BookEdit
			fs := cmd.Flags()
			if fs.Changed("title") {
				e.Title = &title
			}
			if fs.Changed("author") {
				e.Author = &author
			}
			if fs.Changed("category") {
				e.Category = &category
			}
			if fs.Changed("copies") {
				e.Total = &copies
			}
			b, err := a.mgr.EditBook(actor, args[0], e)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated book ID %s: '%s' by %s (%d/%d available)\n", b.ID, b.Title, b.Author, b.Available, b.Total)
			return nil
		},
	}
	fs := cmd.Flags()
	addActorFlag(fs, &actor)
	fs.StringVar(&title, "title", "", "New title")
	fs.StringVar(&author, "author", "", "New author")
	fs.StringVar(&category, "category", "", "New category")
	fs.IntVar(&copies, "copies", 0, "New total number of copies")
	return cmd
}

func newRemoveBookCmd(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "remove-book BOOK",
		Short: "Delete a title with no copies on loan (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.mgr.RemoveBook(actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed book ID %s\n", args[0])
			return nil
		},
	}
	addActorFlag(cmd.Flags(), &actor)
	return cmd
}

func newUsersCmd(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user accounts (admin)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			users, err := a.mgr.ListUsers(actor)
			if err != nil {
				return err
			}
			printUsers(a.out, users)
			return nil
		},
	}
	addActorFlag(cmd.Flags(), &actor)
	return cmd
}

func newRemoveUserCmd(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "remove-user ID",
		Short: "Delete an account with no active loans (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.mgr.RemoveUser(actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed user %s\n", args[0])
			return nil
		},
	}
	addActorFlag(cmd.Flags(), &actor)
	return cmd
}

func newUserStatusCmd(a *app, use string, status library.Status) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   use + " ID",
		Short: fmt.Sprintf("Mark an account %s (admin)", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			u, err := a.mgr.SetUserStatus(actor, args[0], status)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "User %s is now %s\n", u.ID, u.Status)
			return nil
		},
	}
	addActorFlag(cmd.Flags(), &actor)
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and user statistics (admin)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			st, err := a.mgr.Stats(actor)
			if err != nil {
				return err
			}
			printStats(a.out, st)
			return nil
		},
	}
	addActorFlag(cmd.Flags(), &actor)
	return cmd
}

func newLogsCmd(a *app) *cobra.Command {
	var actor, user string
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the activity log (admin)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			entries, err := a.mgr.Activity(actor, user)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			printActivity(a.out, entries)
			return nil
		},
	}
	addActorFlag(cmd.Flags(), &actor)
	cmd.Flags().StringVar(&user, "user", "", "Only entries for user `id`")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show the last `n` entries (0 = all)")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that copy counts agree with borrowed sets",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.mgr.CheckConsistency(); err != nil {
				for _, line := range strings.Split(err.Error(), "\n") {
					fmt.Fprintln(a.out, line)
				}
				return fmt.Errorf("%w: data files disagree", library.ErrInvalidState)
			}
			fmt.Fprintln(a.out, "OK: catalog and users agree")
			return nil
		},
	}
}

func newPrintConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print-config",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd.Flags())
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := library.FormatConfig(a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, out)
			if a.cfg.Sources.Global != "" {
				fmt.Fprintf(a.out, "# global: %s\n", a.cfg.Sources.Global)
			}
			if a.cfg.Sources.Project != "" {
				fmt.Fprintf(a.out, "# project: %s\n", a.cfg.Sources.Project)
			}
			return nil
		},
	}
}
