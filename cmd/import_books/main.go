// Command import_books migrates a database written by the SQLite-backed
// release of the library tool into the JSON record files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"campus-library/internal/cliutil"
	"campus-library/library"

	flag "github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("import_books", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	from := flagSet.String("from", "library.db", "Legacy SQLite database to read")
	dataDir := flagSet.String("data-dir", "", "Directory holding the record files")
	configPath := flagSet.StringP("config", "c", "", "Use the config file at `path`")
	category := flagSet.String("category", "General", "Category given to every imported book")
	prefix := flagSet.String("member-prefix", "", "Prefix for imported member ids, e.g. m gives m7")
	verbose := flagSet.BoolP("verbose", "v", false, "Log progress to stderr")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var overrides library.ConfigLayer
	if flagSet.Changed("data-dir") {
		overrides.DataDir = dataDir
	}
	if *verbose {
		level := "debug"
		overrides.LogLevel = &level
	}
	// Imported records replace the samples a fresh directory would get.
	seed := false
	overrides.Seed = &seed

	cfg, err := library.LoadConfig(library.LoadConfigInput{
		ConfigPath: *configPath,
		Overrides:  overrides,
		Env:        cliutil.Environ(),
	})
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()}))

	fmt.Fprintf(out, "Reading legacy database %s...\n", *from)
	snap, err := library.ReadLegacyDatabase(ctx, *from)
	if err != nil {
		fmt.Fprintf(errOut, "Error reading legacy database: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Found %d books and %d members.\n", len(snap.Books), len(snap.Members))

	manager, err := library.NewLibraryManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(errOut, "Error opening data directory: %v\n", err)
		return 1
	}

	report, err := manager.ImportLegacy(snap, library.ImportOptions{Category: *category, MemberPrefix: *prefix})
	if err != nil {
		fmt.Fprintf(errOut, "Error importing: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Books imported:   %d\n", report.Books)
	fmt.Fprintf(out, "Members imported: %d\n", report.Members)
	fmt.Fprintf(out, "Loans carried:    %d\n", report.Loans)
	fmt.Fprintf(out, "Skipped:          %d\n", len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "  - %s\n", s)
	}

	if err := manager.CheckConsistency(); err != nil {
		fmt.Fprintf(errOut, "Warning: data files disagree after import:\n%v\n", err)
		return 1
	}

	if report.Books > 0 {
		books, err := manager.ListBooks()
		if err != nil {
			fmt.Fprintf(errOut, "Error retrieving books: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-6s %-50s %-30s\n", "ID", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 88))
		for _, b := range books {
			fmt.Fprintf(out, "%-6s %-50s %-30s\n", b.ID, cliutil.Truncate(b.Title, 50), cliutil.Truncate(b.Author, 30))
		}
	}
	return 0
}
