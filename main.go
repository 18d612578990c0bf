package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"campus-library/internal/cliutil"
	"campus-library/library"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, cliutil.Environ()))
}

// app carries the streams and the lazily opened manager shared by every
// subcommand of one invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	env    map[string]string

	workDir    string
	configPath string
	dataDir    string
	logLevel   string
	maxLoans   int
	noSeed     bool

	cfg    library.Config
	logger *slog.Logger
	mgr    *library.LibraryManager
}

// run executes one invocation and returns the process exit code.
func run(args []string, in io.Reader, out, errOut io.Writer, env map[string]string) int {
	a := &app{in: in, out: out, errOut: errOut, env: env}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Campus library circulation tool",
		Long:          "Browse, search and borrow books; admins manage the catalog and user accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Flags())
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSession(a, "")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.workDir, "cwd", "C", "", "Run as if started in `dir`")
	pf.StringVarP(&a.configPath, "config", "c", "", "Use the config file at `path`")
	pf.StringVar(&a.dataDir, "data-dir", "", "Directory holding the record files")
	pf.StringVar(&a.logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	pf.IntVar(&a.maxLoans, "max-loans", 0, "Books a user may hold at once (0 = unlimited)")
	pf.BoolVar(&a.noSeed, "no-seed", false, "Do not seed an empty data directory")

	root.AddCommand(
		newSessionCmd(a),
		newRegisterCmd(a),
		newBooksCmd(a),
		newSearchCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newLoansCmd(a),
		newFavoritesCmd(a),
		newAddBookCmd(a),
		newEditBookCmd(a),
		newRemoveBookCmd(a),
		newUsersCmd(a),
		newRemoveUserCmd(a),
		newUserStatusCmd(a, "deactivate-user", library.StatusInactive),
		newUserStatusCmd(a, "activate-user", library.StatusActive),
		newStatsCmd(a),
		newLogsCmd(a),
		newCheckCmd(a),
		newPrintConfigCmd(a),
	)
	return root
}

// overrides returns the config layer for the flags set on the command line.
func (a *app) overrides(flags *flag.FlagSet) library.ConfigLayer {
	var l library.ConfigLayer
	if flags.Changed("data-dir") {
		l.DataDir = &a.dataDir
	}
	if flags.Changed("log-level") {
		l.LogLevel = &a.logLevel
	}
	if flags.Changed("max-loans") {
		l.MaxLoans = &a.maxLoans
	}
	if flags.Changed("no-seed") {
		seed := !a.noSeed
		l.Seed = &seed
	}
	return l
}

// loadConfig resolves the configuration and sets up the diagnostic logger.
func (a *app) loadConfig(flags *flag.FlagSet) error {
	cfg, err := library.LoadConfig(library.LoadConfigInput{
		WorkDir:    a.workDir,
		ConfigPath: a.configPath,
		Overrides:  a.overrides(flags),
		Env:        a.env,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: cfg.Level()}))
	a.logger.Debug("config resolved", "data_dir", cfg.DataDir,
		"global", cfg.Sources.Global, "project", cfg.Sources.Project)
	return nil
}

// open loads the configuration and opens the stores.
func (a *app) open(flags *flag.FlagSet) error {
	if err := a.loadConfig(flags); err != nil {
		return err
	}
	mgr, err := library.NewLibraryManager(a.cfg, a.logger)
	if err != nil {
		if errors.Is(err, library.ErrCorruptData) {
			return fmt.Errorf("%w (fix or move the file aside and retry)", err)
		}
		return err
	}
	a.mgr = mgr
	return nil
}
