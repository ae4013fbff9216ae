package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"condahooks/internal/conda"
	"condahooks/internal/envspec"
	"condahooks/internal/hookerr"
	"condahooks/internal/prompt"
	"condahooks/internal/reconcile"
	"condahooks/internal/settings"
)

const (
	appName = "conda-hooks"
	Version = "0.4.0"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(a *app, cmd *cobra.Command, args []string) error
}

var commands = []command{
	{
		name:  "store",
		short: "Store installed packages in the env files",
		usage: "conda-hooks store [files...] [--glob PATTERN]... [--watch]",
		long: `Merge the explicitly installed packages of each environment into its
env file, then rewrite the file sorted and in canonical form.

Files whose environment is not installed are only rewritten. With --watch
the command keeps running and stores again whenever an environment changes.
`,
		run: runStore,
	},
	{
		name:  "update",
		short: "Update environments from the env files",
		usage: "conda-hooks update [files...] [--glob PATTERN]...",
		long: `Run "env update" for every env file. Errors if an environment does not
exist yet; use create for that.
`,
		run: runUpdate,
	},
	{
		name:  "create",
		short: "Create missing environments from the env files",
		usage: "conda-hooks create [files...] [--glob PATTERN]...",
		long: `Run "env create" for every env file whose environment does not exist.
Existing environments are left alone.
`,
		run: runCreate,
	},
	{
		name:  "remove",
		short: "Remove the environments named by the env files",
		usage: "conda-hooks remove [files...] [--glob PATTERN]... [--yes]",
		long: `Remove the environment of every env file. The env files are kept.

Asks for confirmation on a terminal unless --yes is given.
`,
		run: runRemove,
	},
}

// flags are the persistent command-line flags.
type flags struct {
	config     string
	globs      []string
	searchPath string
	noMamba    bool
	dedupe     bool
	strict     bool
	logLevel   string

	watch bool
	yes   bool
}

// app carries the state of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// newManager builds the package manager once settings are known.
	newManager func(s *settings.Settings, logger *slog.Logger) envspec.Manager
	// isTerminal reports whether remove may prompt.
	isTerminal func() bool
	confirm    func(question string) (bool, error)

	flags    flags
	settings *settings.Settings
	logger   *slog.Logger
	rec      *reconcile.Reconciler
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		newManager: func(s *settings.Settings, logger *slog.Logger) envspec.Manager {
			return conda.New(conda.Options{
				SearchPath:  s.SearchPath,
				PreferMamba: s.MambaPreferred(),
				Logger:      logger,
			})
		},
		isTerminal: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
		},
		logger: slog.New(slog.NewTextHandler(stderr, nil)),
	}
	a.confirm = func(question string) (bool, error) {
		return prompt.Confirm(question, a.stdin, a.stdout)
	}
	return a
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Keep environment.yml files in sync with conda environments",
		Long: `conda-hooks keeps environment files and the conda/mamba environments
they describe in sync. It is meant to run as a git pre-commit hook.

Env files are the files given as arguments plus the matches of every
--glob pattern. With neither, the first of environment.yml,
environment.yaml, conda.yml and conda.yaml in the working directory is
used.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.config, "config", "", "settings file (default ./"+settings.FileName+")")
	pf.StringArrayVarP(&a.flags.globs, "glob", "g", nil, "glob pattern selecting env files (repeatable)")
	pf.StringVar(&a.flags.searchPath, "search-path", "", "PATH-style list searched for mamba/conda (default $PATH)")
	pf.BoolVar(&a.flags.noMamba, "no-mamba", false, "use conda even when mamba is available")
	pf.BoolVar(&a.flags.dedupe, "dedupe", false, "drop duplicate dependencies when storing")
	pf.BoolVar(&a.flags.strict, "strict", false, "exit non-zero when a hook fails")
	pf.StringVar(&a.flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	for _, c := range commands {
		root.AddCommand(a.subCmd(c))
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Printing the version never needs settings.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return root
}

func (a *app) subCmd(c command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   strings.TrimPrefix(c.usage, appName+" "),
		Short: c.short,
		Long:  c.long,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(a, cmd, args)
		},
	}
	switch c.name {
	case "store":
		cmd.Flags().BoolVarP(&a.flags.watch, "watch", "w", false, "keep running and store on every environment change")
	case "remove":
		cmd.Flags().BoolVarP(&a.flags.yes, "yes", "y", false, "remove without asking")
	}
	return cmd
}

// setup merges settings and flags, then builds the logger and reconciler.
// Flags win over the settings file only when given explicitly.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s, err := settings.Load(a.flags.config)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if s == nil {
		s = &settings.Settings{}
	}

	f := cmd.Flags()
	if f.Changed("search-path") {
		s.SearchPath = a.flags.searchPath
	}
	if f.Changed("no-mamba") {
		prefer := !a.flags.noMamba
		s.PreferMamba = &prefer
	}
	if f.Changed("dedupe") {
		s.Dedupe = a.flags.dedupe
	}
	if f.Changed("strict") {
		s.Strict = a.flags.strict
	}
	if f.Changed("log-level") {
		s.LogLevel = a.flags.logLevel
	}
	if f.Changed("glob") {
		s.Globs = a.flags.globs
	}
	if err := s.Validate(); err != nil {
		return err
	}

	a.settings = s
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: s.Level()}))
	a.rec = reconcile.New(a.newManager(s, a.logger), reconcile.Options{
		Dedupe: s.Dedupe,
		Logger: a.logger,
	})
	return nil
}

func (a *app) request(args []string) reconcile.Request {
	return reconcile.Request{Files: args, Globs: a.settings.Globs}
}

// ---------------------------------------------------------------------------
// store
// ---------------------------------------------------------------------------

func runStore(a *app, cmd *cobra.Command, args []string) error {
	if !a.flags.watch {
		return a.report(a.rec.Run(cmd.Context(), a.request(args)))
	}
	report := a.rec.Watch(cmd.Context(), a.request(args), reconcile.DefaultDebounce)
	if errors.Is(report.Err, context.Canceled) {
		report.Err = nil
	}
	return a.report(report)
}

// ---------------------------------------------------------------------------
// update / create
// ---------------------------------------------------------------------------

func runUpdate(a *app, cmd *cobra.Command, args []string) error {
	return a.report(a.rec.Sync(cmd.Context(), a.request(args)))
}

func runCreate(a *app, cmd *cobra.Command, args []string) error {
	return a.report(a.rec.CreateAll(cmd.Context(), a.request(args)))
}

// ---------------------------------------------------------------------------
// remove
// ---------------------------------------------------------------------------

func runRemove(a *app, cmd *cobra.Command, args []string) error {
	paths, err := reconcile.ResolveFiles(args, a.settings.Globs, "")
	if err != nil {
		return err
	}
	if !a.flags.yes && a.isTerminal() {
		names := make([]string, 0, len(paths))
		for _, p := range paths {
			s, err := envspec.Load(p)
			if err != nil {
				return err
			}
			names = append(names, s.Name)
		}
		ok, err := a.confirm(fmt.Sprintf("Remove %s?", strings.Join(names, ", ")))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.stdout, "nothing removed")
			return nil
		}
	}
	return a.report(a.rec.RemoveFiles(cmd.Context(), paths))
}

// report prints one line per handled file, then every added dependency,
// and returns the run's error.
func (a *app) report(rep *reconcile.Report) error {
	for _, f := range rep.Files {
		line := fmt.Sprintf("%s %s (%s)", f.Action, relPath(f.Path), f.Name)
		switch {
		case f.Action == reconcile.ActionStore && len(f.Added) > 0:
			line += fmt.Sprintf(": %d added", len(f.Added))
		case f.Action == reconcile.ActionCreate && f.Existed,
			f.Action == reconcile.ActionRemove && !f.Existed:
			line += ": skipped"
		}
		fmt.Fprintln(a.stdout, line)
	}
	if added := rep.Added(); len(added) > 0 {
		fmt.Fprintf(a.stdout, "added %s\n", strings.Join(added, ", "))
	}
	return rep.Err
}

func relPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

// execute runs the CLI and returns the process exit code. Hook failures
// are logged and exit 0 unless strict is set; anything else exits 1.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if herr, ok := hookerr.As(err); ok {
		a.logger.Error(err.Error(), "kind", herr.Kind.String())
		if a.settings != nil && a.settings.Strict {
			return 1
		}
		return 0
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdin, os.Stdout, os.Stderr).execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
