// Package cli implements the flok command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/flok/internal/app"
	"github.com/dshills/flok/internal/config"
	"github.com/dshills/flok/internal/logging"
	"github.com/dshills/flok/internal/process"
	"github.com/dshills/flok/internal/supervisor"
	"github.com/dshills/flok/internal/ui"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ErrNotTerminal is returned when stdin is not a terminal.
var ErrNotTerminal = errors.New("flok needs an interactive terminal on stdin")

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

type flags struct {
	config   string
	logLevel string
	logFile  string
	grace    time.Duration
}

// NewRootCommand builds the flok command tree.
func NewRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "flok",
		Short: "Run flocks of development processes side by side",
		Long: `Flok starts groups of long-running development processes, each in its
own pseudo-terminal, shows their screens side by side and restarts them
when files under the working directory change.

Select a flock with the arrow keys or j/k, press Enter to start it, r to
restart it and q to quit. Quitting leaves started processes running.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	pf := root.Flags()
	pf.StringVarP(&f.config, "config", "c", "", "project file (default: flok.yaml, flok.yml or flok.toml in the working directory)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&f.logFile, "log-file", "", "log file (default: "+logging.DefaultPath()+")")
	pf.DurationVar(&f.grace, "grace", 0, "time between SIGTERM and SIGKILL when stopping a process")

	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flok %s (commit %s, built %s)\n", Version, Commit, Date)
		},
	}
}

// resolveSettings layers defaults, environment and flags.
func resolveSettings(cmd *cobra.Command, f flags, lookup func(string) (string, bool)) (config.Settings, error) {
	s := config.DefaultSettings()
	if err := s.ApplyEnv(lookup); err != nil {
		return s, err
	}

	fs := cmd.Flags()
	if fs.Changed("config") {
		s.ConfigPath = f.config
	}
	if fs.Changed("log-level") {
		s.LogLevel = f.logLevel
	}
	if fs.Changed("log-file") {
		s.LogFile = f.logFile
	}
	if fs.Changed("grace") {
		s.GraceTimeout = f.grace
	}

	if !logging.ValidLevel(s.LogLevel) {
		return s, &config.ValidationError{Field: "log-level", Message: fmt.Sprintf("unknown level %q", s.LogLevel)}
	}
	return s, s.Validate()
}

// loadProject reads the project file named by settings or found in dir.
func loadProject(s config.Settings, dir string) (*config.FlockSet, string, error) {
	path := s.ConfigPath
	if path == "" {
		found, err := config.Discover(dir)
		if err != nil {
			return nil, "", err
		}
		path = found
	}
	set, err := config.Load(path)
	return set, path, err
}

func run(cmd *cobra.Command, f flags) error {
	settings, err := resolveSettings(cmd, f, os.LookupEnv)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	set, path, err := loadProject(settings, cwd)
	if err != nil {
		return err
	}

	if !stdinIsTerminal() {
		return ErrNotTerminal
	}

	logPath := settings.LogFile
	if logPath == "" {
		logPath = logging.DefaultPath()
	}
	logger, err := logging.Open(logPath, settings.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("starting",
		"version", Version,
		"config", path,
		"flocks", len(set.Flocks),
		"processes", set.ProcessCount())

	sup := supervisor.New(set, supervisor.Config{
		Shell:  process.ResolveShell(nil),
		Dir:    cwd,
		Grace:  settings.GraceTimeout,
		Logger: logger,
	})

	backend, err := ui.NewTerminal()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	application := app.New(sup, backend, app.Options{
		Root:           cwd,
		RedrawInterval: settings.RedrawInterval,
		Logger:         logger,
	})
	err = application.Run(ctx)
	if errors.Is(err, app.ErrQuit) {
		logger.Info("quit, leaving processes running")
		return nil
	}
	return err
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
