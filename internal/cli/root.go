// Package cli provides the luacats command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/internal/config"
	"github.com/dshills/luacats-mcp/internal/library"
)

// ErrProblemsFound makes the process exit 1 without printing an error; the
// command already reported what it found
var ErrProblemsFound = errors.New("problems found")

// BuildInfo is stamped into the binary at link time
type BuildInfo struct {
	Version   string
	BuildTime string
}

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath    string
	logLevel      string
	dbPath        string
	workers       int
	timeout       time.Duration
	includeHidden bool
	extensions    []string

	stderr io.Writer
	logger *slog.Logger
}

// NewRootCommand builds the luacats command tree
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &globalOptions{stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:           "luacats",
		Short:         "LuaCATS annotation tools",
		Long:          "Parse, check, document, index and serve the LuaCATS annotations of Lua stub libraries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = logger
			opts.stderr = cmd.ErrOrStderr()
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a .luacats.yml config file (default: searched upward from the library path)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.dbPath, "db", "", "Index database path (default: db_path from config)")
	flags.IntVar(&opts.workers, "workers", 0, "Number of files parsed concurrently (default: workers from config)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Abandon parsing after this long, e.g. 30s (default: timeout from config)")
	flags.BoolVar(&opts.includeHidden, "include-hidden", false, "Descend into hidden directories")
	flags.StringSliceVar(&opts.extensions, "ext", nil, "Stub file extensions (default: extensions from config)")

	rootCmd.AddCommand(
		newCheckCommand(opts),
		newMarkdownCommand(opts),
		newIndexCommand(opts),
		newSearchCommand(opts),
		newServeCommand(opts),
		newVersionCommand(info),
	)

	return rootCmd
}

// Execute runs the root command with os.Args
func Execute(ctx context.Context, info BuildInfo) error {
	return NewRootCommand(info).ExecuteContext(ctx)
}

// newLogger builds the stderr text handler for the given level name
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// loadConfig reads the config file named by --config, or the one found
// upward from dir, then applies the flags that were set
func (o *globalOptions) loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case o.configPath != "":
		cfg, err = config.Load(o.configPath)
	case dir != "":
		cfg, err = config.Discover(dir)
	default:
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("include-hidden") {
		cfg.IncludeHidden = o.includeHidden
	}
	if flags.Changed("ext") {
		cfg.Extensions = o.extensions
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// libraryPath returns the path argument, or definitions_path from the
// config when no argument was given
func libraryPath(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.DefinitionsPath != "" {
		return cfg.DefinitionsPath, nil
	}
	return "", errors.New("no library path given and definitions_path is not configured")
}

// setup loads the config for the library named by args and returns both
func (o *globalOptions) setup(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
	}
	cfg, err := o.loadConfig(cmd, dir)
	if err != nil {
		return nil, "", err
	}
	path, err := libraryPath(args, cfg)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// scan parses the library at path with the configured options
func (o *globalOptions) scan(ctx context.Context, cfg *config.Config, path string) (*library.Library, error) {
	return library.Scan(ctx, path, library.Options{
		Workers:       cfg.Workers,
		Timeout:       cfg.Timeout,
		Extensions:    cfg.Extensions,
		IncludeHidden: cfg.IncludeHidden,
		Logger:        o.logger,
	})
}
