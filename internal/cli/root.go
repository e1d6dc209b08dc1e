package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gophersatwork/assetpipe"
	"github.com/gophersatwork/assetpipe/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigPath string
	LogLevel   string // overrides log.level from the config when set
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the assetpipe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "assetpipe",
		Short: "assetpipe - named web assets",
		Long: `Discover, compile and publish web assets referenced by name.

Assets live below the assets directory, one sub directory per type. Each is
registered in a manifest under a dotted name such as script.app, compiled
into the build directory and published below the public web root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.LogLevel != "" {
				if _, err := log.ParseLevel(opts.LogLevel); err != nil {
					return WrapExitError(ExitCommandError, "invalid --log-level", err)
				}
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./assetpipe.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewDiscoverCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewManifestCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))

	return cmd
}

// session is what every command works with: the loaded configuration,
// an open pipeline and the output formatter.
type session struct {
	cfg       *config.Config
	pipeline  *assetpipe.Pipeline
	logger    *log.Logger
	formatter *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openSession loads the configuration and opens the pipeline it describes.
// Failures are reported through the formatter.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	formatter := newFormatter(opts, cmd)

	cfg, path, err := config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: opts.ConfigPath})
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	level := cfg.LogLevel()
	if opts.LogLevel != "" {
		level, _ = log.ParseLevel(opts.LogLevel)
	}
	if opts.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	popts := []assetpipe.Option{assetpipe.WithLogger(logger)}
	if !cfg.Compile.Minify {
		popts = append(popts, assetpipe.WithMinifier(assetpipe.PassthroughMinifier))
	}
	if cfg.Compile.Always {
		popts = append(popts, assetpipe.WithAlwaysCompile())
	}
	if cfg.Compile.AccumulateErrors {
		popts = append(popts, assetpipe.WithAccumulateErrors())
	}

	var sqlite *assetpipe.SQLiteStorage
	if cfg.Manifest.Driver == config.DriverSQLite {
		dbPath := cfg.ManifestPath()
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeOpen, fmt.Errorf("failed to create manifest directory: %w", err), nil)
		}
		sqlite, err = assetpipe.OpenSQLiteStorage(dbPath)
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeOpen, err, nil)
		}
		popts = append(popts, assetpipe.WithStorage(sqlite))
	}

	p, err := assetpipe.Open(cmd.Context(), cfg.Layout(), popts...)
	if err != nil {
		if sqlite != nil {
			_ = sqlite.Close()
		}
		return nil, formatter.Fail(ExitCommandError, ErrCodeOpen, err, nil)
	}

	return &session{cfg: cfg, pipeline: p, logger: logger, formatter: formatter}, nil
}

// commit saves the manifest when the command changed it and reports
// whether it was written.
func (s *session) commit(cmd *cobra.Command) (bool, error) {
	written, err := s.pipeline.Commit(cmd.Context())
	if err != nil {
		return false, s.formatter.Fail(ExitCommandError, ErrCodeManifest, err, nil)
	}
	if written {
		s.formatter.VerboseLog("Manifest saved (revision %s)", s.pipeline.Manifest().Revision())
	}
	return written, nil
}

func (s *session) close() {
	if err := s.pipeline.Close(); err != nil {
		s.logger.Error("failed to close pipeline", "error", err)
	}
}
