package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/gophersatwork/assetpipe"
)

const (
	// AppName is the application name.
	AppName = "assetpipe"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "assetpipe"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// EnvPrefix prefixes environment overrides, e.g. ASSETPIPE_MANIFEST_DRIVER.
	EnvPrefix = "ASSETPIPE"

	// DriverJSON stores the manifest as a JSON file.
	DriverJSON = "json"
	// DriverSQLite stores the manifest in a SQLite database.
	DriverSQLite = "sqlite"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the application configuration.
	Config struct {
		Root     string         `mapstructure:"root"`
		Paths    PathsConfig    `mapstructure:"paths"`
		Manifest ManifestConfig `mapstructure:"manifest"`
		Compile  CompileConfig  `mapstructure:"compile"`
		Log      LogConfig      `mapstructure:"log"`
	}

	// PathsConfig holds the layout directories, relative to Root unless absolute.
	PathsConfig struct {
		Assets       string `mapstructure:"assets"`
		Public       string `mapstructure:"public"`
		PublicAssets string `mapstructure:"public_assets"`
		Build        string `mapstructure:"build"`
	}

	// ManifestConfig selects the manifest storage.
	ManifestConfig struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"` // empty picks a driver specific default
	}

	// CompileConfig tunes compilation.
	CompileConfig struct {
		Minify           bool `mapstructure:"minify"`
		Always           bool `mapstructure:"always"`
		AccumulateErrors bool `mapstructure:"accumulate_errors"`
	}

	// LogConfig configures the logger.
	LogConfig struct {
		Level string `mapstructure:"level"`
	}

	// LoadOptions controls where Load looks for a config file.
	LoadOptions struct {
		// ConfigFilePath is used exclusively when set and must exist.
		ConfigFilePath string
		// SearchDir is searched for assetpipe.yaml, defaults to the working directory.
		SearchDir string
	}
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Root: ".",
		Paths: PathsConfig{
			Assets:       "assets",
			Public:       "public",
			PublicAssets: filepath.Join("public", "assets"),
			Build:        filepath.Join("var", "build"),
		},
		Manifest: ManifestConfig{Driver: DriverJSON},
		Compile:  CompileConfig{Minify: true},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads defaults, the config file and ASSETPIPE_* environment
// variables, in increasing priority. It returns the config and the file
// it was read from, empty when none was found.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("paths.assets", defaults.Paths.Assets)
	v.SetDefault("paths.public", defaults.Paths.Public)
	v.SetDefault("paths.public_assets", defaults.Paths.PublicAssets)
	v.SetDefault("paths.build", defaults.Paths.Build)
	v.SetDefault("manifest.driver", defaults.Manifest.Driver)
	v.SetDefault("manifest.path", defaults.Manifest.Path)
	v.SetDefault("compile.minify", defaults.Compile.Minify)
	v.SetDefault("compile.always", defaults.Compile.Always)
	v.SetDefault("compile.accumulate_errors", defaults.Compile.AccumulateErrors)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config file %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		dir := opts.SearchDir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("failed to read config file: %w", err)
			}
			// If no config file found, use defaults (no error)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, v.ConfigFileUsed(), nil
}

// Validate checks the values that the type system cannot.
func (c *Config) Validate() error {
	var errs []error

	switch c.Manifest.Driver {
	case DriverJSON, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("%w: manifest.driver %q must be %q or %q", ErrInvalidConfig, c.Manifest.Driver, DriverJSON, DriverSQLite))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err))
	}

	for name, p := range map[string]string{
		"paths.assets":        c.Paths.Assets,
		"paths.public":        c.Paths.Public,
		"paths.public_assets": c.Paths.PublicAssets,
		"paths.build":         c.Paths.Build,
	} {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("%w: %s is empty", ErrInvalidConfig, name))
		}
	}

	if len(errs) == 0 {
		if err := c.Layout().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}

	return errors.Join(errs...)
}

// Layout resolves the configured directories against Root.
func (c *Config) Layout() assetpipe.Layout {
	return assetpipe.Layout{
		Assets:       c.resolve(c.Paths.Assets),
		Public:       c.resolve(c.Paths.Public),
		PublicAssets: c.resolve(c.Paths.PublicAssets),
		Build:        c.resolve(c.Paths.Build),
		Manifest:     c.ManifestPath(),
	}
}

// ManifestPath returns the manifest location for the configured driver.
func (c *Config) ManifestPath() string {
	if c.Manifest.Path != "" {
		return c.resolve(c.Manifest.Path)
	}
	if c.Manifest.Driver == DriverSQLite {
		return c.resolve(filepath.Join("var", "asset-manifest.db"))
	}
	return c.resolve(filepath.Join("var", "asset-manifest.json"))
}

// LogLevel returns the parsed log level, info when invalid.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}
