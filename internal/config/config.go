// Package config loads luacats settings from a .luacats.yml file, the
// environment and defaults.
//
// Precedence, lowest first: defaults, the config file, LUACATS_* environment
// variables, command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the config file searched for by Find
const FileName = ".luacats.yml"

// DefaultDBPath is where the index lives when db_path is unset
const DefaultDBPath = "~/.luacats/index.db"

// Environment overrides
const (
	EnvDBPath  = "LUACATS_DB_PATH"
	EnvWorkers = "LUACATS_WORKERS"
)

// Config holds every setting of the luacats tools
type Config struct {
	// DefinitionsPath is the stub library root, relative to the config file
	DefinitionsPath string `yaml:"definitions_path"`

	// PartTitle heads the generated Markdown part
	PartTitle string `yaml:"part_title" validate:"required"`

	// NavDepth limits how deep the file hierarchy is nested in the
	// generated navigation. Zero keeps every file at the top level.
	NavDepth int `yaml:"nav_depth" validate:"gte=0"`

	// HeadingLevel is the Markdown heading level of a signature
	HeadingLevel int `yaml:"heading_level" validate:"min=1,max=6"`

	Workers       int           `yaml:"workers" validate:"gte=1"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	DBPath        string        `yaml:"db_path" validate:"required"`
	IncludeHidden bool          `yaml:"include_hidden"`
	Extensions    []string      `yaml:"extensions" validate:"min=1,dive,startswith=."`
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report YAML key names so errors match the config file
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		PartTitle:    "API Reference",
		NavDepth:     2,
		HeadingLevel: 2,
		Workers:      runtime.NumCPU(),
		DBPath:       DefaultDBPath,
		Extensions:   []string{".lua"},
	}
}

// Load reads the config file at path over the defaults, then applies the
// environment. A relative definitions_path is resolved against the
// directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if cfg.DefinitionsPath != "" && !filepath.IsAbs(cfg.DefinitionsPath) {
		cfg.DefinitionsPath = filepath.Join(filepath.Dir(path), cfg.DefinitionsPath)
	}
	return cfg, nil
}

// Parse decodes YAML content over the defaults, applies the environment and
// validates the result. The path argument is used only for error messages.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find searches for .luacats.yml starting from dir and walking up to the
// filesystem root. It returns an empty path and nil error if none exists.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Discover loads the config file found from dir, or the defaults plus the
// environment when there is none
func Discover(dir string) (*Config, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	if path != "" {
		return Load(path)
	}

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the LUACATS_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ResolvedDBPath returns DBPath with a leading ~ expanded to the home
// directory. In-memory databases are returned as is.
func (c *Config) ResolvedDBPath() (string, error) {
	return ExpandHome(c.DBPath)
}

// ExpandHome expands a leading ~/ in path
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
