package nixls

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no config file exists in a directory or
// any of its parents.
var ErrConfigNotFound = errors.New("nixls: config file not found")

// Config represents the .nixls.yaml configuration file.
type Config struct {
	// Interpreter used to dump builtin metadata
	Interpreter InterpreterConfig `yaml:"interpreter"`

	// Documentation sub-indices, searched in the order listed
	Docs []DocSource `yaml:"docs,omitempty"`
}

// InterpreterConfig configures the Nix interpreter probe.
type InterpreterConfig struct {
	// Command line, split with shell rules (e.g. "nix --extra-experimental-features nix-command")
	Command string `yaml:"command,omitempty"`

	// Oldest version that supports __dump-builtins
	MinVersion string `yaml:"minVersion,omitempty"`

	// Upper bound for each interpreter invocation
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DocSource points at one JSON documentation file.
type DocSource struct {
	Name string `yaml:"name"`

	// One of "entries", "options" or "builtins"
	Format string `yaml:"format"`

	// Relative paths are resolved against the config file's directory
	Path string `yaml:"path"`
}

// Defaults for the interpreter probe.
const (
	DefaultInterpreterCommand = "nix"
	DefaultMinVersion         = "2.4"
	DefaultInterpreterTimeout = 10 * time.Second
)

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".nixls.yaml", ".nixls.yml", "nixls.yaml", "nixls.yml"}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults("")

	return cfg
}

// LoadConfig finds and loads the nearest .nixls.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path. Missing fields take
// their defaults and doc paths are made absolute.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults(filepath.Dir(absPath))

	return &cfg, nil
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Interpreter.Command == "" {
		c.Interpreter.Command = DefaultInterpreterCommand
	}

	if c.Interpreter.MinVersion == "" {
		c.Interpreter.MinVersion = DefaultMinVersion
	}

	if c.Interpreter.Timeout <= 0 {
		c.Interpreter.Timeout = DefaultInterpreterTimeout
	}

	for i := range c.Docs {
		if c.Docs[i].Format == "" {
			c.Docs[i].Format = "entries"
		}

		if c.Docs[i].Name == "" {
			c.Docs[i].Name = filepath.Base(c.Docs[i].Path)
		}

		if baseDir != "" && c.Docs[i].Path != "" && !filepath.IsAbs(c.Docs[i].Path) {
			c.Docs[i].Path = filepath.Join(baseDir, c.Docs[i].Path)
		}
	}
}
