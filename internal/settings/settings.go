// Package settings loads conda-hooks configuration from .conda-hooks.yaml.
//
// Every key is optional. Command-line flags take precedence over the file,
// and the file takes precedence over the built-in defaults.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the working directory when no path is given.
const FileName = ".conda-hooks.yaml"

// Settings holds conda-hooks configuration.
type Settings struct {
	// SearchPath is a PATH-style list searched for mamba/conda. Empty means $PATH.
	SearchPath string `yaml:"search_path"`
	// PreferMamba is nil when unset so the default can apply.
	PreferMamba *bool `yaml:"prefer_mamba"`
	// Dedupe drops duplicate dependencies when storing.
	Dedupe bool `yaml:"dedupe"`
	// Strict makes hook errors exit non-zero.
	Strict   bool   `yaml:"strict"`
	LogLevel string `yaml:"log_level"`
	// Globs are used when no env files are named on the command line.
	Globs []string `yaml:"globs"`
}

// Load reads settings from path, or from FileName in the working directory
// when path is empty. Returns nil (not an error) if the default file does
// not exist. A missing explicit path is an error.
func Load(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &s, nil
}

// Validate checks field values.
func (s *Settings) Validate() error {
	if s.LogLevel != "" {
		if _, err := ParseLevel(s.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// MambaPreferred reports whether mamba should be tried before conda. Safe to
// call on a nil *Settings receiver; defaults to true.
func (s *Settings) MambaPreferred() bool {
	if s == nil || s.PreferMamba == nil {
		return true
	}
	return *s.PreferMamba
}

// Level returns the configured log level, defaulting to info. Safe to call
// on a nil *Settings receiver.
func (s *Settings) Level() slog.Level {
	if s == nil || s.LogLevel == "" {
		return slog.LevelInfo
	}
	l, err := ParseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
