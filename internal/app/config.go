package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/markpact/internal/config"
)

// DefaultDocument is the document read when no path is given.
const DefaultDocument = "README.md"

// DefaultSettingsFile is looked up next to the document when no settings
// file is named explicitly.
const DefaultSettingsFile = "markpact.hcl"

// Config holds everything an invocation was asked to do. Zero values mean
// "not requested"; settings-level values are overlaid onto config.Settings
// by Overlay.
type Config struct {
	DocumentPath string
	SettingsPath string
	DotenvPath   string

	SandboxDir string
	NoVenv     bool
	DryRun     bool
	Clean      bool
	Quiet      bool

	NoAutoFix  bool
	// MaxRetries is nil when the flag was not given.
	MaxRetries *int
	LLMFix     bool

	Test       bool
	Port       int
	ReportPath string

	Publish  bool
	Bump     string
	Registry string

	Convert       bool
	ConvertOnly   bool
	SaveConverted string
	Auto          bool

	Prompt           string
	Output           string
	RunAfterGenerate bool
	Model            string

	Watch  bool
	Docker bool

	LogFormat string
	LogLevel  string
	LogFile   string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DocumentPath == "" {
		cfg.DocumentPath = DefaultDocument
	}
	if cfg.Prompt != "" && cfg.Output == "" {
		cfg.Output = cfg.DocumentPath
	}
	switch cfg.Bump {
	case "", "major", "minor", "patch":
	default:
		return nil, fmt.Errorf("invalid bump %q: must be 'major', 'minor' or 'patch'", cfg.Bump)
	}
	if cfg.Bump != "" && !cfg.Publish {
		return nil, errors.New("--bump requires --publish")
	}
	if cfg.Watch && (cfg.Test || cfg.Publish || cfg.DryRun) {
		return nil, errors.New("--watch cannot be combined with --test, --publish or --dry-run")
	}
	if cfg.Docker && (cfg.Publish || cfg.Watch) {
		return nil, errors.New("--docker cannot be combined with --publish or --watch")
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return nil, errors.New("max-retries must not be negative")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.ConvertOnly {
		cfg.Convert = true
	}
	cfg.Registry = strings.ToLower(strings.TrimSpace(cfg.Registry))
	if cfg.Quiet {
		cfg.LogLevel = "error"
	}
	return &cfg, nil
}

// Overlay applies the flag-level overrides in c onto s. Flags take
// precedence over the settings file and the environment.
func (c *Config) Overlay(s config.Settings) config.Settings {
	if c.SandboxDir != "" {
		s.Sandbox.Dir = c.SandboxDir
	}
	if c.NoVenv {
		s.Sandbox.SkipEnvironment = true
	}
	if c.NoAutoFix {
		s.Run.AutoFix = false
	}
	if c.MaxRetries != nil {
		s.Run.MaxRetries = *c.MaxRetries
	}
	if c.Port > 0 {
		s.Test.Port = c.Port
		s.Run.StartPort = c.Port
	}
	if c.Model != "" {
		s.Generator.Model = c.Model
	}
	return s
}
