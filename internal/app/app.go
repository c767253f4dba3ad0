package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/container"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/generator"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/internal/sandbox"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW        io.Writer
	in          io.Reader
	interactive bool
	logger      *slog.Logger
	logFile     *os.File
	registry    *registry.Registry
	settings    config.Settings
	config      *Config

	generator      *generator.Generator
	generatorReady bool

	newEngine func(*sandbox.Sandbox) *container.Engine
}

// NewApp is the constructor for the main application. It resolves settings
// (defaults, settings file, environment, flags, in that order), builds an
// isolated logger and populates the publish registry. When the built-in
// modules are used, a registry that lacks a known publish target is a
// programming error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	var logFile *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
	}

	var fileW io.Writer
	if logFile != nil {
		fileW = logFile
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW, fileW).With("run_id", uuid.NewString())
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	settings, err := resolveSettings(ctx, cfg, loader)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	logger.Debug("Settings resolved.", "sandbox", settings.Sandbox.Dir, "auto_fix", settings.Run.AutoFix)

	reg := registry.New()
	builtin := len(modules) == 0
	if builtin {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All publish modules registered.", "count", len(modules))

	if builtin {
		if err := reg.Validate(publish.Registries); err != nil {
			panic(err)
		}
		logger.Debug("Registry validation passed.")
	}

	return &App{
		outW:        outW,
		in:          os.Stdin,
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
		logger:      logger,
		logFile:     logFile,
		registry:    reg,
		settings:    settings,
		config:      cfg,
		newEngine:   defaultEngine,
	}, nil
}

// resolveSettings layers the settings file, the environment and the flags
// over the built-in defaults.
func resolveSettings(ctx context.Context, cfg *Config, loader config.Loader) (config.Settings, error) {
	dotenv := cfg.DotenvPath
	if dotenv == "" {
		dotenv = ".env"
	}
	env, err := config.ReadEnvironment(dotenv)
	if err != nil {
		return config.Settings{}, fmt.Errorf("reading %s: %w", dotenv, err)
	}

	path := cfg.SettingsPath
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.DocumentPath), DefaultSettingsFile)
	}
	s, err := loader.Load(ctx, config.Defaults(), path, env)
	if err != nil {
		return config.Settings{}, err
	}
	s = config.FromEnvironment(s, env)
	return cfg.Overlay(s), nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Settings returns the resolved settings.
func (a *App) Settings() config.Settings {
	return a.settings
}

// SetInput replaces the reader used for interactive prompts.
func (a *App) SetInput(in io.Reader, interactive bool) {
	a.in = in
	a.interactive = interactive
}

// SetGenerator installs g as the generation capability, bypassing the
// configured provider.
func (a *App) SetGenerator(g *generator.Generator) {
	a.generator = g
	a.generatorReady = true
}

// Close releases the log file, if any.
func (a *App) Close() error {
	if a.logFile == nil {
		return nil
	}
	return a.logFile.Close()
}

// gen returns the generation capability, creating the configured provider on
// first use. A nil result means the capability is absent; every Generator
// method then reports generator.ErrUnavailable.
func (a *App) gen(ctx context.Context) *generator.Generator {
	if a.generatorReady {
		return a.generator
	}
	a.generatorReady = true

	model, err := generator.NewGemini(ctx, a.settings.Generator)
	if err != nil {
		if !errors.Is(err, generator.ErrUnavailable) {
			ctxlog.FromContext(ctx).Warn("Generator could not be created.", "error", err)
		}
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Generator ready.", "model", model.Name())
	a.generator = generator.New(model)
	return a.generator
}
