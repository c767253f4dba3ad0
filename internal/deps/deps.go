// Package deps prepares the sandbox's nested environment and installs the
// planned dependencies into it.
package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/sandbox"
	"github.com/vk/markpact/internal/shell"
)

// Interpreter creates the nested environment.
var Interpreter = "python3"

const outputTail = 2000

// Installer runs environment and package-manager commands in a sandbox.
type Installer struct {
	sb       *sandbox.Sandbox
	settings config.SandboxSettings
	grace    time.Duration
}

// New creates an Installer for sb.
func New(sb *sandbox.Sandbox, settings config.SandboxSettings) *Installer {
	return &Installer{sb: sb, settings: settings, grace: 5 * time.Second}
}

// EnsureEnvironment creates the nested environment unless it already exists
// or creation is disabled.
func (i *Installer) EnsureEnvironment(ctx context.Context) error {
	if i.settings.SkipEnvironment || i.sb.HasEnvironment() {
		return nil
	}
	return i.exec(ctx, fmt.Sprintf("%s -m venv %s", Interpreter, sandbox.EnvironmentName))
}

// Install writes the manifest and installs everything in it. An empty list
// is a no-op.
func (i *Installer) Install(ctx context.Context, deps []string) error {
	if len(deps) == 0 {
		return nil
	}
	if err := i.EnsureEnvironment(ctx); err != nil {
		return err
	}
	if _, err := i.sb.WriteManifest(deps); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Installing dependencies.", "count", len(deps))
	return i.exec(ctx, fmt.Sprintf("%s install -r %s", i.pip(), sandbox.ManifestName))
}

// InstallOne installs a single package by name.
func (i *Installer) InstallOne(ctx context.Context, name string) error {
	if err := i.EnsureEnvironment(ctx); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Installing dependency.", "name", name)
	return i.exec(ctx, fmt.Sprintf("%s install %s", i.pip(), name))
}

func (i *Installer) pip() string {
	rel := filepath.Join(sandbox.EnvironmentName, "bin", "pip")
	if _, err := os.Stat(filepath.Join(i.sb.Dir(), rel)); err == nil {
		return rel
	}
	return "pip"
}

func (i *Installer) exec(ctx context.Context, script string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running setup command.", "command", script)

	cmd := shell.Command{Script: script, Dir: i.sb.Dir()}
	if i.sb.HasEnvironment() {
		cmd.BinDir = i.sb.BinDir()
	}
	res, err := shell.Run(ctx, cmd, i.grace)
	if err != nil {
		return err
	}
	if res.Interrupted || res.TimedOut {
		return fmt.Errorf("%q: %w", script, context.Cause(ctx))
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%q exited with code %d: %s", script, res.ExitCode, tail(res.Output))
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > outputTail {
		return "..." + s[len(s)-outputTail:]
	}
	return s
}
