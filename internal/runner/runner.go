// Package runner executes a document's run command and applies narrow,
// deterministic fixes between bounded retries.
package runner

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/sandbox"
	"github.com/vk/markpact/internal/shell"
)

// ExitInterrupted is the exit status reported when the operator interrupts a
// run.
const ExitInterrupted = 130

// Installer installs a single dependency by name.
type Installer interface {
	InstallOne(ctx context.Context, name string) error
}

// DocumentPatcher persists fixes back into the source document.
type DocumentPatcher interface {
	ReplacePort(port int) (bool, error)
	AddDependency(name string) (bool, error)
}

// PortFinder returns a bindable port.
type PortFinder func(start, scan int) (int, error)

// Attempt records one execution of the command.
type Attempt struct {
	Index    int         `yaml:"index"`
	Command  string      `yaml:"command"`
	ExitCode int         `yaml:"exit_code"`
	Failure  FailureKind `yaml:"failure,omitempty"`
	Fix      string      `yaml:"fix,omitempty"`
}

// Result is the final outcome of Run.
type Result struct {
	// ExitCode is the last process's real exit status, or ExitInterrupted.
	ExitCode    int       `yaml:"exit_code"`
	Interrupted bool      `yaml:"interrupted"`
	Command     string    `yaml:"command"`
	Output      string    `yaml:"-"`
	Attempts    []Attempt `yaml:"attempts"`
}

// Controller runs commands in a sandbox.
type Controller struct {
	sb        *sandbox.Sandbox
	settings  config.RunSettings
	installer Installer
	document  DocumentPatcher
	findPort  PortFinder
	out       io.Writer
	grace     time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithInstaller enables the missing-module fix.
func WithInstaller(i Installer) Option { return func(c *Controller) { c.installer = i } }

// WithDocument makes fixes persist into the source document.
func WithDocument(d DocumentPatcher) Option { return func(c *Controller) { c.document = d } }

// WithPortFinder replaces the free-port probe.
func WithPortFinder(f PortFinder) Option { return func(c *Controller) { c.findPort = f } }

// WithOutput echoes each attempt's output to w.
func WithOutput(w io.Writer) Option { return func(c *Controller) { c.out = w } }

// WithGrace sets how long an interrupted process may take to exit.
func WithGrace(d time.Duration) Option { return func(c *Controller) { c.grace = d } }

// New creates a Controller.
func New(sb *sandbox.Sandbox, settings config.RunSettings, opts ...Option) *Controller {
	c := &Controller{
		sb:       sb,
		settings: settings,
		findPort: FreePort,
		out:      io.Discard,
		grace:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes command, retrying up to MaxRetries times after a fixable
// failure when auto-fix is enabled. The returned error is reserved for
// failures to spawn; process failures are reported through Result.
func (c *Controller) Run(ctx context.Context, command string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	env := map[string]string{}
	res := &Result{Command: command}

	for attempt := 1; ; attempt++ {
		logger.Info("Running command.", "attempt", attempt, "command", command)

		cmd := shell.Command{Script: command, Dir: c.sb.Dir(), Env: env}
		if c.sb.HasEnvironment() {
			cmd.BinDir = c.sb.BinDir()
		}
		out, err := shell.Run(ctx, cmd, c.grace)
		if err != nil {
			return nil, err
		}
		_, _ = io.WriteString(c.out, out.Output)

		res.Command = command
		res.Output = out.Output
		if out.Interrupted {
			logger.Warn("Run interrupted.", "attempt", attempt)
			res.ExitCode = ExitInterrupted
			res.Interrupted = true
			res.Attempts = append(res.Attempts, Attempt{Index: attempt, Command: command, ExitCode: ExitInterrupted})
			return res, nil
		}

		res.ExitCode = out.ExitCode
		rec := Attempt{Index: attempt, Command: command, ExitCode: out.ExitCode}
		if out.ExitCode == 0 {
			res.Attempts = append(res.Attempts, rec)
			logger.Info("Command succeeded.", "attempt", attempt)
			return res, nil
		}

		rec.Failure = Classify(out.Output)
		logger.Warn("Command failed.", "attempt", attempt, "exit_code", out.ExitCode, "failure", rec.Failure)

		if !c.settings.AutoFix || attempt > c.settings.MaxRetries {
			res.Attempts = append(res.Attempts, rec)
			return res, nil
		}

		next, fix, ok := c.fix(ctx, rec.Failure, command, out.Output, env)
		rec.Fix = fix
		res.Attempts = append(res.Attempts, rec)
		if !ok {
			return res, nil
		}
		command = next
		logger.Info("Retrying with fix.", "attempt", attempt+1, "command", command, "fix", fix)
	}
}

// fix applies the remediation for kind and returns the next command. ok is
// false when no remediation applies.
func (c *Controller) fix(ctx context.Context, kind FailureKind, command, output string, env map[string]string) (next, fix string, ok bool) {
	logger := ctxlog.FromContext(ctx)

	switch kind {
	case PortInUse:
		port, err := c.findPort(c.settings.StartPort, c.settings.PortScan)
		if err != nil {
			logger.Error("Free-port probe failed.", "error", err)
			return "", "", false
		}
		if c.document != nil {
			if changed, err := c.document.ReplacePort(port); err != nil {
				logger.Warn("Failed to persist port fix.", "error", err)
			} else if changed {
				logger.Info("Updated document port.", "port", port)
			}
		}
		env[shell.PortVariable] = strconv.Itoa(port)
		if !shell.HasPortReference(command) {
			logger.Debug("Command has no port reference; the port is passed by environment only.", "port", port)
		}
		return shell.RewritePort(command, port), fmt.Sprintf("port %d", port), true

	case MissingModule:
		name := ModuleName(output)
		if name == "" {
			return "", "", false
		}
		if c.document != nil {
			if changed, err := c.document.AddDependency(name); err != nil {
				logger.Warn("Failed to persist dependency.", "name", name, "error", err)
			} else if changed {
				logger.Info("Added dependency to document.", "name", name)
			}
		}
		if c.installer != nil {
			if err := c.installer.InstallOne(ctx, name); err != nil {
				logger.Warn("Dependency install failed.", "name", name, "error", err)
			}
		}
		return command, "install " + name, true
	}
	return "", "", false
}
