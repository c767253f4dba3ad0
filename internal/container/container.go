// Package container runs the sandbox inside a Docker container instead of
// on the host: it renders a Dockerfile, builds an image and starts it with
// the service port published.
package container

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/sandbox"
	"github.com/vk/markpact/internal/shell"
)

const (
	// DefaultImage is the tag used for images built from a sandbox.
	DefaultImage = "markpact-app"
	// BaseImage is the image every generated Dockerfile starts from.
	BaseImage = "python:3.12-slim"
	// ContainerPort is the port the generated image exposes by default.
	ContainerPort = 8000
)

// Label is one LABEL instruction of a generated Dockerfile.
type Label struct {
	Key   string
	Value string
}

// Dockerfile renders a minimal image definition. The container runs run
// through `sh -c` when it is non-empty and a static file server otherwise.
func Dockerfile(run string, labels ...Label) string {
	cmd := []string{"python", "-m", "http.server", strconv.Itoa(ContainerPort)}
	if run = strings.TrimSpace(run); run != "" {
		cmd = []string{"sh", "-c", run}
	}
	exec, _ := json.Marshal(cmd)

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", BaseImage)
	for _, l := range labels {
		fmt.Fprintf(&b, "LABEL %s=%q\n", l.Key, l.Value)
	}
	if len(labels) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("WORKDIR /app\n\n")
	b.WriteString("COPY requirements.txt* ./\n")
	b.WriteString("RUN if [ -f requirements.txt ]; then pip install --no-cache-dir -r requirements.txt; fi\n\n")
	b.WriteString("COPY . .\n\n")
	fmt.Fprintf(&b, "ENV %s=%d\nEXPOSE %d\n\n", shell.PortVariable, ContainerPort, ContainerPort)
	fmt.Fprintf(&b, "CMD %s\n", exec)
	return b.String()
}

// PortFinder returns a bindable host port.
type PortFinder func(start, scan int) (int, error)

// Engine drives the docker CLI against one sandbox.
type Engine struct {
	sb *sandbox.Sandbox
	// Binary is the docker executable.
	Binary string
	// Image is the tag built and run.
	Image    string
	findPort PortFinder
	grace    time.Duration
}

// New creates an Engine for sb. findPort picks the host port when the
// preferred one is taken.
func New(sb *sandbox.Sandbox, findPort PortFinder) *Engine {
	return &Engine{
		sb:       sb,
		Binary:   "docker",
		Image:    DefaultImage,
		findPort: findPort,
		grace:    10 * time.Second,
	}
}

// Name is the container name used for runs of the image.
func (e *Engine) Name() string { return e.Image + "-container" }

// Available reports an error when the docker CLI cannot be executed.
func (e *Engine) Available(ctx context.Context) error {
	res, err := e.exec(ctx, "--version")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker is not available, install Docker first: %s", strings.TrimSpace(res.Output))
	}
	return nil
}

// Prepare writes the dependency manifest, a .dockerignore that keeps the
// nested environment out of the build context, and the Dockerfile.
func (e *Engine) Prepare(deps []string, run string) error {
	if len(deps) > 0 {
		if _, err := e.sb.WriteManifest(deps); err != nil {
			return err
		}
	}
	if _, err := e.sb.Write(".dockerignore", sandbox.EnvironmentName+"\n"); err != nil {
		return err
	}
	_, err := e.sb.Write("Dockerfile", Dockerfile(run))
	return err
}

// Build builds the image from the sandbox.
func (e *Engine) Build(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("Building Docker image.", "image", e.Image)
	res, err := e.exec(ctx, "build", "-t", e.Image, ".")
	if err != nil {
		return err
	}
	if res.Interrupted {
		return fmt.Errorf("docker build: %w", context.Canceled)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker build failed with exit code %d: %s", res.ExitCode, tail(res.Output))
	}
	return nil
}

// HostPort returns preferred when it is free, otherwise the next free port
// above it.
func (e *Engine) HostPort(ctx context.Context, preferred, scan int) (int, error) {
	if port, err := e.findPort(preferred, 1); err == nil {
		return port, nil
	}
	port, err := e.findPort(preferred+1, scan)
	if err != nil {
		return 0, err
	}
	ctxlog.FromContext(ctx).Info("Port in use, using another.", "requested", preferred, "port", port)
	return port, nil
}

// RunScript is the shell script that starts the image in the foreground
// with port published and exported to the container.
func (e *Engine) RunScript(port int) string {
	p := strconv.Itoa(port)
	return strings.Join([]string{
		shellQuote(e.Binary), "run", "--rm",
		"-p", p + ":" + p,
		"-e", shell.PortVariable + "=" + p,
		"--name", e.Name(),
		e.Image,
	}, " ")
}

// Remove force-removes a leftover container of the same name. Failures are
// ignored.
func (e *Engine) Remove(ctx context.Context) {
	if res, err := e.exec(ctx, "rm", "-f", e.Name()); err == nil && res.ExitCode == 0 {
		ctxlog.FromContext(ctx).Debug("Removed existing container.", "name", e.Name())
	}
}

// Stop stops the running container. It uses its own short deadline so that
// it still works after ctx was cancelled.
func (e *Engine) Stop(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.grace)
	defer cancel()
	if _, err := e.exec(stopCtx, "stop", e.Name()); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to stop container.", "name", e.Name(), "error", err)
	}
}

// Run starts the image on port and waits for it to exit. An interrupted run
// stops the container before returning.
func (e *Engine) Run(ctx context.Context, port int) (shell.Result, error) {
	logger := ctxlog.FromContext(ctx)
	e.Remove(ctx)

	logger.Info("Running container.", "name", e.Name(), "url", fmt.Sprintf("http://localhost:%d", port))
	res, err := shell.Run(ctx, shell.Command{Script: e.RunScript(port), Dir: e.sb.Dir()}, e.grace)
	if err != nil {
		return res, err
	}
	if res.Interrupted {
		logger.Info("Stopping container.", "name", e.Name())
		e.Stop(ctx)
	}
	return res, nil
}

func (e *Engine) exec(ctx context.Context, args ...string) (shell.Result, error) {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellQuote(e.Binary))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	return shell.Run(ctx, shell.Command{Script: strings.Join(quoted, " "), Dir: e.sb.Dir()}, e.grace)
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func tail(s string) string {
	const limit = 2000
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
