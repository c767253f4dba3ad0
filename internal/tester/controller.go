package tester

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/sandbox"
	"github.com/vk/markpact/internal/shell"
)

// StartupCase names the synthetic case reported when the service never
// becomes reachable.
const StartupCase = "Service startup"

const outputPreview = 200

// Request describes one test session.
type Request struct {
	// Command starts the service; empty means no service is started and
	// HTTP lines fail without being sent.
	Command string
	Port    int
	HTTP    []string
	Shell   []string
}

// Controller runs test sessions inside a sandbox.
type Controller struct {
	sb       *sandbox.Sandbox
	settings config.TestSettings
	client   *http.Client
}

// New creates a Controller. Redirects are not followed so that 3xx statuses
// can be asserted.
func New(sb *sandbox.Sandbox, settings config.TestSettings) *Controller {
	return &Controller{
		sb:       sb,
		settings: settings,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Run starts the service, waits for it to become live, executes the HTTP
// lines and then the shell lines. The service is always stopped before Run
// returns.
func (c *Controller) Run(ctx context.Context, req Request) *Suite {
	logger := ctxlog.FromContext(ctx)
	suite := &Suite{}

	if req.Command == "" {
		for _, line := range req.HTTP {
			suite.add(Case{Name: line, Message: "no run command to start a service"})
		}
		suite.Cases = append(suite.Cases, c.RunShell(ctx, req.Shell, nil).Cases...)
		return suite
	}

	env := map[string]string{shell.PortVariable: strconv.Itoa(req.Port)}
	cmd := shell.Command{Script: shell.RewritePort(req.Command, req.Port), Dir: c.sb.Dir(), Env: env}
	if c.sb.HasEnvironment() {
		cmd.BinDir = c.sb.BinDir()
	}

	logger.Info("Starting service.", "port", req.Port, "command", cmd.Script)
	proc, err := shell.Start(cmd)
	if err != nil {
		suite.add(Case{Name: StartupCase, Message: err.Error()})
		return suite
	}
	defer func() {
		logger.Info("Stopping service.", "pid", proc.Pid())
		proc.Stop(c.settings.StopGrace)
	}()

	base := fmt.Sprintf("http://localhost:%d", req.Port)
	if err := c.waitLive(ctx, proc, base); err != nil {
		suite.add(Case{Name: StartupCase, Message: err.Error()})
		return suite
	}
	logger.Info("Service ready.", "url", base)

	suite.Cases = append(suite.Cases, RunHTTP(ctx, c.client, base, req.HTTP).Cases...)
	suite.Cases = append(suite.Cases, c.RunShell(ctx, req.Shell, env).Cases...)
	return suite
}

var errNotLive = errors.New("not live")

// waitLive polls the liveness path, then the root with a shorter timeout.
func (c *Controller) waitLive(ctx context.Context, proc *shell.Process, base string) error {
	err := c.poll(ctx, proc, base+c.settings.LivenessPath, c.settings.StartupTimeout)
	if errors.Is(err, errNotLive) {
		ctxlog.FromContext(ctx).Debug("Liveness path did not respond, trying root.", "path", c.settings.LivenessPath)
		err = c.poll(ctx, proc, base+"/", c.settings.FallbackTimeout)
	}
	if errors.Is(err, errNotLive) {
		return fmt.Errorf("service did not respond, output: %s", preview(proc.Output()))
	}
	return err
}

func (c *Controller) poll(ctx context.Context, proc *shell.Process, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if proc.Exited() {
			return fmt.Errorf("process exited: %s", preview(proc.Output()))
		}
		if c.reachable(ctx, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return errNotLive
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted while waiting for service: %w", ctx.Err())
		case <-time.After(c.settings.PollInterval):
		}
	}
}

func (c *Controller) reachable(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}

// RunShell executes each line with the configured timeout; a line passes iff
// it exits zero.
func (c *Controller) RunShell(ctx context.Context, lines []string, env map[string]string) *Suite {
	suite := &Suite{}
	for _, line := range lines {
		name := truncate(line, 50)
		if ctx.Err() != nil {
			suite.add(Case{Name: name, Message: "Interrupted"})
			continue
		}

		cmd := shell.Command{Script: line, Dir: c.sb.Dir(), Env: env}
		if c.sb.HasEnvironment() {
			cmd.BinDir = c.sb.BinDir()
		}
		start := time.Now()
		runCtx, cancel := context.WithTimeout(ctx, c.settings.ShellTimeout)
		res, err := shell.Run(runCtx, cmd, c.settings.StopGrace)
		cancel()

		tc := Case{Name: name, Duration: time.Since(start)}
		switch {
		case err != nil:
			tc.Message = err.Error()
		case res.TimedOut:
			tc.Message = "Timeout"
		case res.Interrupted:
			tc.Message = "Interrupted"
		case res.ExitCode == 0:
			tc.Passed, tc.Message = true, "Passed"
		default:
			tc.Message = fmt.Sprintf("Exit code %d", res.ExitCode)
		}
		suite.add(tc)
	}
	return suite
}

func preview(s string) string { return truncate(s, outputPreview) }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
