// Package shell spawns `sh -c` child processes inside the sandbox and
// manages their lifecycle.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// PortVariable is the environment variable that carries the service port to
// child processes.
const PortVariable = "MARKPACT_PORT"

// Command describes a shell script to execute.
type Command struct {
	Script string
	Dir    string
	// BinDir, when set, is prepended to PATH and its parent exported as
	// VIRTUAL_ENV.
	BinDir string
	// Env overrides individual variables of the inherited environment.
	Env map[string]string
}

// Result is the outcome of a completed process.
type Result struct {
	ExitCode int
	// Output is the combined stdout and stderr.
	Output string
	// Interrupted is set when the parent context was cancelled.
	Interrupted bool
	// TimedOut is set when the parent context hit its deadline.
	TimedOut bool
}

// Environ builds the child environment from base.
func Environ(base []string, binDir string, extra map[string]string) []string {
	overrides := map[string]string{}
	for k, v := range extra {
		overrides[k] = v
	}
	if binDir != "" {
		overrides["VIRTUAL_ENV"] = filepath.Dir(binDir)
		path := binDir
		if current := lookup(base, "PATH"); current != "" {
			path = binDir + string(os.PathListSeparator) + current
		}
		overrides["PATH"] = path
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}

func lookup(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == key {
			return v
		}
	}
	return ""
}

func (c Command) build() *exec.Cmd {
	cmd := exec.Command("sh", "-c", c.Script)
	cmd.Dir = c.Dir
	cmd.Env = Environ(os.Environ(), c.BinDir, c.Env)
	// Descendants that keep the output pipe open must not block Wait.
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)
	return cmd
}

// Run executes c to completion and captures its combined output. When ctx
// ends first the process group is terminated, given grace to exit, then
// killed; the result is marked Interrupted or TimedOut accordingly.
func Run(ctx context.Context, c Command, grace time.Duration) (Result, error) {
	p, err := Start(c)
	if err != nil {
		return Result{}, err
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.Stop(grace)
		res := Result{ExitCode: p.ExitCode(), Output: p.Output()}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
		} else {
			res.Interrupted = true
		}
		return res, nil
	}
	return Result{ExitCode: p.ExitCode(), Output: p.Output()}, nil
}

// Process is a running child.
type Process struct {
	cmd  *exec.Cmd
	out  *SafeBuffer
	done chan struct{}
	code int
}

// Start launches c in the background.
func Start(c Command) (*Process, error) {
	cmd := c.build()
	buf := &SafeBuffer{}
	cmd.Stdout = buf
	cmd.Stderr = buf
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", c.Script, err)
	}

	p := &Process{cmd: cmd, out: buf, done: make(chan struct{}), code: -1}
	go func() {
		defer close(p.done)
		err := cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil, errors.Is(err, exec.ErrWaitDelay):
			p.code = 0
		case errors.As(err, &exitErr):
			p.code = exitErr.ExitCode()
		default:
			p.code = -1
		}
	}()
	return p, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Exited reports whether the process has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode is the exit status, or -1 while running or when killed by a
// signal.
func (p *Process) ExitCode() int {
	if !p.Exited() {
		return -1
	}
	return p.code
}

// Output returns what the process has written so far.
func (p *Process) Output() string { return p.out.String() }

// Stop terminates the process group, waits up to grace, then kills it. It
// returns once the process has exited and is safe to call repeatedly.
func (p *Process) Stop(grace time.Duration) {
	if p.Exited() {
		return
	}
	_ = terminate(p.cmd)
	select {
	case <-p.done:
		return
	case <-time.After(grace):
	}
	_ = kill(p.cmd)
	<-p.done
}
