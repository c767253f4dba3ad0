package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/shell"
)

// FailureLimit bounds the command output carried in a failed Result.
const FailureLimit = 400

const descriptionLimit = 500

// Step is one external command run by a publisher.
type Step struct {
	Stage  string
	Script string
	Env    map[string]string
}

// Run executes s in the sandbox. ok is false when the command did not exit
// zero; payload then holds the bounded failure text.
func Run(ctx context.Context, t Target, s Step) (payload string, ok bool) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running publish step.", "stage", s.Stage, "command", s.Script)

	cmd := shell.Command{Script: s.Script, Dir: t.Sandbox.Dir(), Env: s.Env}
	if t.Sandbox.HasEnvironment() {
		cmd.BinDir = t.Sandbox.BinDir()
	}
	res, err := shell.Run(ctx, cmd, 5*time.Second)
	switch {
	case err != nil:
		return Truncate(err.Error()), false
	case res.Interrupted:
		return "interrupted", false
	case res.ExitCode != 0:
		logger.Debug("Publish step failed.", "stage", s.Stage, "exit_code", res.ExitCode, "output", res.Output)
		return FailureOutput(res.Output, res.ExitCode), false
	}
	return "", true
}

// FailureOutput returns trimmed, bounded command output, or a placeholder
// naming the exit code when there was none.
func FailureOutput(output string, code int) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return fmt.Sprintf("Command failed with exit code %d", code)
	}
	return Truncate(output)
}

// Truncate bounds s to FailureLimit runes.
func Truncate(s string) string {
	if r := []rune(s); len(r) > FailureLimit {
		return string(r[:FailureLimit])
	}
	return s
}

// Failed builds a failed Result for stage.
func Failed(t Target, stage, payload, hint string) Result {
	msg := fmt.Sprintf("%s failed: %s", stage, payload)
	if hint != "" {
		msg += "\nHint: " + hint
	}
	return Result{Registry: t.Config.Registry, Message: msg, Version: t.Config.Version}
}

// Description joins the configured description with the prose of the
// document, skipping headings and fenced blocks.
func Description(t Target) string {
	var parts []string
	if t.Config.Description != "" {
		parts = append(parts, t.Config.Description)
	}
	inFence := false
	for _, line := range strings.Split(t.Document, "\n") {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "```") {
			inFence = !inFence
			continue
		}
		if inFence || s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		parts = append(parts, s)
	}
	desc := strings.Join(parts, " ")
	if r := []rune(desc); len(r) > descriptionLimit {
		desc = string(r[:descriptionLimit-3]) + "..."
	}
	return desc
}

// WriteIfAbsent writes content to rel inside the sandbox unless the file
// already exists.
func WriteIfAbsent(t Target, rel, content string) (bool, error) {
	if _, err := os.Stat(filepath.Join(t.Sandbox.Dir(), rel)); err == nil {
		return false, nil
	}
	if _, err := t.Sandbox.Write(rel, content); err != nil {
		return false, err
	}
	return true, nil
}
