// Package sandbox owns the working directory in which documents are
// materialized and executed.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/plan"
)

const (
	// ManifestName is the dependency manifest written inside the sandbox.
	ManifestName = "requirements.txt"
	// EnvironmentName is the nested virtual-environment directory.
	EnvironmentName = ".venv"
)

// Sandbox is a working directory. Operations are not transactional across
// files; re-running them is idempotent per file.
type Sandbox struct {
	dir string
}

// New resolves dir to an absolute path and creates it if absent.
func New(dir string) (*Sandbox, error) {
	if dir == "" {
		return nil, fmt.Errorf("sandbox directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox path '%s': %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox '%s': %w", abs, err)
	}
	return &Sandbox{dir: abs}, nil
}

// Dir returns the absolute sandbox path.
func (s *Sandbox) Dir() string { return s.dir }

// Resolve returns the absolute path of rel inside the sandbox.
func (s *Sandbox) Resolve(rel string) (string, error) {
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	inside, err := filepath.Rel(s.dir, full)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' escapes the sandbox", rel)
	}
	return full, nil
}

// Write creates rel's parent directories and overwrites the file with
// content, returning the absolute path written.
func (s *Sandbox) Write(rel, content string) (string, error) {
	full, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for '%s': %w", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write '%s': %w", rel, err)
	}
	return full, nil
}

// Materialize writes every planned file in order. Files the plan does not
// mention are left alone. It stops at the first failure; files already
// written stay on disk.
func (s *Sandbox) Materialize(ctx context.Context, files []plan.FileWrite) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	written := make([]string, 0, len(files))
	for _, f := range files {
		full, err := s.Write(f.Path, f.Content)
		if err != nil {
			return written, err
		}
		logger.Info("Wrote file.", "path", full)
		written = append(written, full)
	}
	return written, nil
}

// WriteManifest replaces the dependency manifest with deps, one per line.
func (s *Sandbox) WriteManifest(deps []string) (string, error) {
	return s.Write(ManifestName, strings.Join(deps, "\n"))
}

// EnvironmentDir is the path of the nested virtual environment.
func (s *Sandbox) EnvironmentDir() string {
	return filepath.Join(s.dir, EnvironmentName)
}

// BinDir is the executable directory of the nested virtual environment.
func (s *Sandbox) BinDir() string {
	return filepath.Join(s.EnvironmentDir(), "bin")
}

// HasEnvironment reports whether the environment's interpreter exists.
func (s *Sandbox) HasEnvironment() bool {
	_, err := os.Stat(filepath.Join(s.BinDir(), "python"))
	return err == nil
}

// Clean removes the sandbox directory and everything in it.
func (s *Sandbox) Clean() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove sandbox '%s': %w", s.dir, err)
	}
	return nil
}
