// Package pypi publishes the sandbox as a Python distribution to PyPI or
// TestPyPI with `build` and `twine`.
package pypi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the PyPI and TestPyPI publishers.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPublisher(publish.RegistryPyPI, &Publisher{})
	r.RegisterPublisher(publish.RegistryPyPITest, &Publisher{Test: true})
}

// Publisher uploads to PyPI, or TestPyPI when Test is set.
type Publisher struct {
	Test bool
}

func (p *Publisher) where() string {
	if p.Test {
		return "TestPyPI"
	}
	return "PyPI"
}

// Publish builds the distribution and uploads it.
func (p *Publisher) Publish(ctx context.Context, t registry.Target) registry.Result {
	logger := ctxlog.FromContext(ctx)

	content, err := Pyproject(t)
	if err != nil {
		return registry.Failed(t, "Build", err.Error(), "")
	}
	if wrote, err := registry.WriteIfAbsent(t, "pyproject.toml", content); err != nil {
		return registry.Failed(t, "Build", err.Error(), "")
	} else if wrote {
		logger.Info("Generated pyproject.toml.")
	}

	// Stale artifacts from an earlier version would be uploaded again.
	_ = os.RemoveAll(filepath.Join(t.Sandbox.Dir(), "dist"))

	if payload, ok := registry.Run(ctx, t, registry.Step{Stage: "Build", Script: "python3 -m build"}); !ok {
		return registry.Failed(t, "Build", payload, buildHint(payload))
	}

	upload := "python3 -m twine upload --non-interactive"
	if p.Test {
		upload += " --repository testpypi"
	}
	upload += " dist/*"
	if payload, ok := registry.Run(ctx, t, registry.Step{Stage: "Upload", Script: upload}); !ok {
		return registry.Failed(t, "Upload", payload, p.uploadHint(payload))
	}

	host := "pypi.org"
	if p.Test {
		host = "test.pypi.org"
	}
	return registry.Result{
		Success: true,
		Message: "Published to " + p.where(),
		Version: t.Config.Version,
		URL:     fmt.Sprintf("https://%s/project/%s/", host, t.Config.Name),
	}
}

func buildHint(payload string) string {
	switch {
	case strings.Contains(payload, "No module named build"):
		return "'build' package not found. Install it with: pip install build"
	case strings.Contains(payload, "hatchling"):
		return "'hatchling' backend not found. Install it with: pip install hatchling"
	}
	return ""
}

func (p *Publisher) uploadHint(payload string) string {
	switch {
	case strings.Contains(payload, "File already exists"), strings.Contains(payload, "file-name-reuse"):
		return fmt.Sprintf("a file for this version already exists on %s. Bump the version with --bump patch/minor/major or change version in the markpact:publish block.", p.where())
	case strings.Contains(payload, "too similar to an existing project"):
		return fmt.Sprintf("the package name is too similar to an existing project on %s. Change 'name =' in the markpact:publish block.", p.where())
	}
	return fmt.Sprintf("configure ~/.pypirc or set TWINE_USERNAME/TWINE_PASSWORD. Target: %s", p.where())
}

type pyproject struct {
	BuildSystem buildSystem `toml:"build-system"`
	Project     project     `toml:"project"`
	Tool        *tool       `toml:"tool,omitempty"`
}

type buildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

type project struct {
	Name           string            `toml:"name"`
	Version        string            `toml:"version"`
	Description    string            `toml:"description"`
	Readme         string            `toml:"readme,omitempty"`
	License        string            `toml:"license,omitempty"`
	Authors        []author          `toml:"authors,omitempty"`
	Keywords       []string          `toml:"keywords"`
	RequiresPython string            `toml:"requires-python"`
	URLs           map[string]string `toml:"urls,omitempty"`
}

type author struct {
	Name string `toml:"name"`
}

type tool struct {
	Hatch hatch `toml:"hatch"`
}

type hatch struct {
	Build struct {
		Targets struct {
			Wheel struct {
				Packages []string `toml:"packages"`
			} `toml:"wheel"`
		} `toml:"targets"`
	} `toml:"build"`
}

// Pyproject renders a minimal hatchling pyproject.toml for t.
func Pyproject(t registry.Target) (string, error) {
	doc := pyproject{
		BuildSystem: buildSystem{Requires: []string{"hatchling"}, BuildBackend: "hatchling.build"},
		Project: project{
			Name:           t.Config.Name,
			Version:        t.Config.Version,
			Description:    registry.Description(t),
			License:        t.Config.License,
			Keywords:       t.Config.Keywords,
			RequiresPython: ">=3.10",
		},
	}
	if doc.Project.Keywords == nil {
		doc.Project.Keywords = []string{}
	}
	if t.Config.Author != "" {
		doc.Project.Authors = []author{{Name: t.Config.Author}}
	}
	if t.Config.Repository != "" {
		doc.Project.URLs = map[string]string{"Homepage": t.Config.Repository}
	}
	if _, err := os.Stat(filepath.Join(t.Sandbox.Dir(), "README.md")); err == nil {
		doc.Project.Readme = "README.md"
	}
	if pkgs := packages(t.Sandbox.Dir()); len(pkgs) > 0 {
		doc.Tool = &tool{}
		doc.Tool.Hatch.Build.Targets.Wheel.Packages = pkgs
	}

	b, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render pyproject.toml: %w", err)
	}
	return string(b), nil
}

// packages lists top-level directories that are Python packages.
func packages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), "__init__.py")); err == nil {
			out = append(out, e.Name())
		}
	}
	return out
}
