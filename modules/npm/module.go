// Package npm publishes the sandbox as an npm package.
package npm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the npm publisher.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPublisher(publish.RegistryNPM, &Publisher{})
}

// Publisher runs `npm publish` against RegistryURL, the public registry when
// empty.
type Publisher struct {
	RegistryURL string
	// Label names the target in result messages.
	Label string
	// PackageURL formats the published package's page from its name.
	PackageURL func(name string) string
}

// Publish generates package.json and index.js when absent, then publishes.
func (p *Publisher) Publish(ctx context.Context, t registry.Target) registry.Result {
	logger := ctxlog.FromContext(ctx)

	manifest, err := PackageJSON(t)
	if err != nil {
		return registry.Failed(t, "Publish", err.Error(), "")
	}
	if wrote, err := registry.WriteIfAbsent(t, "package.json", manifest); err != nil {
		return registry.Failed(t, "Publish", err.Error(), "")
	} else if wrote {
		logger.Info("Generated package.json.")
	}
	entry := fmt.Sprintf("module.exports = { name: %q, version: %q };\n", t.Config.Name, t.Config.Version)
	if _, err := registry.WriteIfAbsent(t, "index.js", entry); err != nil {
		return registry.Failed(t, "Publish", err.Error(), "")
	}

	script := "npm publish --access public"
	if p.RegistryURL != "" && p.RegistryURL != DefaultRegistry {
		script += " --registry " + p.RegistryURL
	}
	if payload, ok := registry.Run(ctx, t, registry.Step{Stage: "Publish", Script: script}); !ok {
		return registry.Failed(t, "Publish", payload, hint(payload))
	}

	label, url := p.Label, fmt.Sprintf("https://www.npmjs.com/package/%s", t.Config.Name)
	if label == "" {
		label = "npm"
	}
	if p.PackageURL != nil {
		url = p.PackageURL(t.Config.Name)
	}
	return registry.Result{Success: true, Message: "Published to " + label, Version: t.Config.Version, URL: url}
}

func hint(payload string) string {
	if strings.Contains(payload, "cannot publish over the previously published versions") || strings.Contains(payload, "EPUBLISHCONFLICT") {
		return "this version is already published. Bump the version with --bump patch/minor/major."
	}
	return "run npm login and ensure package name is valid"
}

type repository struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type packageJSON struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Main        string            `json:"main"`
	Scripts     map[string]string `json:"scripts"`
	Keywords    []string          `json:"keywords"`
	Author      string            `json:"author"`
	License     string            `json:"license"`
	Repository  *repository       `json:"repository,omitempty"`
}

// PackageJSON renders a minimal package.json for t.
func PackageJSON(t registry.Target) (string, error) {
	pkg := packageJSON{
		Name:        t.Config.Name,
		Version:     t.Config.Version,
		Description: registry.Description(t),
		Main:        "index.js",
		Scripts:     map[string]string{"test": `echo "No tests specified" && exit 0`},
		Keywords:    t.Config.Keywords,
		Author:      t.Config.Author,
		License:     t.Config.License,
	}
	if pkg.Keywords == nil {
		pkg.Keywords = []string{}
	}
	if t.Config.Repository != "" {
		pkg.Repository = &repository{Type: "git", URL: t.Config.Repository}
	}
	b, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render package.json: %w", err)
	}
	return string(b) + "\n", nil
}
