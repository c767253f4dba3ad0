// Package publish models the publish configuration of a document: parsing
// the publish block, semantic-version arithmetic, inference of a config for
// documents without a publish block and interactive completion.
package publish

import (
	"fmt"
	"strings"
)

// Registry names a publish target.
type Registry string

const (
	RegistryPyPI     Registry = "pypi"
	RegistryPyPITest Registry = "pypi-test"
	RegistryNPM      Registry = "npm"
	RegistryDocker   Registry = "docker"
	RegistryGitHub   Registry = "github"
	RegistryGHCR     Registry = "ghcr"
	RegistryS3       Registry = "s3"
	RegistryUnknown  Registry = "unknown"
)

// Registries lists every publish target a build is expected to support.
var Registries = []Registry{
	RegistryPyPI, RegistryPyPITest, RegistryNPM, RegistryDocker,
	RegistryGitHub, RegistryGHCR, RegistryS3,
}

// Config is the publish configuration of a document.
type Config struct {
	Registry    Registry `yaml:"registry"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	License     string   `yaml:"license,omitempty"`
	Repository  string   `yaml:"repository,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
}

// Default returns the config a publish block starts from before its lines
// are applied.
func Default() Config {
	return Config{
		Registry: RegistryPyPI,
		Name:     "my-package",
		Version:  "0.1.0",
		License:  "MIT",
	}
}

// fields maps every recognised key to its setter. Keys not present here are
// ignored by Parse.
var fields = map[string]func(c *Config, v string){
	"registry":    func(c *Config, v string) { c.Registry = Registry(strings.ToLower(v)) },
	"name":        func(c *Config, v string) { c.Name = v },
	"version":     func(c *Config, v string) { c.Version = v },
	"description": func(c *Config, v string) { c.Description = v },
	"author":      func(c *Config, v string) { c.Author = v },
	"license":     func(c *Config, v string) { c.License = v },
	"repository":  func(c *Config, v string) { c.Repository = v },
	"keywords":    func(c *Config, v string) { c.Keywords = splitKeywords(v) },
}

// Parse reads a publish block. Lines are `key=value` or `key: value`; blank
// lines, `#` comments and unknown keys are skipped. When the metadata
// contains `=`, each of its whitespace-separated tokens is read as a line
// ahead of the body.
func Parse(body, meta string) Config {
	cfg := Default()

	var lines []string
	if strings.Contains(meta, "=") {
		lines = append(lines, strings.Fields(meta)...)
	}
	lines = append(lines, strings.Split(body, "\n")...)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		if set, known := fields[key]; known {
			set(&cfg, value)
		}
	}
	return cfg
}

func splitKeyValue(line string) (string, string, bool) {
	sep := strings.IndexByte(line, '=')
	if sep < 0 {
		sep = strings.IndexByte(line, ':')
	}
	if sep < 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.TrimSpace(line[:sep]))
	value := strings.Trim(strings.TrimSpace(line[sep+1:]), `"'`)
	return key, value, true
}

func splitKeywords(v string) []string {
	var out []string
	for _, k := range strings.Split(v, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks the invariants a config must hold before publishing.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("publish: name is required")
	}
	if _, err := ParseVersion(c.Version); err != nil {
		return err
	}
	return nil
}

// Block renders c as a publish block, fences included.
func (c Config) Block() string {
	var b strings.Builder
	b.WriteString("```markpact:publish\n")
	fmt.Fprintf(&b, "registry = %s\n", c.Registry)
	fmt.Fprintf(&b, "name = %s\n", c.Name)
	fmt.Fprintf(&b, "version = %s\n", c.Version)
	fmt.Fprintf(&b, "description = %s\n", c.Description)
	fmt.Fprintf(&b, "author = %s\n", c.Author)
	fmt.Fprintf(&b, "license = %s\n", c.License)
	if c.Repository != "" {
		fmt.Fprintf(&b, "repository = %s\n", c.Repository)
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(&b, "keywords = %s\n", strings.Join(c.Keywords, ", "))
	}
	b.WriteString("```\n")
	return b.String()
}
