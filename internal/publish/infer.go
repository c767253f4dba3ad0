package publish

import (
	"regexp"
	"strings"

	"github.com/vk/markpact/internal/config"
)

var (
	slugRe        = regexp.MustCompile(`[^a-z0-9]+`)
	webServerHint = []string{"uvicorn", "gunicorn", "flask run", "node ", "npm start"}
)

// Infer builds a config for a document without a publish block from its
// title, first paragraph, the planned file paths and the run command.
func Infer(markdown string, paths []string, runCommand string, defaults config.PublishSettings) Config {
	var hasPackageJSON, hasPyProject, hasDockerfile, hasJS, hasPythonPkg bool
	for _, p := range paths {
		lower := strings.ToLower(p)
		switch {
		case strings.HasSuffix(lower, "package.json"):
			hasPackageJSON = true
		case strings.HasSuffix(lower, "pyproject.toml"), strings.HasSuffix(lower, "setup.py"):
			hasPyProject = true
		case strings.HasSuffix(lower, "dockerfile"):
			hasDockerfile = true
		case strings.HasSuffix(lower, "__init__.py"):
			hasPythonPkg = true
		}
		for _, ext := range []string{".js", ".ts", ".mjs", ".cjs"} {
			if strings.HasSuffix(lower, ext) {
				hasJS = true
			}
		}
	}

	registry := RegistryUnknown
	switch {
	case hasPackageJSON || hasJS:
		registry = RegistryNPM
	case hasDockerfile || runsWebServer(runCommand):
		registry = RegistryDocker
	case hasPyProject || hasPythonPkg:
		registry = RegistryPyPI
	}

	base := slugify(FirstHeading(markdown))
	if !strings.HasPrefix(base, "markpact-") {
		base = "markpact-" + base
	}
	name := base
	switch registry {
	case RegistryDocker:
		if defaults.DockerNamespace != "" {
			name = defaults.DockerNamespace + "/" + base
		}
	case RegistryNPM:
		if defaults.NPMScope != "" {
			name = "@" + defaults.NPMScope + "/" + base
		}
	}

	version := defaults.Version
	if version == "" {
		version = "0.1.0"
	}
	license := defaults.License
	if license == "" {
		license = "MIT"
	}

	return Config{
		Registry:    registry,
		Name:        name,
		Version:     version,
		Description: FirstParagraph(markdown),
		Author:      defaults.Author,
		License:     license,
		Repository:  defaults.Repository,
	}
}

func runsWebServer(cmd string) bool {
	for _, hint := range webServerHint {
		if strings.Contains(cmd, hint) {
			return true
		}
	}
	return false
}

func slugify(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "my-project"
	}
	return s
}

// FirstHeading returns the text of the first level-one heading.
func FirstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return "My Project"
}

// FirstParagraph returns the first paragraph after the first level-one
// heading, joined onto one line.
func FirstParagraph(markdown string) string {
	var buf []string
	started := false
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "# ") {
			started = true
			continue
		}
		if !started {
			continue
		}
		if strings.TrimSpace(line) == "" {
			if len(buf) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "## ") {
			break
		}
		buf = append(buf, strings.TrimSpace(line))
	}
	return strings.Join(buf, " ")
}
