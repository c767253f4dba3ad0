package publish

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompt asks the operator to confirm or replace every field of cfg. An
// empty answer keeps the current value. Reading stops quietly at EOF.
func Prompt(in io.Reader, out io.Writer, cfg Config) Config {
	r := bufio.NewReader(in)
	ask := func(label, current string) string {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
		line, _ := r.ReadString('\n')
		if v := strings.TrimSpace(line); v != "" {
			return v
		}
		return current
	}

	fmt.Fprintln(out, "No publish block found. Press Enter to accept defaults.")
	cfg.Registry = Registry(ask("Registry (pypi, pypi-test, npm, docker, github, ghcr, s3)", string(cfg.Registry)))
	cfg.Name = ask("Package/Image name", cfg.Name)
	cfg.Version = ask("Version", cfg.Version)
	cfg.Description = ask("Description", cfg.Description)
	cfg.Author = ask("Author", cfg.Author)
	cfg.License = ask("License", cfg.License)
	cfg.Repository = ask("Repository URL", cfg.Repository)
	cfg.Keywords = splitKeywords(ask("Keywords (comma-separated)", strings.Join(cfg.Keywords, ",")))
	return cfg
}
