// Package document applies targeted edits to a source document. Every edit
// rewrites only the body of the instruction block it targets; all other
// bytes, including foreign fenced blocks, are left untouched.
package document

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/vk/markpact/internal/block"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/shell"
)

// File is a document persisted on disk.
type File struct {
	path      string
	ecosystem string
}

// Open returns a File for path, which must exist.
func Open(path, ecosystem string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open document '%s': %w", path, err)
	}
	return &File{path: path, ecosystem: ecosystem}, nil
}

// Path returns the document's location.
func (f *File) Path() string { return f.path }

// Read returns the current text.
func (f *File) Read() (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("failed to read document '%s': %w", f.path, err)
	}
	return string(b), nil
}

// Write replaces the document's text, keeping its permissions.
func (f *File) Write(text string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(f.path, []byte(text), mode); err != nil {
		return fmt.Errorf("failed to write document '%s': %w", f.path, err)
	}
	return nil
}

func (f *File) update(edit func(string) (string, bool)) (bool, error) {
	text, err := f.Read()
	if err != nil {
		return false, err
	}
	next, changed := edit(text)
	if !changed {
		return false, nil
	}
	return true, f.Write(next)
}

// ReplacePort persists a port change into the document's run blocks.
func (f *File) ReplacePort(port int) (bool, error) {
	return f.update(func(t string) (string, bool) { return ReplacePort(t, port) })
}

// AddDependency appends name to the document's dependency block.
func (f *File) AddDependency(name string) (bool, error) {
	return f.update(func(t string) (string, bool) { return AddDependency(t, f.ecosystem, name) })
}

// SetVersion writes version into the document's publish block.
func (f *File) SetVersion(version string) (bool, error) {
	return f.update(func(t string) (string, bool) { return SetVersion(t, version) })
}

// EnsurePublishBlock inserts cfg as a publish block unless one exists.
func (f *File) EnsurePublishBlock(cfg publish.Config) (bool, error) {
	return f.update(func(t string) (string, bool) {
		if hasKind(t, block.KindPublish) {
			return t, false
		}
		return InsertPublishBlock(t, cfg), true
	})
}

func hasKind(text string, kind block.Kind) bool {
	for _, s := range block.Locate(text) {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// replaceBody swaps the body of s for body.
func replaceBody(text string, s block.Span, body string) string {
	if s.BodyStart == s.BodyEnd {
		return text[:s.BodyStart] + body + "\n" + text[s.BodyEnd:]
	}
	return text[:s.BodyStart] + body + text[s.BodyEnd:]
}

// ReplacePort rewrites the port placeholder default and any --port flag in
// every run block.
func ReplacePort(text string, port int) (string, bool) {
	spans := block.Locate(text)
	changed := false
	// Back to front so earlier offsets stay valid.
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		if s.Kind != block.KindRun {
			continue
		}
		body := text[s.BodyStart:s.BodyEnd]
		if next := shell.RewritePort(body, port); next != body {
			text = replaceBody(text, s, next)
			changed = true
		}
	}
	return text, changed
}

// AddDependency appends name to the first deps block naming ecosystem. It
// reports false when no such block exists or name is already listed.
func AddDependency(text, ecosystem, name string) (string, bool) {
	for _, s := range block.Locate(text) {
		if s.Kind != block.KindDeps || !namesEcosystem(s.Meta, ecosystem) {
			continue
		}
		body := text[s.BodyStart:s.BodyEnd]
		for _, line := range strings.Split(body, "\n") {
			if sameDistribution(line, name) {
				return text, false
			}
		}
		trimmed := strings.TrimRight(body, " \t\r\n")
		if trimmed == "" {
			return replaceBody(text, s, name), true
		}
		return replaceBody(text, s, trimmed+"\n"+name), true
	}
	return text, false
}

func namesEcosystem(meta, ecosystem string) bool {
	for _, f := range strings.Fields(meta) {
		if strings.EqualFold(f, ecosystem) {
			return true
		}
	}
	return false
}

var requirementName = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

func sameDistribution(line, name string) bool {
	m := requirementName.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	return normalize(m[1]) == normalize(name)
}

func normalize(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "-", ".", "-").Replace(s))
}

var versionLine = regexp.MustCompile(`(?m)^([ \t]*version[ \t]*[=:][ \t]*)([^\r\n]*)$`)

// SetVersion rewrites the version line of the last publish block, adding one
// when the block has none.
func SetVersion(text, version string) (string, bool) {
	var target *block.Span
	spans := block.Locate(text)
	for i := range spans {
		if spans[i].Kind == block.KindPublish {
			target = &spans[i]
		}
	}
	if target == nil {
		return text, false
	}

	body := text[target.BodyStart:target.BodyEnd]
	var next string
	if versionLine.MatchString(body) {
		next = versionLine.ReplaceAllString(body, "${1}"+version)
	} else if strings.TrimSpace(body) == "" {
		next = "version = " + version
	} else {
		next = strings.TrimRight(body, " \t\r\n") + "\nversion = " + version
	}
	if next == body {
		return text, false
	}
	return replaceBody(text, *target, next), true
}

// InsertPublishBlock places cfg's block before the first deps block, or at
// the end of the document when there is none.
func InsertPublishBlock(text string, cfg publish.Config) string {
	rendered := cfg.Block()
	for _, s := range block.Locate(text) {
		if s.Kind == block.KindDeps {
			return text[:s.Start] + rendered + "\n" + text[s.Start:]
		}
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + "\n" + rendered
}
