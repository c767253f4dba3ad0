// Package plan folds an ordered block sequence into an execution plan.
package plan

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/vk/markpact/internal/block"
	"github.com/vk/markpact/internal/publish"
)

var (
	// ErrMissingPath is returned when a file block has no path= token.
	ErrMissingPath = errors.New("file block requires path=...")
	// ErrUnsafePath is returned when a file block's path is absolute or
	// leaves the sandbox.
	ErrUnsafePath = errors.New("file path must stay inside the sandbox")
)

// Flavor is the group a test block belongs to.
type Flavor string

const (
	FlavorHTTP  Flavor = "http"
	FlavorShell Flavor = "shell"
)

// FileWrite is one file to materialize.
type FileWrite struct {
	Path    string
	Content string
}

// TestSpec is the body of one test block together with its flavor.
type TestSpec struct {
	Flavor Flavor
	Label  string
	Body   string
	Line   int
}

// Plan is the folded, actionable form of a document.
type Plan struct {
	// Files are unique by path, in order of first appearance; the content is
	// that of the last block naming the path.
	Files        []FileWrite
	Dependencies []string
	// RunCommand is the body of the last run block; HasRun distinguishes an
	// empty run block from none at all.
	RunCommand string
	HasRun     bool
	Tests      []TestSpec
	// Publish is parsed from the last publish block, or nil.
	Publish *publish.Config
}

// BuildError names the block that halted the fold.
type BuildError struct {
	Index int
	Line  int
	Kind  block.Kind
	Meta  string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("block %d (line %d, markpact:%s %q): %v", e.Index+1, e.Line, e.Kind, e.Meta, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Options controls how blocks are folded.
type Options struct {
	// Ecosystem selects which deps blocks contribute dependencies.
	Ecosystem string
}

// Build folds blocks into a Plan in a single left-to-right pass. Any file
// block without a usable path aborts the fold and no plan is returned, so a
// caller can never materialize part of a rejected document.
func Build(blocks []block.Block, opts Options) (*Plan, error) {
	p := &Plan{}
	fileIndex := map[string]int{}

	for i, b := range blocks {
		switch b.Kind {
		case block.KindBootstrap:
			continue

		case block.KindFile:
			rel, err := filePath(b)
			if err != nil {
				return nil, &BuildError{Index: i, Line: b.Line, Kind: b.Kind, Meta: b.Meta, Err: err}
			}
			if idx, ok := fileIndex[rel]; ok {
				p.Files[idx].Content = b.Body
				continue
			}
			fileIndex[rel] = len(p.Files)
			p.Files = append(p.Files, FileWrite{Path: rel, Content: b.Body})

		case block.KindDeps:
			if !namesEcosystem(b.Meta, opts.Ecosystem) {
				continue
			}
			for _, line := range strings.Split(b.Body, "\n") {
				if dep := strings.TrimSpace(line); dep != "" {
					p.Dependencies = append(p.Dependencies, dep)
				}
			}

		case block.KindRun:
			p.RunCommand = b.Body
			p.HasRun = true

		case block.KindTest:
			p.Tests = append(p.Tests, TestSpec{Flavor: FlavorOf(b.Meta), Label: b.Meta, Body: b.Body, Line: b.Line})

		case block.KindPublish:
			cfg := publish.Parse(b.Body, b.Meta)
			p.Publish = &cfg
		}
	}
	return p, nil
}

// FlavorOf infers a test group from a test block's label.
func FlavorOf(label string) Flavor {
	l := strings.ToLower(label)
	switch {
	case l == "" || strings.Contains(l, "http"):
		return FlavorHTTP
	case strings.Contains(l, "shell") || strings.Contains(l, "bash"):
		return FlavorShell
	default:
		return FlavorHTTP
	}
}

// TestsOf returns the test specs of a single flavor, in document order.
func (p *Plan) TestsOf(f Flavor) []TestSpec {
	var out []TestSpec
	for _, t := range p.Tests {
		if t.Flavor == f {
			out = append(out, t)
		}
	}
	return out
}

// FilePaths lists the relative paths of the planned files.
func (p *Plan) FilePaths() []string {
	out := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, f.Path)
	}
	return out
}

func filePath(b block.Block) (string, error) {
	raw, ok := b.Path()
	if !ok {
		return "", ErrMissingPath
	}
	raw = filepath.ToSlash(raw)
	if path.IsAbs(raw) || filepath.IsAbs(raw) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, raw)
	}
	clean := path.Clean(raw)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, raw)
	}
	return clean, nil
}

func namesEcosystem(meta, ecosystem string) bool {
	if ecosystem == "" {
		return false
	}
	for _, field := range strings.Fields(meta) {
		if strings.EqualFold(field, ecosystem) {
			return true
		}
	}
	return false
}
