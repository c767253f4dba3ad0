// Package block implements the document grammar: it extracts the typed,
// fenced instruction blocks from raw Markdown text.
//
// An instruction block opens with a fence line of the form
//
//	```markpact:<kind>[ <metadata>]
//
// and closes at the next line consisting only of a fence marker, optionally
// surrounded by spaces or tabs. Fenced blocks with any other opening line are
// not instruction blocks and are never returned.
package block

import (
	"regexp"
)

// Namespace is the fixed prefix that marks a fenced block as an instruction.
const Namespace = "markpact"

// Kind identifies the instruction carried by a block.
type Kind string

const (
	KindFile      Kind = "file"
	KindDeps      Kind = "deps"
	KindRun       Kind = "run"
	KindTest      Kind = "test"
	KindPublish   Kind = "publish"
	KindBootstrap Kind = "bootstrap"
)

// Block is one parsed instruction. Blocks are immutable once parsed.
type Block struct {
	Kind Kind
	// Meta is the trimmed remainder of the opening fence line after the kind.
	Meta string
	// Body is the trimmed content between the fences.
	Body string
	// Line is the 1-based line number of the opening fence.
	Line int
}

var pathRe = regexp.MustCompile(`(?:^|\s)path=(\S+)`)

// Path returns the value of the first `path=<value>` token in the metadata.
func (b Block) Path() (string, bool) {
	m := pathRe.FindStringSubmatch(b.Meta)
	if m == nil {
		return "", false
	}
	return m[1], true
}
