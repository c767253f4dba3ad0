package block

import (
	"regexp"
	"strings"
)

// fenceRe matches one instruction block. The kind alternation is closed so
// that unknown kinds (and prefixes such as `files`) never match, and the body
// is optional so that an empty block still parses. Carriage returns are
// tolerated at line ends so offsets stay valid for CRLF documents.
var fenceRe = regexp.MustCompile(
	"(?ms)^```" + Namespace + `:(file|deps|run|test|publish|bootstrap)(?:[ \t]+([^\r\n]*?))?[ \t\r]*\n` +
		"(?:(.*?)\\r?\\n)??[ \\t]*```[ \\t\\r]*$",
)

// Span locates a block inside the text it was parsed from. Offsets are byte
// offsets into that text; BodyStart == BodyEnd for an empty block.
type Span struct {
	Block
	Start, End         int
	BodyStart, BodyEnd int
}

// Locate returns every instruction block in text together with its offsets,
// in document order.
func Locate(text string) []Span {
	matches := fenceRe.FindAllStringSubmatchIndex(text, -1)
	spans := make([]Span, 0, len(matches))
	line, cursor := 1, 0
	for _, m := range matches {
		line += strings.Count(text[cursor:m[0]], "\n")
		cursor = m[0]

		s := Span{
			Block: Block{Kind: Kind(text[m[2]:m[3]]), Line: line},
			Start: m[0],
			End:   m[1],
		}
		if m[4] >= 0 {
			s.Meta = strings.TrimSpace(text[m[4]:m[5]])
		}
		if m[6] >= 0 {
			s.BodyStart, s.BodyEnd = m[6], m[7]
			s.Body = strings.TrimSpace(strings.ReplaceAll(text[m[6]:m[7]], "\r\n", "\n"))
		} else {
			// The body of an empty block sits right before the closing fence.
			s.BodyStart = strings.LastIndex(text[:m[1]], "```")
			s.BodyStart = strings.LastIndexByte(text[:s.BodyStart], '\n') + 1
			s.BodyEnd = s.BodyStart
		}
		spans = append(spans, s)
	}
	return spans
}

// Parse returns every instruction block in text, in document order.
func Parse(text string) []Block {
	spans := Locate(text)
	blocks := make([]Block, 0, len(spans))
	for _, s := range spans {
		blocks = append(blocks, s.Block)
	}
	return blocks
}

// Contains reports whether text has at least one instruction fence opening.
func Contains(text string) bool {
	return strings.Contains(text, "```"+Namespace+":")
}
