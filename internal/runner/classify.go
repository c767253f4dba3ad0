package runner

import (
	"regexp"
	"strings"
)

// FailureKind is the classification of a failed run's output.
type FailureKind string

const (
	PortInUse     FailureKind = "port_in_use"
	MissingModule FailureKind = "missing_module"
	SyntaxError   FailureKind = "syntax_error"
	ImportError   FailureKind = "import_error"
	Unknown       FailureKind = "unknown"
)

// classifiers are checked in order against the lowercased output.
var classifiers = []struct {
	phrase string
	kind   FailureKind
}{
	{"address already in use", PortInUse},
	{"modulenotfounderror", MissingModule},
	{"syntaxerror", SyntaxError},
	{"importerror", ImportError},
}

// Classify maps combined process output to a FailureKind.
func Classify(output string) FailureKind {
	lower := strings.ToLower(output)
	for _, c := range classifiers {
		if strings.Contains(lower, c.phrase) {
			return c.kind
		}
	}
	return Unknown
}

var missingModule = regexp.MustCompile(`No module named ['"]?([\w.]+)`)

// ModuleName extracts the top-level module from a module-not-found message,
// or "" when none is named.
func ModuleName(output string) string {
	m := missingModule.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	top, _, _ := strings.Cut(m[1], ".")
	return top
}
