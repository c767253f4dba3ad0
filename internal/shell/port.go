package shell

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	portPlaceholder = regexp.MustCompile(`\$\{` + PortVariable + `:-\d+\}`)
	portFlag        = regexp.MustCompile(`--port\s+\d+`)
)

// RewritePort points every port placeholder default and explicit --port flag
// in text at port.
func RewritePort(text string, port int) string {
	p := strconv.Itoa(port)
	text = portPlaceholder.ReplaceAllLiteralString(text, fmt.Sprintf("${%s:-%s}", PortVariable, p))
	return portFlag.ReplaceAllLiteralString(text, "--port "+p)
}

// HasPortReference reports whether RewritePort would change anything.
func HasPortReference(text string) bool {
	return portPlaceholder.MatchString(text) || portFlag.MatchString(text)
}
