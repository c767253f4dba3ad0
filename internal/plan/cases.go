package plan

import "strings"

// CaseLines returns the executable lines of a test body: trimmed, with blank
// lines and `#` comments removed.
func CaseLines(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
