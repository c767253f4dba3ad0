// Package converter rewrites plain Markdown code fences into instruction
// blocks using ordered, auditable pattern tables.
package converter

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/vk/markpact/internal/block"
)

// Detection is the classification of one plain fence.
type Detection struct {
	Kind       block.Kind
	Meta       string
	Confidence float64
	Reason     string
}

// Converted records one rewritten fence.
type Converted struct {
	Lang       string     `yaml:"lang"`
	Kind       block.Kind `yaml:"kind"`
	Meta       string     `yaml:"meta"`
	Confidence float64    `yaml:"confidence"`
	Reason     string     `yaml:"reason"`
}

// Result is the outcome of Convert.
type Result struct {
	Text string `yaml:"-"`
	// AlreadyMarked is set when the input already held instruction blocks
	// and was returned unchanged.
	AlreadyMarked bool        `yaml:"already_marked"`
	Blocks        []Converted `yaml:"blocks"`
	Changes       []string    `yaml:"changes"`
}

const minConfidence = 0.5

// Detect classifies a fence by its language tag and content.
func Detect(lang, body string) (Detection, bool) {
	lower := strings.ToLower(body)
	head := firstLines(body, 10)

	if p, ok := pythonDeps.match(body); ok && (plainTags[lang] || strings.Contains(lower, "requirements")) {
		return Detection{block.KindDeps, "python", 0.9, "Detected Python dependencies (pattern: " + short(p) + ")"}, true
	}
	if _, ok := nodeDeps.match(body); ok && (lang == "json" || lang == "") && strings.Contains(body, `"dependencies"`) {
		return Detection{block.KindDeps, "node", 0.8, "Detected Node.js package.json"}, true
	}
	if p, ok := runCommand.match(head); ok && shellTags[lang] {
		return Detection{block.KindRun, "", 0.85, "Detected run command (pattern: " + short(p) + ")"}, true
	}
	for _, r := range fileRules {
		if _, ok := r.match(head); ok {
			detected := r.name
			if _, known := extensions[lang]; known && !shellTags[lang] {
				detected = lang
			}
			return Detection{block.KindFile, detected, 0.8, "Detected " + r.name + " file content"}, true
		}
	}
	if !shellTags[lang] && !plainTags[lang] {
		return Detection{block.KindFile, lang, 0.6, "Assuming file based on language tag: " + lang}, true
	}
	return Detection{Reason: "Could not determine block type"}, false
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func short(p *regexp.Regexp) string {
	s := p.String()
	if len(s) > 30 {
		return s[:30]
	}
	return s
}

var (
	webApp     = regexp.MustCompile(`app\s*=\s*(Flask|FastAPI)\(`)
	className  = regexp.MustCompile(`(?m)^class\s+(\w+)`)
	titleTag   = regexp.MustCompile(`<title>([^<]+)</title>`)
	plainFence = regexp.MustCompile("(?ms)^```(\\w*)\\n(.*?)\\n```")
)

// SuggestFilename picks a path for a detected file block.
func SuggestFilename(lang, body string, index int) string {
	ext, ok := extensions[lang]
	if !ok {
		ext = ".txt"
		if lang != "" {
			ext = "." + lang
		}
	}

	switch lang {
	case "python", "py":
		if webApp.MatchString(body) {
			return "app" + ext
		}
		if m := className.FindStringSubmatch(body); m != nil {
			return strings.ToLower(m[1]) + ext
		}
		if strings.Contains(body, "__name__") && strings.Contains(body, "__main__") {
			return "main" + ext
		}
	case "html":
		if m := titleTag.FindStringSubmatch(body); m != nil {
			name := strings.ReplaceAll(strings.ToLower(m[1]), " ", "_")
			if r := []rune(name); len(r) > 20 {
				name = string(r[:20])
			}
			return name + ".html"
		}
		return "index.html"
	}
	return fmt.Sprintf("file_%d%s", index, ext)
}

// Convert rewrites every confidently classified plain fence. At most one
// deps block and one run block are produced; fences left alone keep their
// exact bytes. Text that already holds instruction blocks is returned as is.
func Convert(text string) Result {
	res := Result{Text: text}
	if block.Contains(text) {
		res.AlreadyMarked = true
		res.Changes = append(res.Changes, "File already contains markpact blocks")
		return res
	}

	var b strings.Builder
	last, fileIndex := 0, 0
	depsFound, runFound := false, false

	for _, m := range plainFence.FindAllStringSubmatchIndex(text, -1) {
		lang, body := text[m[2]:m[3]], text[m[4]:m[5]]
		det, ok := Detect(lang, body)
		if !ok || det.Confidence < minConfidence {
			continue
		}

		var opening string
		switch det.Kind {
		case block.KindDeps:
			if depsFound {
				continue
			}
			depsFound = true
			opening = fmt.Sprintf("```%s:deps %s", block.Namespace, det.Meta)
		case block.KindRun:
			if runFound {
				continue
			}
			runFound = true
			opening = fmt.Sprintf("```%s:run", block.Namespace)
		case block.KindFile:
			name := SuggestFilename(det.Meta, body, fileIndex)
			fileIndex++
			opening = fmt.Sprintf("```%s:file path=%s", block.Namespace, name)
		}

		b.WriteString(text[last:m[0]])
		b.WriteString(opening + "\n" + body + "\n```")
		last = m[1]

		res.Blocks = append(res.Blocks, Converted{Lang: lang, Kind: det.Kind, Meta: det.Meta, Confidence: det.Confidence, Reason: det.Reason})
		res.Changes = append(res.Changes, fmt.Sprintf("[CONVERT] ```%s → %s (%s)", lang, opening, det.Reason))
	}
	b.WriteString(text[last:])
	res.Text = b.String()

	if len(res.Blocks) == 0 {
		res.Changes = append(res.Changes, "No convertible code blocks found")
	}
	return res
}

// Report writes a human-readable conversion summary to w.
func (r Result) Report(w io.Writer) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(w, "\n%s\nMARKPACT CONVERSION REPORT\n%s\n", rule, rule)
	if r.AlreadyMarked {
		fmt.Fprintf(w, "\n%s File already contains markpact blocks. No conversion needed.\n", green("✓"))
		return
	}
	if len(r.Blocks) == 0 {
		fmt.Fprintf(w, "\n%s No convertible code blocks found.\n", yellow("⚠"))
		fmt.Fprintln(w, "  Add code blocks with language tags for better detection.")
		return
	}

	fmt.Fprintf(w, "\n%s Converted %d block(s):\n\n", green("✓"), len(r.Blocks))
	for _, c := range r.Changes {
		fmt.Fprintf(w, "  %s\n", c)
	}
	fmt.Fprintf(w, "%s\n", rule)
}
