// Package tester starts a document's service and executes its declarative
// HTTP and shell test lines against it.
package tester

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Case is the outcome of one test line.
type Case struct {
	Name     string        `yaml:"name"`
	Passed   bool          `yaml:"passed"`
	Message  string        `yaml:"message"`
	Duration time.Duration `yaml:"duration"`
}

// Suite collects test outcomes in execution order.
type Suite struct {
	Cases []Case `yaml:"cases"`
}

func (s *Suite) add(c Case) { s.Cases = append(s.Cases, c) }

// Passed counts passing cases.
func (s *Suite) Passed() int {
	n := 0
	for _, c := range s.Cases {
		if c.Passed {
			n++
		}
	}
	return n
}

// Failed counts failing cases.
func (s *Suite) Failed() int { return len(s.Cases) - s.Passed() }

// OK reports whether every case passed.
func (s *Suite) OK() bool { return s.Failed() == 0 }

// Print writes a human-readable summary to w.
func (s *Suite) Print(w io.Writer) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("TEST RESULTS: %d/%d passed", s.Passed(), len(s.Cases))))
	fmt.Fprintf(w, "%s\n", rule)
	for _, c := range s.Cases {
		mark := green("✓")
		if !c.Passed {
			mark = red("✗")
		}
		fmt.Fprintf(w, "  %s %s: %s\n", mark, c.Name, c.Message)
	}
	fmt.Fprintln(w)
}
