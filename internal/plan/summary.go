package plan

import (
	"gopkg.in/yaml.v3"
)

// Summary is the dry-run view of a plan.
type Summary struct {
	Files        []FileSummary `yaml:"files,omitempty"`
	Dependencies []string      `yaml:"dependencies,omitempty"`
	Run          string        `yaml:"run,omitempty"`
	Tests        []TestSummary `yaml:"tests,omitempty"`
	Publish      *PublishView  `yaml:"publish,omitempty"`
}

type FileSummary struct {
	Path  string `yaml:"path"`
	Bytes int    `yaml:"bytes"`
}

type TestSummary struct {
	Flavor Flavor `yaml:"flavor"`
	Line   int    `yaml:"line"`
	Cases  int    `yaml:"cases"`
}

type PublishView struct {
	Registry string `yaml:"registry"`
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
}

// Summarize builds the dry-run view of p.
func (p *Plan) Summarize() Summary {
	s := Summary{
		Dependencies: p.Dependencies,
		Run:          p.RunCommand,
	}
	for _, f := range p.Files {
		s.Files = append(s.Files, FileSummary{Path: f.Path, Bytes: len(f.Content)})
	}
	for _, t := range p.Tests {
		s.Tests = append(s.Tests, TestSummary{Flavor: t.Flavor, Line: t.Line, Cases: len(CaseLines(t.Body))})
	}
	if p.Publish != nil {
		s.Publish = &PublishView{Registry: string(p.Publish.Registry), Name: p.Publish.Name, Version: p.Publish.Version}
	}
	return s
}

// YAML renders the summary.
func (s Summary) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
