package converter

import "regexp"

// rule is one ordered group of patterns that identify a block type.
type rule struct {
	name     string
	patterns []*regexp.Regexp
}

func compile(name string, exprs ...string) rule {
	r := rule{name: name}
	for _, e := range exprs {
		r.patterns = append(r.patterns, regexp.MustCompile(e))
	}
	return r
}

func (r rule) match(text string) (*regexp.Regexp, bool) {
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return p, true
		}
	}
	return nil, false
}

var (
	pythonDeps = compile("deps_python",
		`(?im)^(fastapi|flask|django|uvicorn|gunicorn|requests|pandas|numpy|pydantic)`,
		`(?im)^[a-z][a-z0-9_-]*[=<>]=?\d`,
		`(?im)^-r\s+requirements`,
	)
	nodeDeps = compile("deps_node",
		`(?m)"(dependencies|devDependencies)":\s*\{`,
		`(?m)^(express|react|vue|next|typescript|webpack)`,
	)
	runCommand = compile("run",
		`(?m)^(python|python3|uvicorn|gunicorn|flask|npm|node|streamlit|pytest)`,
		`(?m)^(pip install|npm install|yarn)`,
	)
	// fileRules are tried in order; the first match names the content type.
	fileRules = []rule{
		compile("python",
			`(?m)^(import |from .+ import |def |class |@app\.|@router\.)`,
			`(?m)^#!/usr/bin/env python`,
		),
		compile("javascript",
			`(?m)^(const |let |var |function |import |export |require\()`,
			`(?m)^#!/usr/bin/env node`,
		),
		compile("html", `(?m)^<!DOCTYPE|^<html|^<head|^<body`),
		compile("css", `(?m)^(\.|#|@media|@import|body|html)\s*\{`),
		compile("json", `(?m)^\s*\{\s*"`),
		compile("yaml", `(?m)^[a-z_]+:\s*([-\d"']|$)`),
	}
)

// extensions maps a language tag to a file extension.
var extensions = map[string]string{
	"python":     ".py",
	"py":         ".py",
	"javascript": ".js",
	"js":         ".js",
	"typescript": ".ts",
	"ts":         ".ts",
	"html":       ".html",
	"css":        ".css",
	"json":       ".json",
	"yaml":       ".yaml",
	"yml":        ".yaml",
	"bash":       ".sh",
	"sh":         ".sh",
	"sql":        ".sql",
	"toml":       ".toml",
	"ini":        ".ini",
}

var (
	shellTags = map[string]bool{"bash": true, "sh": true, "shell": true, "console": true, "": true}
	plainTags = map[string]bool{"": true, "text": true, "txt": true}
)
