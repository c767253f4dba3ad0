package converter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/block"
	"github.com/vk/markpact/internal/plan"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		lang     string
		body     string
		wantKind block.Kind
		wantMeta string
		wantOK   bool
	}{
		{"python deps untagged", "", "fastapi\nuvicorn", block.KindDeps, "python", true},
		{"pinned deps in text", "text", "Django==5.0\nrequests>=2", block.KindDeps, "python", true},
		{"tagged python is not deps", "python", "requests.get(url)", block.KindFile, "python", true},
		{"node package.json", "json", "{\n  \"dependencies\": {\n    \"express\": \"^4\"\n  }\n}", block.KindDeps, "node", true},
		{"run command", "bash", "uvicorn app:app --reload", block.KindRun, "", true},
		{"python file", "python", "from fastapi import FastAPI\napp = FastAPI()", block.KindFile, "python", true},
		{"html by content", "", "<!DOCTYPE html>\n<html></html>", block.KindFile, "html", true},
		{"tag wins over content type", "ts", "import x from 'y'", block.KindFile, "ts", true},
		{"unknown tag falls back to file", "rust", "fn main() {}", block.KindFile, "rust", true},
		{"plain prose", "", "just some words", "", "", false},
		{"shell without known command", "bash", "ls -la", "", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Detect(tc.lang, tc.body)
			require.Equal(t, tc.wantOK, ok, got.Reason)
			assert.Equal(t, tc.wantKind, got.Kind)
			assert.Equal(t, tc.wantMeta, got.Meta)
		})
	}
}

func TestSuggestFilename(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		lang, body string
		index      int
		want       string
	}{
		{"python", "from flask import Flask\napp = Flask(__name__)", 0, "app.py"},
		{"python", "class Store:\n    pass", 0, "store.py"},
		{"python", "if __name__ == '__main__':\n    run()", 0, "main.py"},
		{"python", "x = 1", 3, "file_3.py"},
		{"html", "<title>My Cool Page</title>", 0, "my_cool_page.html"},
		{"html", "<p>hi</p>", 0, "index.html"},
		{"yml", "a: 1", 1, "file_1.yaml"},
		{"rust", "fn main() {}", 2, "file_2.rust"},
		{"", "x", 0, "file_0.txt"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, SuggestFilename(tc.lang, tc.body, tc.index), "%s %q", tc.lang, tc.body)
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	prose := "```\njust words here\n```\n"
	text := "# Shortener\n\n" +
		"```\nfastapi\nuvicorn\n```\n\n" +
		"```python\nfrom fastapi import FastAPI\napp = FastAPI()\n```\n\n" +
		prose + "\n" +
		"```bash\nuvicorn app:app --port 8000\n```\n\n" +
		"```bash\npython other.py\n```\n\n" +
		"```\nflask\n```\n"

	res := Convert(text)
	require.False(t, res.AlreadyMarked)
	require.Len(t, res.Blocks, 3)

	blocks := block.Parse(res.Text)
	want := []block.Block{
		{Kind: block.KindDeps, Meta: "python", Body: "fastapi\nuvicorn", Line: 3},
		{Kind: block.KindFile, Meta: "path=app.py", Body: "from fastapi import FastAPI\napp = FastAPI()", Line: 8},
		{Kind: block.KindRun, Body: "uvicorn app:app --port 8000", Line: 17},
	}
	if diff := cmp.Diff(want, blocks); diff != "" {
		t.Errorf("converted blocks mismatch (-want +got):\n%s", diff)
	}

	assert.Contains(t, res.Text, prose, "unconverted fences stay byte-identical")
	assert.Contains(t, res.Text, "```bash\npython other.py\n```", "second run block is left alone")
	assert.Contains(t, res.Text, "```\nflask\n```", "second deps block is left alone")

	p, err := plan.Build(blocks, plan.Options{Ecosystem: "python"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fastapi", "uvicorn"}, p.Dependencies)
}

func TestConvert_AlreadyMarked(t *testing.T) {
	t.Parallel()
	text := "```markpact:run\nx\n```\n```python\nimport os\n```\n"
	res := Convert(text)
	assert.True(t, res.AlreadyMarked)
	assert.Equal(t, text, res.Text)
	assert.Empty(t, res.Blocks)
}

func TestConvert_NothingToConvert(t *testing.T) {
	t.Parallel()
	text := "# Notes\n\n```\nsome prose\n```\n"
	res := Convert(text)
	assert.Equal(t, text, res.Text)
	assert.Equal(t, []string{"No convertible code blocks found"}, res.Changes)
}

func TestReport(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })
	var buf bytes.Buffer
	Convert("```\nfastapi\n```\n").Report(&buf)
	out := buf.String()
	assert.Contains(t, out, "MARKPACT CONVERSION REPORT")
	assert.Contains(t, out, "Converted 1 block(s)")
	assert.True(t, strings.Contains(out, "```markpact:deps python"))
}
