package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/app"
	"github.com/vk/markpact/internal/generator"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *app.Config)
	}{
		{
			name: "defaults",
			args: nil,
			check: func(t *testing.T, cfg *app.Config) {
				assert.Equal(t, app.DefaultDocument, cfg.DocumentPath)
				assert.Equal(t, "text", cfg.LogFormat)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, ".env", cfg.DotenvPath)
			},
		},
		{
			name: "short aliases",
			args: []string{"-s", "/tmp/box", "-n", "-c", "docs/README.md"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.Equal(t, "/tmp/box", cfg.SandboxDir)
				assert.True(t, cfg.DryRun)
				assert.True(t, cfg.Convert)
				assert.Equal(t, "docs/README.md", cfg.DocumentPath)
			},
		},
		{
			name: "publish with bump and registry",
			args: []string{"--publish", "--bump", "minor", "--registry", "PyPI-Test"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.True(t, cfg.Publish)
				assert.Equal(t, "minor", cfg.Bump)
				assert.Equal(t, "pypi-test", cfg.Registry)
			},
		},
		{
			name: "convert-only implies convert",
			args: []string{"--convert-only"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.True(t, cfg.Convert)
			},
		},
		{
			name: "quiet lowers log level",
			args: []string{"-q", "--log-level", "debug"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.Equal(t, "error", cfg.LogLevel)
			},
		},
		{
			name: "test mode",
			args: []string{"--test", "--port", "9000", "--report", "out.yaml", "--no-auto-fix"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.True(t, cfg.Test)
				assert.Equal(t, 9000, cfg.Port)
				assert.Equal(t, "out.yaml", cfg.ReportPath)
				assert.True(t, cfg.NoAutoFix)
				assert.Nil(t, cfg.MaxRetries)
			},
		},
		{
			name: "example prompt by name",
			args: []string{"-e", "todo-api", "-o", "out/README.md"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.Equal(t, generator.ExamplePrompt("todo-api"), cfg.Prompt)
				assert.Contains(t, cfg.Prompt, "/tasks")
				assert.Equal(t, "out/README.md", cfg.Output)
			},
		},
		{
			name: "explicit prompt wins over example",
			args: []string{"--prompt", "a todo app", "--example", "blog-api"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.Equal(t, "a todo app", cfg.Prompt)
			},
		},
		{
			name: "docker test mode",
			args: []string{"--docker", "--test"},
			check: func(t *testing.T, cfg *app.Config) {
				assert.True(t, cfg.Docker)
				assert.True(t, cfg.Test)
			},
		},
		{
			name: "zero retries is kept",
			args: []string{"--max-retries", "0"},
			check: func(t *testing.T, cfg *app.Config) {
				require.NotNil(t, cfg.MaxRetries)
				assert.Equal(t, 0, *cfg.MaxRetries)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, exit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			require.False(t, exit)
			tc.check(t, cfg)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown flag", args: []string{"--nope"}, want: "flag provided but not defined: -nope"},
		{name: "bad log format", args: []string{"--log-format", "xml"}, want: "invalid log-format"},
		{name: "bad log level", args: []string{"--log-level", "loud"}, want: "invalid log-level"},
		{name: "bad bump", args: []string{"--publish", "--bump", "huge"}, want: "invalid bump"},
		{name: "negative retries", args: []string{"--max-retries", "-1"}, want: "max-retries must not be negative"},
		{name: "docker with publish", args: []string{"--docker", "--publish"}, want: "--docker cannot be combined"},
		{name: "two documents", args: []string{"a.md", "b.md"}, want: "expected one document"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}

func TestParse_HelpAndVersion(t *testing.T) {
	t.Parallel()

	for _, arg := range []string{"-h", "--version", "--list-examples"} {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse([]string{arg}, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.NotEmpty(t, out.String())
	}
}

func TestParse_ListExamples(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}
	_, exit, err := Parse([]string{"--list-examples"}, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "Available example prompts:")
	assert.Contains(t, out.String(), "  todo-api        - REST API")
	assert.Contains(t, out.String(), "Usage: markpact -e todo-api -o my-project/README.md")
}
