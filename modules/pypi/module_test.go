package pypi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/internal/sandbox"
)

// stubTarget creates a sandbox whose environment provides a fake python3
// that succeeds at `-m build` and runs uploadScript for `-m twine`.
func stubTarget(t *testing.T, uploadScript string) registry.Target {
	t.Helper()
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)

	fake := "#!/bin/sh\n" +
		"echo \"$@\" >> calls.log\n" +
		"case \"$2\" in\n" +
		"  build) mkdir -p dist; exit 0;;\n" +
		"  twine) " + uploadScript + ";;\n" +
		"esac\n"
	for name, body := range map[string]string{"python": "#!/bin/sh\n", "python3": fake} {
		full, err := sb.Write(filepath.Join(".venv", "bin", name), body)
		require.NoError(t, err)
		require.NoError(t, os.Chmod(full, 0o755))
	}

	cfg := publish.Default()
	cfg.Name = "demo-pkg"
	cfg.Author = "Ada"
	cfg.Keywords = []string{"api"}
	return registry.Target{Sandbox: sb, Config: cfg, Document: "# Demo\n\nA demo package.\n"}
}

func TestPyproject(t *testing.T) {
	t.Parallel()
	target := stubTarget(t, "exit 0")
	_, err := target.Sandbox.Write("demo_pkg/__init__.py", "")
	require.NoError(t, err)

	out, err := Pyproject(target)
	require.NoError(t, err)

	var got pyproject
	require.NoError(t, toml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "demo-pkg", got.Project.Name)
	assert.Equal(t, "0.1.0", got.Project.Version)
	assert.Equal(t, "A demo package.", got.Project.Description)
	assert.Equal(t, []author{{Name: "Ada"}}, got.Project.Authors)
	assert.Equal(t, "hatchling.build", got.BuildSystem.BuildBackend)
	require.NotNil(t, got.Tool)
	assert.Equal(t, []string{"demo_pkg"}, got.Tool.Hatch.Build.Targets.Wheel.Packages)
}

func TestPublish_Success(t *testing.T) {
	t.Parallel()
	target := stubTarget(t, "exit 0")

	res := (&Publisher{Test: true}).Publish(context.Background(), target)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "https://test.pypi.org/project/demo-pkg/", res.URL)
	assert.FileExists(t, filepath.Join(target.Sandbox.Dir(), "pyproject.toml"))

	calls, err := os.ReadFile(filepath.Join(target.Sandbox.Dir(), "calls.log"))
	require.NoError(t, err)
	assert.Equal(t, "-m build\n-m twine upload --non-interactive --repository testpypi dist/*\n", string(calls))
}

func TestPublish_VersionCollisionHint(t *testing.T) {
	t.Parallel()
	target := stubTarget(t, "echo 'HTTPError: 400 File already exists.'; exit 1")

	res := (&Publisher{}).Publish(context.Background(), target)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Upload failed: HTTPError: 400 File already exists.")
	assert.Contains(t, res.Message, "--bump")
}

func TestPublish_KeepsExistingPyproject(t *testing.T) {
	t.Parallel()
	target := stubTarget(t, "exit 0")
	_, err := target.Sandbox.Write("pyproject.toml", "# custom\n")
	require.NoError(t, err)

	res := (&Publisher{}).Publish(context.Background(), target)
	require.True(t, res.Success)
	b, err := os.ReadFile(filepath.Join(target.Sandbox.Dir(), "pyproject.toml"))
	require.NoError(t, err)
	assert.Equal(t, "# custom\n", string(b))
}

func TestRegister(t *testing.T) {
	t.Parallel()
	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []publish.Registry{publish.RegistryPyPI, publish.RegistryPyPITest}, r.Names())
}
