package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/block"
	"github.com/vk/markpact/internal/publish"
)

const foreign = "```python\nuvicorn app:app --port 8000  # ${MARKPACT_PORT:-8000}\n```\n"

const sample = "# Demo\n\n" + foreign + "\n" +
	"```markpact:deps python\nfastapi\nuvicorn\n```\n\n" +
	"```markpact:deps node\nexpress\n```\n\n" +
	"```markpact:run\nuvicorn app:app --port ${MARKPACT_PORT:-8000}\n```\n"

func TestReplacePort(t *testing.T) {
	t.Parallel()

	got, changed := ReplacePort(sample, 8011)
	require.True(t, changed)
	assert.Contains(t, got, "```markpact:run\nuvicorn app:app --port ${MARKPACT_PORT:-8011}\n```")
	assert.Contains(t, got, foreign, "foreign blocks stay byte-identical")
	assert.Equal(t, len(sample), len(got))

	_, changed = ReplacePort("```markpact:run\npython main.py\n```\n", 8011)
	assert.False(t, changed)
}

func TestReplacePort_ExplicitFlag(t *testing.T) {
	t.Parallel()
	got, changed := ReplacePort("```markpact:run\nuvicorn app:app --port 8000\n```\n", 9000)
	require.True(t, changed)
	assert.Equal(t, "```markpact:run\nuvicorn app:app --port 9000\n```\n", got)
}

func TestAddDependency(t *testing.T) {
	t.Parallel()

	got, changed := AddDependency(sample, "python", "requests")
	require.True(t, changed)
	assert.Contains(t, got, "```markpact:deps python\nfastapi\nuvicorn\nrequests\n```")
	assert.Contains(t, got, "```markpact:deps node\nexpress\n```")
	assert.True(t, strings.HasPrefix(got, "# Demo\n\n"+foreign))

	deps := block.Parse(got)[0]
	assert.Equal(t, "fastapi\nuvicorn\nrequests", deps.Body)
}

func TestAddDependency_NoChange(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		text      string
		ecosystem string
		dep       string
	}{
		{"already listed", sample, "python", "fastapi"},
		{"listed with pin", "```markpact:deps python\nPyYAML==6.0\n```\n", "python", "pyyaml"},
		{"no block for ecosystem", sample, "rust", "serde"},
		{"no deps block", "```markpact:run\nx\n```\n", "python", "x"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, changed := AddDependency(tc.text, tc.ecosystem, tc.dep)
			assert.False(t, changed)
			assert.Equal(t, tc.text, got)
		})
	}
}

func TestAddDependency_EmptyBlock(t *testing.T) {
	t.Parallel()
	got, changed := AddDependency("```markpact:deps python\n```\n", "python", "flask")
	require.True(t, changed)
	assert.Equal(t, "```markpact:deps python\nflask\n```\n", got)
}

func TestSetVersion(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "equals form",
			text: "```markpact:publish\nregistry = pypi\nversion = 0.1.0\n```\n",
			want: "```markpact:publish\nregistry = pypi\nversion = 0.1.1\n```\n",
		},
		{
			name: "colon form",
			text: "```markpact:publish\nversion: 0.1.0\nname: x\n```\n",
			want: "```markpact:publish\nversion: 0.1.1\nname: x\n```\n",
		},
		{
			name: "missing line is appended",
			text: "```markpact:publish\nname = x\n```\n",
			want: "```markpact:publish\nname = x\nversion = 0.1.1\n```\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, changed := SetVersion(tc.text, "0.1.1")
			assert.True(t, changed)
			assert.Equal(t, tc.want, got)
		})
	}

	_, changed := SetVersion(sample, "1.0.0")
	assert.False(t, changed, "no publish block")
}

func TestInsertPublishBlock(t *testing.T) {
	t.Parallel()
	cfg := publish.Default()
	cfg.Name = "demo"

	got := InsertPublishBlock(sample, cfg)
	idxPublish := strings.Index(got, "```markpact:publish")
	idxDeps := strings.Index(got, "```markpact:deps python")
	require.GreaterOrEqual(t, idxPublish, 0)
	assert.Less(t, idxPublish, idxDeps)
	assert.Contains(t, got, foreign)

	parsed := block.Parse(got)
	require.NotEmpty(t, parsed)
	assert.Equal(t, block.KindPublish, parsed[0].Kind)
	assert.Equal(t, "demo", publish.Parse(parsed[0].Body, parsed[0].Meta).Name)

	appended := InsertPublishBlock("# Title", cfg)
	assert.True(t, strings.HasPrefix(appended, "# Title\n\n```markpact:publish\n"))
}

func TestFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := Open(path, "python")
	require.NoError(t, err)

	changed, err := f.AddDependency("httpx")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.ReplacePort(8123)
	require.NoError(t, err)
	assert.True(t, changed)

	cfg := publish.Default()
	changed, err = f.EnsurePublishBlock(cfg)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.EnsurePublishBlock(cfg)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.SetVersion("0.2.0")
	require.NoError(t, err)
	assert.True(t, changed)

	text, err := f.Read()
	require.NoError(t, err)
	assert.Contains(t, text, "httpx")
	assert.Contains(t, text, "${MARKPACT_PORT:-8123}")
	assert.Contains(t, text, "version = 0.2.0")
	assert.Contains(t, text, foreign)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = Open(filepath.Join(t.TempDir(), "absent.md"), "python")
	assert.Error(t, err)
}
