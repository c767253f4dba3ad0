package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/sandbox"
)

type stubModule struct{ names []publish.Registry }

func (m *stubModule) Register(r *Registry) {
	for _, n := range m.names {
		r.RegisterPublisher(n, PublisherFunc(func(_ context.Context, t Target) Result {
			return Result{Success: true, Message: "ok " + string(n), Version: t.Config.Version}
		}))
	}
}

func newTarget(t *testing.T, reg publish.Registry) Target {
	t.Helper()
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)
	cfg := publish.Default()
	cfg.Registry = reg
	return Target{Sandbox: sb, Config: cfg}
}

func TestPublishDispatch(t *testing.T) {
	t.Parallel()
	r := New()
	(&stubModule{names: []publish.Registry{publish.RegistryNPM, publish.RegistryPyPI}}).Register(r)

	res := r.Publish(context.Background(), newTarget(t, publish.RegistryNPM))
	assert.True(t, res.Success)
	assert.Equal(t, "ok npm", res.Message)
	assert.Equal(t, publish.RegistryNPM, res.Registry, "registry is filled in when the publisher leaves it empty")

	res = r.Publish(context.Background(), newTarget(t, "carrier-pigeon"))
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown registry: carrier-pigeon (available: [npm pypi])", res.Message)

	assert.Equal(t, []publish.Registry{publish.RegistryNPM, publish.RegistryPyPI}, r.Names())
}

func TestRegisterPublisher_DuplicatePanics(t *testing.T) {
	t.Parallel()
	r := New()
	m := &stubModule{names: []publish.Registry{publish.RegistryS3}}
	m.Register(r)
	assert.Panics(t, func() { m.Register(r) })
}

func TestValidate(t *testing.T) {
	t.Parallel()
	r := New()
	(&stubModule{names: []publish.Registry{publish.RegistryNPM}}).Register(r)

	require.NoError(t, r.Validate([]publish.Registry{publish.RegistryNPM}))
	err := r.Validate([]publish.Registry{publish.RegistryNPM, publish.RegistryDocker})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker")
}

func TestRun(t *testing.T) {
	t.Parallel()
	target := newTarget(t, publish.RegistryPyPI)

	_, ok := Run(context.Background(), target, Step{Stage: "Build", Script: "true"})
	assert.True(t, ok)

	payload, ok := Run(context.Background(), target, Step{Stage: "Build", Script: "printf '%0500d' 0; exit 1"})
	assert.False(t, ok)
	assert.Len(t, payload, FailureLimit)

	payload, ok = Run(context.Background(), target, Step{Stage: "Build", Script: "exit 9"})
	assert.False(t, ok)
	assert.Equal(t, "Command failed with exit code 9", payload)

	payload, ok = Run(context.Background(), target, Step{Stage: "Build", Script: `echo "$TOKEN"; exit 1`, Env: map[string]string{"TOKEN": "abc"}})
	assert.False(t, ok)
	assert.Equal(t, "abc", payload)
}

func TestFailed(t *testing.T) {
	t.Parallel()
	target := newTarget(t, publish.RegistryNPM)
	res := Failed(target, "Publish", "E403", "run npm login")
	assert.False(t, res.Success)
	assert.Equal(t, "Publish failed: E403\nHint: run npm login", res.Message)
	assert.Equal(t, "0.1.0", res.Version)
}

func TestDescription(t *testing.T) {
	t.Parallel()
	target := newTarget(t, publish.RegistryNPM)
	target.Config.Description = "Short."
	target.Document = "# Title\n\nFirst line.\n```markpact:run\nhidden\n```\nSecond line.\n"
	assert.Equal(t, "Short. First line. Second line.", Description(target))

	target.Config.Description = ""
	target.Document = strings.Repeat("word ", 200)
	d := Description(target)
	assert.Len(t, []rune(d), 500)
	assert.True(t, strings.HasSuffix(d, "..."))
}

func TestWriteIfAbsent(t *testing.T) {
	t.Parallel()
	target := newTarget(t, publish.RegistryNPM)

	wrote, err := WriteIfAbsent(target, "package.json", "{}")
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = WriteIfAbsent(target, "package.json", "{\"x\":1}")
	require.NoError(t, err)
	assert.False(t, wrote)
}
