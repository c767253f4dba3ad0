package runner

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/sandbox"
)

type fakeDocument struct {
	ports []int
	deps  []string
}

func (d *fakeDocument) ReplacePort(port int) (bool, error) {
	d.ports = append(d.ports, port)
	return true, nil
}

func (d *fakeDocument) AddDependency(name string) (bool, error) {
	d.deps = append(d.deps, name)
	return true, nil
}

type fakeInstaller struct{ names []string }

func (i *fakeInstaller) InstallOne(_ context.Context, name string) error {
	i.names = append(i.names, name)
	return nil
}

func newSandbox(t *testing.T) *sandbox.Sandbox {
	t.Helper()
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)
	return sb
}

func settings() config.RunSettings {
	return config.RunSettings{AutoFix: true, MaxRetries: 3, StartPort: 8000, PortScan: 100}
}

func TestRun_Success(t *testing.T) {
	t.Parallel()
	c := New(newSandbox(t), settings())

	res, err := c.Run(context.Background(), "echo ok")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Len(t, res.Attempts, 1)
	assert.Equal(t, "ok\n", res.Output)
}

func TestRun_UnknownFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	c := New(newSandbox(t), settings())

	res, err := c.Run(context.Background(), "echo boom; exit 4")
	require.NoError(t, err)
	assert.Equal(t, 4, res.ExitCode)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, Unknown, res.Attempts[0].Failure)
}

func TestRun_FreePortRetry(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	occupied := busy.Addr().(*net.TCPAddr).Port

	// Fails like a server would while pointed at the occupied port.
	command := fmt.Sprintf(`port=${MARKPACT_PORT:-%d}; `+
		`if [ "$port" = "%d" ]; then echo "OSError: [Errno 98] Address already in use" >&2; exit 1; fi; `+
		`echo "serving on $port"`, occupied, occupied)

	s := settings()
	s.StartPort = occupied
	doc := &fakeDocument{}
	c := New(newSandbox(t), s, WithDocument(doc))

	res, err := c.Run(context.Background(), command)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, PortInUse, res.Attempts[0].Failure)
	require.Len(t, doc.ports, 1)
	assert.NotEqual(t, occupied, doc.ports[0])
	assert.Contains(t, res.Command, fmt.Sprintf("${MARKPACT_PORT:-%d}", doc.ports[0]))
	assert.Equal(t, fmt.Sprintf("serving on %d\n", doc.ports[0]), res.Output)
}

func TestRun_RetryBudget(t *testing.T) {
	t.Parallel()
	s := settings()
	s.MaxRetries = 2
	probes := 0
	c := New(newSandbox(t), s, WithPortFinder(func(int, int) (int, error) {
		probes++
		return 9000 + probes, nil
	}))

	res, err := c.Run(context.Background(), "echo 'address already in use'; exit 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Len(t, res.Attempts, 3)
	assert.Equal(t, 2, probes)
}

func TestRun_AutoFixDisabled(t *testing.T) {
	t.Parallel()
	s := settings()
	s.AutoFix = false
	c := New(newSandbox(t), s, WithPortFinder(func(int, int) (int, error) {
		t.Fatal("probe must not run with auto-fix disabled")
		return 0, nil
	}))

	res, err := c.Run(context.Background(), "echo 'Address already in use'; exit 2")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Len(t, res.Attempts, 1)
}

func TestRun_MissingModule(t *testing.T) {
	t.Parallel()
	sb := newSandbox(t)
	doc := &fakeDocument{}
	inst := &fakeInstaller{}
	c := New(sb, settings(), WithDocument(doc), WithInstaller(inst))

	// Succeeds once the installer has run, marked by a file in the sandbox.
	command := `if [ -f installed ]; then echo fine; exit 0; fi; touch installed; ` +
		`echo "ModuleNotFoundError: No module named 'requests.adapters'" >&2; exit 1`

	res, err := c.Run(context.Background(), command)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"requests"}, doc.deps)
	assert.Equal(t, []string{"requests"}, inst.names)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "install requests", res.Attempts[0].Fix)
}

func TestRun_Interrupted(t *testing.T) {
	t.Parallel()
	c := New(newSandbox(t), settings(), WithGrace(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := c.Run(ctx, "sleep 30")
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, ExitInterrupted, res.ExitCode)
	require.Len(t, res.Attempts, 1)
	assert.Empty(t, res.Attempts[0].Failure)
}

func TestFreePort(t *testing.T) {
	t.Parallel()
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	occupied := busy.Addr().(*net.TCPAddr).Port

	port, err := FreePort(occupied, 50)
	require.NoError(t, err)
	assert.Greater(t, port, occupied)

	_, err = FreePort(occupied, 1)
	assert.Error(t, err)
}
