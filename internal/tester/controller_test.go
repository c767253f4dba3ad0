package tester

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/sandbox"
)

func fastSettings() config.TestSettings {
	return config.TestSettings{
		LivenessPath:    "/health",
		StartupTimeout:  300 * time.Millisecond,
		FallbackTimeout: 200 * time.Millisecond,
		PollInterval:    20 * time.Millisecond,
		ShellTimeout:    2 * time.Second,
		StopGrace:       time.Second,
	}
}

func newController(t *testing.T) (*Controller, *sandbox.Sandbox) {
	t.Helper()
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)
	return New(sb, fastSettings()), sb
}

// A stand-in service: the spawned command only records its own teardown
// while an in-process server answers on the port.
const trappedService = `trap 'echo stopped > stopped.txt; exit 0' TERM; while true; do sleep 0.05; done`

func TestRun_LiveSession(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ok":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	port := srv.Listener.Addr().(*net.TCPAddr).Port

	c, sb := newController(t)
	suite := c.Run(context.Background(), Request{
		Command: trappedService,
		Port:    port,
		HTTP:    []string{"GET /ok EXPECT 200", "GET /missing EXPECT 200"},
		Shell:   []string{`test "$MARKPACT_PORT" = "` + strconv.Itoa(port) + `"`, "exit 3"},
	})

	require.Len(t, suite.Cases, 4)
	assert.True(t, suite.Cases[0].Passed)
	assert.False(t, suite.Cases[1].Passed)
	assert.True(t, suite.Cases[2].Passed, suite.Cases[2].Message)
	assert.Equal(t, "Exit code 3", suite.Cases[3].Message)
	assert.Equal(t, 2, suite.Passed())
	assert.False(t, suite.OK())

	assert.FileExists(t, filepath.Join(sb.Dir(), "stopped.txt"), "service must be torn down")
}

func TestRun_LivenessFallsBackToRoot(t *testing.T) {
	t.Parallel()
	var rootPolled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			rootPolled.Store(true)
			w.WriteHeader(http.StatusOK)
		case "/ok":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	port := srv.Listener.Addr().(*net.TCPAddr).Port

	c, _ := newController(t)
	suite := c.Run(context.Background(), Request{
		Command: trappedService,
		Port:    port,
		HTTP:    []string{"GET /ok EXPECT 200"},
	})

	require.Len(t, suite.Cases, 1)
	assert.Equal(t, "GET /ok", suite.Cases[0].Name)
	assert.True(t, suite.Cases[0].Passed, suite.Cases[0].Message)
	assert.True(t, rootPolled.Load(), "root must be polled once the liveness path fails")
}

func TestRun_StartupFailureStopsService(t *testing.T) {
	t.Parallel()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	c, sb := newController(t)
	suite := c.Run(context.Background(), Request{
		Command: trappedService,
		Port:    port,
		HTTP:    []string{"GET / EXPECT 200"},
		Shell:   []string{"true"},
	})

	require.Len(t, suite.Cases, 1, "remaining tests are not attempted")
	assert.Equal(t, StartupCase, suite.Cases[0].Name)
	assert.False(t, suite.Cases[0].Passed)
	assert.Contains(t, suite.Cases[0].Message, "did not respond")
	assert.FileExists(t, filepath.Join(sb.Dir(), "stopped.txt"))
}

func TestRun_EarlyExit(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	suite := c.Run(context.Background(), Request{Command: "echo crashed; exit 1", Port: 1, HTTP: []string{"GET /"}})
	require.Len(t, suite.Cases, 1)
	assert.Equal(t, StartupCase, suite.Cases[0].Name)
	assert.Contains(t, suite.Cases[0].Message, "crashed")
}

func TestRun_NoCommand(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)

	suite := c.Run(context.Background(), Request{HTTP: []string{"GET /"}, Shell: []string{"true"}})
	require.Len(t, suite.Cases, 2)
	assert.False(t, suite.Cases[0].Passed)
	assert.True(t, suite.Cases[1].Passed)
}

func TestRunShell(t *testing.T) {
	t.Parallel()
	c, _ := newController(t)
	c.settings.ShellTimeout = 100 * time.Millisecond

	long := "echo " + strings.Repeat("x", 80)
	suite := c.RunShell(context.Background(), []string{long, "false", "sleep 5"}, nil)

	require.Len(t, suite.Cases, 3)
	assert.Equal(t, long[:50], suite.Cases[0].Name)
	assert.Equal(t, "Passed", suite.Cases[0].Message)
	assert.Equal(t, "Exit code 1", suite.Cases[1].Message)
	assert.Equal(t, "Timeout", suite.Cases[2].Message)
}

func TestSuite_Print(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })
	suite := &Suite{Cases: []Case{
		{Name: "GET /health", Passed: true, Message: "Status 200 (expected 200)"},
		{Name: "false", Message: "Exit code 1"},
	}}
	var buf bytes.Buffer
	suite.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "TEST RESULTS: 1/2 passed")
	assert.Contains(t, out, "✓ GET /health: Status 200 (expected 200)")
	assert.Contains(t, out, "✗ false: Exit code 1")
}
