package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnviron(t *testing.T) {
	t.Parallel()
	base := []string{"HOME=/home/u", "PATH=/usr/bin", "VIRTUAL_ENV=/old"}

	got := Environ(base, "/sb/.venv/bin", map[string]string{PortVariable: "8001"})

	assert.Equal(t, "/sb/.venv/bin"+string(os.PathListSeparator)+"/usr/bin", lookup(got, "PATH"))
	assert.Equal(t, "/sb/.venv", lookup(got, "VIRTUAL_ENV"))
	assert.Equal(t, "8001", lookup(got, PortVariable))
	assert.Equal(t, "/home/u", lookup(got, "HOME"))

	var paths int
	for _, kv := range got {
		if strings.HasPrefix(kv, "PATH=") {
			paths++
		}
	}
	assert.Equal(t, 1, paths)
}

func TestEnviron_NoBinDirLeavesPath(t *testing.T) {
	t.Parallel()
	got := Environ([]string{"PATH=/usr/bin"}, "", nil)
	assert.Equal(t, []string{"PATH=/usr/bin"}, got)
}

func TestRewritePort(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "placeholder default",
			in:   "uvicorn app:app --port ${MARKPACT_PORT:-8000}",
			want: "uvicorn app:app --port ${MARKPACT_PORT:-8011}",
		},
		{
			name: "explicit flag",
			in:   "uvicorn app:app --host 0.0.0.0 --port 8000",
			want: "uvicorn app:app --host 0.0.0.0 --port 8011",
		},
		{
			name: "no reference",
			in:   "python main.py",
			want: "python main.py",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, RewritePort(tc.in, 8011))
			assert.Equal(t, tc.in != tc.want, HasPortReference(tc.in))
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	t.Run("success captures combined output", func(t *testing.T) {
		t.Parallel()
		res, err := Run(context.Background(), Command{Script: "echo out; echo err 1>&2", Dir: dir}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Output, "out")
		assert.Contains(t, res.Output, "err")
	})

	t.Run("exit code is preserved", func(t *testing.T) {
		t.Parallel()
		res, err := Run(context.Background(), Command{Script: "exit 7", Dir: dir}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 7, res.ExitCode)
		assert.False(t, res.Interrupted)
	})

	t.Run("runs in the working directory with overrides", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("here"), 0o644))
		res, err := Run(context.Background(), Command{
			Script: "cat marker.txt; echo \" $" + PortVariable + "\"",
			Dir:    dir,
			Env:    map[string]string{PortVariable: "9123"},
		}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "here 9123\n", res.Output)
	})

	t.Run("deadline marks timeout", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		start := time.Now()
		res, err := Run(ctx, Command{Script: "sleep 30", Dir: dir}, time.Second)
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.False(t, res.Interrupted)
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("cancellation marks interrupt", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(100*time.Millisecond, cancel)
		res, err := Run(ctx, Command{Script: "sleep 30", Dir: dir}, time.Second)
		require.NoError(t, err)
		assert.True(t, res.Interrupted)
	})
}

func TestProcess_Stop(t *testing.T) {
	t.Parallel()

	p, err := Start(Command{Script: "trap '' TERM; sleep 30", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, p.Exited())
	assert.Equal(t, -1, p.ExitCode())

	start := time.Now()
	p.Stop(200 * time.Millisecond)
	assert.True(t, p.Exited())
	assert.Less(t, time.Since(start), 10*time.Second)

	p.Stop(time.Second)
}
