package app

import (
	"os"
	"strings"
	"testing"

	"github.com/vk/markpact/internal/hcl"
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/internal/shell"
)

// SetupAppTest creates a new app instance for system testing. The app never
// prompts and has no generator unless the test installs one.
func SetupAppTest(t *testing.T, cfg Config, modules ...registry.Module) (*App, *shell.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	logBuffer := &shell.SafeBuffer{}
	testApp, err := NewApp(logBuffer, validated, hcl.NewLoader(), modules...)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	testApp.SetInput(strings.NewReader(""), false)
	testApp.SetGenerator(nil)

	t.Cleanup(func() {
		testApp.Close()
		if os.Getenv("MARKPACT_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
