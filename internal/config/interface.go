package config

import (
	"context"
)

// Loader is the interface for a format-specific settings loader.
type Loader interface {
	// Load reads the configuration file at path, overlays every value it
	// sets onto base and returns the result. A missing file is not an error;
	// base is returned unchanged. env is exposed to the file's expressions.
	Load(ctx context.Context, base Settings, path string, env map[string]string) (Settings, error)
}
