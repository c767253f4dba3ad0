package hcl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL settings loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the settings file at path and overlays it onto base.
func (l *Loader) Load(ctx context.Context, base config.Settings, path string, env map[string]string) (config.Settings, error) {
	logger := ctxlog.FromContext(ctx)

	if path == "" {
		return base, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No settings file found, using defaults.", "path", path)
			return base, nil
		}
		return base, fmt.Errorf("error accessing settings file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return base, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, newEvalContext(env), &root)
	if diags.HasErrors() {
		return base, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	out, err := translate(base, &root)
	if err != nil {
		return base, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	logger.Debug("Settings file loaded.", "path", path)
	return out, nil
}

// translate applies every value set in root onto s.
func translate(s config.Settings, root *fileRoot) (config.Settings, error) {
	if b := root.Sandbox; b != nil {
		setString(&s.Sandbox.Dir, b.Dir)
		setBool(&s.Sandbox.SkipEnvironment, b.SkipEnvironment)
		setString(&s.Sandbox.Ecosystem, b.Ecosystem)
	}
	if b := root.Run; b != nil {
		setBool(&s.Run.AutoFix, b.AutoFix)
		setInt(&s.Run.MaxRetries, b.MaxRetries)
		setInt(&s.Run.StartPort, b.StartPort)
		setInt(&s.Run.PortScan, b.PortScan)
	}
	if b := root.Test; b != nil {
		setInt(&s.Test.Port, b.Port)
		setString(&s.Test.LivenessPath, b.LivenessPath)
		durations := []struct {
			name string
			dst  *time.Duration
			src  *string
		}{
			{"startup_timeout", &s.Test.StartupTimeout, b.StartupTimeout},
			{"fallback_timeout", &s.Test.FallbackTimeout, b.FallbackTimeout},
			{"poll_interval", &s.Test.PollInterval, b.PollInterval},
			{"shell_timeout", &s.Test.ShellTimeout, b.ShellTimeout},
			{"stop_grace", &s.Test.StopGrace, b.StopGrace},
		}
		for _, d := range durations {
			if err := setDuration(d.dst, d.src); err != nil {
				return s, fmt.Errorf("test.%s: %w", d.name, err)
			}
		}
	}
	if b := root.Publish; b != nil {
		setString(&s.Publish.Author, b.Author)
		setString(&s.Publish.License, b.License)
		setString(&s.Publish.Repository, b.Repository)
		setString(&s.Publish.Version, b.Version)
		setString(&s.Publish.DockerNamespace, b.DockerNamespace)
		setString(&s.Publish.NPMScope, b.NPMScope)
		if s3 := b.S3; s3 != nil {
			setString(&s.Publish.S3.Endpoint, s3.Endpoint)
			setString(&s.Publish.S3.Region, s3.Region)
			setString(&s.Publish.S3.Bucket, s3.Bucket)
			setString(&s.Publish.S3.AccessKey, s3.AccessKey)
			setString(&s.Publish.S3.SecretKey, s3.SecretKey)
			setBool(&s.Publish.S3.UseSSL, s3.UseSSL)
		}
	}
	if b := root.Generator; b != nil {
		setString(&s.Generator.APIKey, b.APIKey)
		setString(&s.Generator.Model, b.Model)
	}
	return s, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
