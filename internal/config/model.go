package config

import "time"

// Settings is the unified, format-agnostic representation of the tool's
// configuration. It is built once per invocation and passed explicitly to
// every component constructor.
type Settings struct {
	Sandbox   SandboxSettings
	Run       RunSettings
	Test      TestSettings
	Publish   PublishSettings
	Generator GeneratorSettings
}

// SandboxSettings configures the working directory and its environment.
type SandboxSettings struct {
	Dir             string
	SkipEnvironment bool
	// Ecosystem is the dependency ecosystem whose deps blocks contribute to
	// the plan.
	Ecosystem string
}

// RunSettings configures the run/auto-fix controller.
type RunSettings struct {
	AutoFix    bool
	MaxRetries int
	StartPort  int
	PortScan   int
}

// TestSettings configures the test controller.
type TestSettings struct {
	Port            int
	LivenessPath    string
	StartupTimeout  time.Duration
	FallbackTimeout time.Duration
	PollInterval    time.Duration
	ShellTimeout    time.Duration
	StopGrace       time.Duration
}

// PublishSettings carries defaults used when inferring a publish config and
// the credentials consumed by publish backends.
type PublishSettings struct {
	Author          string
	License         string
	Repository      string
	Version         string
	DockerNamespace string
	NPMScope        string
	S3              S3Settings
}

// S3Settings configures the S3-compatible publish backend.
type S3Settings struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// GeneratorSettings configures the optional generation capability. An empty
// APIKey means the capability is absent.
type GeneratorSettings struct {
	APIKey string
	Model  string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Sandbox: SandboxSettings{
			Dir:       "./sandbox",
			Ecosystem: "python",
		},
		Run: RunSettings{
			AutoFix:    true,
			MaxRetries: 3,
			StartPort:  8000,
			PortScan:   100,
		},
		Test: TestSettings{
			Port:            8000,
			LivenessPath:    "/health",
			StartupTimeout:  15 * time.Second,
			FallbackTimeout: 10 * time.Second,
			PollInterval:    500 * time.Millisecond,
			ShellTimeout:    30 * time.Second,
			StopGrace:       5 * time.Second,
		},
		Publish: PublishSettings{
			License: "MIT",
			Version: "0.1.0",
			S3:      S3Settings{Region: "us-east-1", UseSSL: true},
		},
		Generator: GeneratorSettings{
			Model: "gemini-2.5-flash",
		},
	}
}
