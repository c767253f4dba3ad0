package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all possible top-level blocks of a settings
// file. Every attribute is optional; a nil pointer means "not set".
type fileRoot struct {
	Sandbox   *sandboxBlock   `hcl:"sandbox,block"`
	Run       *runBlock       `hcl:"run,block"`
	Test      *testBlock      `hcl:"test,block"`
	Publish   *publishBlock   `hcl:"publish,block"`
	Generator *generatorBlock `hcl:"generator,block"`
	Remain    hcl.Body        `hcl:",remain"`
}

type sandboxBlock struct {
	Dir             *string `hcl:"dir,optional"`
	SkipEnvironment *bool   `hcl:"skip_environment,optional"`
	Ecosystem       *string `hcl:"ecosystem,optional"`
}

type runBlock struct {
	AutoFix    *bool `hcl:"auto_fix,optional"`
	MaxRetries *int  `hcl:"max_retries,optional"`
	StartPort  *int  `hcl:"start_port,optional"`
	PortScan   *int  `hcl:"port_scan,optional"`
}

type testBlock struct {
	Port            *int    `hcl:"port,optional"`
	LivenessPath    *string `hcl:"liveness_path,optional"`
	StartupTimeout  *string `hcl:"startup_timeout,optional"`
	FallbackTimeout *string `hcl:"fallback_timeout,optional"`
	PollInterval    *string `hcl:"poll_interval,optional"`
	ShellTimeout    *string `hcl:"shell_timeout,optional"`
	StopGrace       *string `hcl:"stop_grace,optional"`
}

type publishBlock struct {
	Author          *string  `hcl:"author,optional"`
	License         *string  `hcl:"license,optional"`
	Repository      *string  `hcl:"repository,optional"`
	Version         *string  `hcl:"version,optional"`
	DockerNamespace *string  `hcl:"docker_namespace,optional"`
	NPMScope        *string  `hcl:"npm_scope,optional"`
	S3              *s3Block `hcl:"s3,block"`
}

type s3Block struct {
	Endpoint  *string `hcl:"endpoint,optional"`
	Region    *string `hcl:"region,optional"`
	Bucket    *string `hcl:"bucket,optional"`
	AccessKey *string `hcl:"access_key,optional"`
	SecretKey *string `hcl:"secret_key,optional"`
	UseSSL    *bool   `hcl:"use_ssl,optional"`
}

type generatorBlock struct {
	APIKey *string `hcl:"api_key,optional"`
	Model  *string `hcl:"model,optional"`
}
