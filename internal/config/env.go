package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ReadEnvironment returns the process environment as a map, layered over the
// values of the dotenv file at dotenvPath when it exists. Process variables
// win over file values, matching godotenv.Load, but the process environment
// itself is never modified.
func ReadEnvironment(dotenvPath string) (map[string]string, error) {
	env := map[string]string{}
	if dotenvPath != "" {
		fileEnv, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env, nil
}

// FromEnvironment overlays the recognised environment variables onto s. It
// is the only place where environment variables become settings.
func FromEnvironment(s Settings, env map[string]string) Settings {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v := strings.TrimSpace(env[k]); v != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := get("MARKPACT_SANDBOX"); ok {
		s.Sandbox.Dir = v
	}
	if env["MARKPACT_NO_VENV"] == "1" {
		s.Sandbox.SkipEnvironment = true
	}
	if v, ok := get("MARKPACT_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			s.Test.Port = port
		}
	}

	if v, ok := get("MARKPACT_AUTHOR"); ok {
		s.Publish.Author = v
	} else if v, ok := get("GIT_AUTHOR_NAME", "USER"); ok && s.Publish.Author == "" {
		// Login identities only fill an author no settings layer provided.
		s.Publish.Author = v
	}
	if v, ok := get("MARKPACT_LICENSE"); ok {
		s.Publish.License = v
	}
	if v, ok := get("MARKPACT_REPOSITORY"); ok {
		s.Publish.Repository = v
	}
	if v, ok := get("MARKPACT_VERSION"); ok {
		s.Publish.Version = v
	}
	if v, ok := get("MARKPACT_DOCKER_NAMESPACE", "DOCKER_USERNAME"); ok {
		s.Publish.DockerNamespace = v
	}
	if v, ok := get("MARKPACT_NPM_SCOPE"); ok {
		s.Publish.NPMScope = v
	}

	if v, ok := get("MARKPACT_S3_ENDPOINT"); ok {
		s.Publish.S3.Endpoint = v
	}
	if v, ok := get("MARKPACT_S3_REGION"); ok {
		s.Publish.S3.Region = v
	}
	if v, ok := get("MARKPACT_S3_BUCKET"); ok {
		s.Publish.S3.Bucket = v
	}
	if v, ok := get("MARKPACT_S3_ACCESS_KEY"); ok {
		s.Publish.S3.AccessKey = v
	}
	if v, ok := get("MARKPACT_S3_SECRET_KEY"); ok {
		s.Publish.S3.SecretKey = v
	}
	if env["MARKPACT_S3_INSECURE"] == "1" {
		s.Publish.S3.UseSSL = false
	}

	if v, ok := get("GEMINI_API_KEY", "GOOGLE_API_KEY"); ok {
		s.Generator.APIKey = v
	}
	if v, ok := get("MARKPACT_MODEL"); ok {
		s.Generator.Model = v
	}
	return s
}
