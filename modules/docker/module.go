// Package docker builds the sandbox into a container image and pushes it to
// Docker Hub or the GitHub Container Registry.
package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/markpact/internal/container"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
)

const (
	// DockerHub is the default image registry host.
	DockerHub = "docker.io"
	// GHCR is the GitHub Container Registry host.
	GHCR = "ghcr.io"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the Docker Hub and GHCR publishers.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPublisher(publish.RegistryDocker, &Publisher{Host: DockerHub})
	r.RegisterPublisher(publish.RegistryGHCR, &Publisher{Host: GHCR})
}

// Publisher builds and pushes `<image>:<version>` and `<image>:latest`.
type Publisher struct {
	Host string
}

// Image is the repository reference for name on this publisher's host.
func (p *Publisher) Image(name string) string {
	if p.Host == "" || p.Host == DockerHub {
		return name
	}
	return p.Host + "/" + name
}

// Publish generates a Dockerfile when absent, builds, and pushes.
func (p *Publisher) Publish(ctx context.Context, t registry.Target) registry.Result {
	logger := ctxlog.FromContext(ctx)

	if wrote, err := registry.WriteIfAbsent(t, "Dockerfile", Dockerfile(t)); err != nil {
		return registry.Failed(t, "Build", err.Error(), "")
	} else if wrote {
		logger.Info("Generated Dockerfile.")
	}

	name := Repository(t)
	image := p.Image(name)
	versioned := image + ":" + t.Config.Version
	latest := image + ":latest"

	build := fmt.Sprintf("docker build -t %s -t %s .", versioned, latest)
	if payload, ok := registry.Run(ctx, t, registry.Step{Stage: "Build", Script: build}); !ok {
		return registry.Failed(t, "Build", payload, "")
	}
	if payload, ok := registry.Run(ctx, t, registry.Step{Stage: "Push", Script: "docker push " + versioned}); !ok {
		return registry.Failed(t, "Push", payload, p.loginHint())
	}
	if payload, ok := registry.Run(ctx, t, registry.Step{Stage: "Push", Script: "docker push " + latest}); !ok {
		logger.Warn("Failed to push latest tag.", "output", payload)
	}

	url := "https://hub.docker.com/r/" + name
	if p.Host != "" && p.Host != DockerHub {
		url = image
	}
	return registry.Result{
		Success: true,
		Message: "Pushed " + versioned,
		Version: t.Config.Version,
		URL:     url,
	}
}

// Repository is the image repository for t. A bare name is placed under the
// configured namespace when there is one.
func Repository(t registry.Target) string {
	name := strings.ToLower(t.Config.Name)
	if ns := t.Settings.DockerNamespace; ns != "" && !strings.Contains(name, "/") {
		return ns + "/" + name
	}
	return name
}

func (p *Publisher) loginHint() string {
	if p.Host == GHCR {
		return "docker login ghcr.io with a token that has write:packages"
	}
	return "docker login and ensure repository exists"
}

// Dockerfile renders a minimal image definition for t. The container runs
// the document's run command when there is one.
func Dockerfile(t registry.Target) string {
	return container.Dockerfile(t.RunCommand,
		container.Label{Key: "maintainer", Value: t.Config.Author},
		container.Label{Key: "version", Value: t.Config.Version},
		container.Label{Key: "description", Value: registry.Description(t)},
	)
}
