// Package github publishes npm packages to GitHub Packages.
package github

import (
	"fmt"

	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/modules/npm"
)

// PackagesRegistry is the npm endpoint of GitHub Packages.
const PackagesRegistry = "https://npm.pkg.github.com"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the GitHub Packages publisher.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPublisher(publish.RegistryGitHub, &npm.Publisher{
		RegistryURL: PackagesRegistry,
		Label:       "GitHub Packages",
		PackageURL: func(name string) string {
			return fmt.Sprintf("%s/%s", PackagesRegistry, name)
		},
	})
}
