package app

import (
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/modules/docker"
	"github.com/vk/markpact/modules/github"
	"github.com/vk/markpact/modules/npm"
	"github.com/vk/markpact/modules/pypi"
	"github.com/vk/markpact/modules/s3"
)

// coreModules is the definitive list of all publish backends compiled into
// the markpact binary.
var coreModules = []registry.Module{
	&pypi.Module{},
	&npm.Module{},
	&github.Module{},
	&docker.Module{},
	&s3.Module{},
}
