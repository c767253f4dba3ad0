package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/sandbox"
)

// Module is the interface that all publish backends must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Target is everything a publisher needs for one publish.
type Target struct {
	Sandbox  *sandbox.Sandbox
	Config   publish.Config
	Settings config.PublishSettings
	// Document is the source document text; backends use its prose for
	// generated package descriptions.
	Document string
	// RunCommand is the document's run command, if any.
	RunCommand string
}

// Result is the structured outcome of a publish. Expected failures are
// reported here rather than as errors.
type Result struct {
	Success  bool             `yaml:"success"`
	Registry publish.Registry `yaml:"registry"`
	Message  string           `yaml:"message"`
	Version  string           `yaml:"version"`
	URL      string           `yaml:"url,omitempty"`
}

// Publisher uploads the sandbox to one registry.
type Publisher interface {
	Publish(ctx context.Context, t Target) Result
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, t Target) Result

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, t Target) Result { return f(ctx, t) }

// Registry holds the publishers registered for a single application instance.
type Registry struct {
	publishers map[publish.Registry]Publisher
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{publishers: make(map[publish.Registry]Publisher)}
}

// RegisterPublisher binds name to p. Registering a name twice is a
// programming error.
func (r *Registry) RegisterPublisher(name publish.Registry, p Publisher) {
	if _, exists := r.publishers[name]; exists {
		panic(fmt.Sprintf("publisher for registry '%s' already registered", name))
	}
	slog.Debug("Registering publisher.", "registry", name)
	r.publishers[name] = p
}

// Publisher looks up the publisher for name.
func (r *Registry) Publisher(name publish.Registry) (Publisher, bool) {
	p, ok := r.publishers[name]
	return p, ok
}

// Names lists registered targets in sorted order.
func (r *Registry) Names() []publish.Registry {
	out := make([]publish.Registry, 0, len(r.publishers))
	for name := range r.publishers {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks that every name in required has a publisher.
func (r *Registry) Validate(required []publish.Registry) error {
	var missing []publish.Registry
	for _, name := range required {
		if _, ok := r.publishers[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no publisher registered for: %v", missing)
	}
	return nil
}

// Publish dispatches t to the publisher for its configured registry.
func (r *Registry) Publish(ctx context.Context, t Target) Result {
	logger := ctxlog.FromContext(ctx).With("registry", t.Config.Registry)
	p, ok := r.Publisher(t.Config.Registry)
	if !ok {
		return Result{
			Registry: t.Config.Registry,
			Message:  fmt.Sprintf("Unknown registry: %s (available: %v)", t.Config.Registry, r.Names()),
			Version:  t.Config.Version,
		}
	}
	logger.Info("Publishing.", "name", t.Config.Name, "version", t.Config.Version)
	res := p.Publish(ctxlog.WithLogger(ctx, logger), t)
	if res.Registry == "" {
		res.Registry = t.Config.Registry
	}
	return res
}
