package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/document"
	"github.com/vk/markpact/internal/generator"
	"github.com/vk/markpact/internal/plan"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/internal/sandbox"
)

// publish resolves the publish config, hands the sandbox to the matching
// backend and writes the outcome back into the document.
func (a *App) publish(ctx context.Context, sb *sandbox.Sandbox, p *plan.Plan, doc *document.File, text string) error {
	logger := ctxlog.FromContext(ctx)

	cfg, explicit := a.publishConfig(ctx, p, text)
	if a.config.Registry != "" {
		cfg.Registry = publish.Registry(a.config.Registry)
	}
	if a.config.Bump != "" {
		next, err := publish.Bump(cfg.Version, a.config.Bump)
		if err != nil {
			return err
		}
		logger.Info("Version bumped.", "from", cfg.Version, "to", next)
		cfg.Version = next
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("Publishing.", "registry", cfg.Registry, "name", cfg.Name, "version", cfg.Version)
	res := a.registry.Publish(ctx, registry.Target{
		Sandbox:    sb,
		Config:     cfg,
		Settings:   a.settings.Publish,
		Document:   text,
		RunCommand: p.RunCommand,
	})
	if !res.Success && ctx.Err() != nil {
		return ErrInterrupted
	}
	a.printResult(res)
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrPublishFailed, res.Message)
	}

	var changed bool
	var err error
	switch {
	case !explicit:
		changed, err = doc.EnsurePublishBlock(cfg)
	case a.config.Bump != "":
		changed, err = doc.SetVersion(cfg.Version)
	}
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if changed {
		logger.Info("Document updated.", "path", doc.Path(), "version", cfg.Version)
	}
	return nil
}

// publishConfig returns the explicit publish block when there is one.
// Otherwise the generator drafts one, falling back to inference, and the
// operator confirms it when stdin is a terminal.
func (a *App) publishConfig(ctx context.Context, p *plan.Plan, text string) (publish.Config, bool) {
	logger := ctxlog.FromContext(ctx)
	if p.Publish != nil {
		return *p.Publish, true
	}

	cfg, err := a.gen(ctx).PublishConfig(ctx, text)
	if err != nil {
		if !errors.Is(err, generator.ErrUnavailable) {
			logger.Warn("Generated publish config rejected, inferring instead.", "error", err)
		}
		cfg = publish.Infer(text, p.FilePaths(), p.RunCommand, a.settings.Publish)
	}
	if a.interactive {
		cfg = publish.Prompt(a.in, a.outW, cfg)
	}
	return cfg, false
}

func (a *App) printResult(res registry.Result) {
	if res.Success {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(a.outW, "%s Published %s %s\n", green("✓"), res.Registry, res.Version)
		if res.URL != "" {
			fmt.Fprintf(a.outW, "  %s\n", res.URL)
		}
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(a.outW, "%s %s\n", red("✗"), res.Message)
}
