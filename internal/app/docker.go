package app

import (
	"context"
	"io"

	"github.com/vk/markpact/internal/container"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/plan"
	"github.com/vk/markpact/internal/runner"
	"github.com/vk/markpact/internal/sandbox"
)

func defaultEngine(sb *sandbox.Sandbox) *container.Engine {
	return container.New(sb, runner.FreePort)
}

// runContainer builds the sandbox into an image and runs it, or runs the
// test blocks against it in test mode. Dependencies are installed into the
// image, not the host.
func (a *App) runContainer(ctx context.Context, sb *sandbox.Sandbox, p *plan.Plan) error {
	logger := ctxlog.FromContext(ctx)
	engine := a.newEngine(sb)

	if err := engine.Available(ctx); err != nil {
		return err
	}
	if err := engine.Prepare(p.Dependencies, p.RunCommand); err != nil {
		return err
	}
	logger.Info("Generated Dockerfile.", "dependencies", len(p.Dependencies))
	if err := engine.Build(ctx); err != nil {
		return err
	}

	port, err := engine.HostPort(ctx, a.settings.Test.Port, a.settings.Run.PortScan)
	if err != nil {
		return err
	}

	if a.config.Test {
		engine.Remove(ctx)
		defer engine.Stop(ctx)
		return a.test(ctx, sb, p, engine.RunScript(port), port)
	}

	res, err := engine.Run(ctx, port)
	if err != nil {
		return err
	}
	_, _ = io.WriteString(a.outW, res.Output)
	if res.Interrupted {
		return ErrInterrupted
	}
	if res.ExitCode != 0 {
		return &RunError{ExitCode: res.ExitCode}
	}
	return nil
}
