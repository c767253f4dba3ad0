package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/plan"
	"github.com/vk/markpact/internal/sandbox"
	"github.com/vk/markpact/internal/tester"
	"gopkg.in/yaml.v3"
)

// test runs every test block of p. HTTP lines start command as a service
// listening on port; shell lines run in the sandbox.
func (a *App) test(ctx context.Context, sb *sandbox.Sandbox, p *plan.Plan, command string, port int) error {
	logger := ctxlog.FromContext(ctx)
	if len(p.Tests) == 0 {
		return errors.New("no markpact:test blocks found")
	}

	req := tester.Request{Port: port}
	for _, spec := range p.TestsOf(plan.FlavorHTTP) {
		req.HTTP = append(req.HTTP, plan.CaseLines(spec.Body)...)
	}
	for _, spec := range p.TestsOf(plan.FlavorShell) {
		req.Shell = append(req.Shell, plan.CaseLines(spec.Body)...)
	}
	if len(req.HTTP) > 0 {
		req.Command = command
	}
	logger.Info("Running tests.", "http", len(req.HTTP), "shell", len(req.Shell))

	suite := tester.New(sb, a.settings.Test).Run(ctx, req)
	suite.Print(a.outW)

	if a.config.ReportPath != "" {
		if err := writeReport(a.config.ReportPath, suite); err != nil {
			return err
		}
		logger.Info("Test report written.", "path", a.config.ReportPath)
	}

	if ctx.Err() != nil {
		return ErrInterrupted
	}
	if !suite.OK() {
		return fmt.Errorf("%w: %d of %d", ErrTestsFailed, suite.Failed(), len(suite.Cases))
	}
	return nil
}

func writeReport(path string, suite *tester.Suite) error {
	out, err := yaml.Marshal(struct {
		Passed       int `yaml:"passed"`
		Failed       int `yaml:"failed"`
		tester.Suite `yaml:",inline"`
	}{suite.Passed(), suite.Failed(), *suite})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing test report: %w", err)
	}
	return nil
}
