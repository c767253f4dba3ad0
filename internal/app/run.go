package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/markpact/internal/block"
	"github.com/vk/markpact/internal/container"
	"github.com/vk/markpact/internal/converter"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/deps"
	"github.com/vk/markpact/internal/document"
	"github.com/vk/markpact/internal/plan"
	"github.com/vk/markpact/internal/runner"
	"github.com/vk/markpact/internal/sandbox"
)

// ExitInterrupted is the process exit status after an operator interrupt.
const ExitInterrupted = runner.ExitInterrupted

var (
	// ErrInterrupted is returned when the operator interrupted the run.
	ErrInterrupted = errors.New("interrupted")
	// ErrTestsFailed is returned when at least one test case failed.
	ErrTestsFailed = errors.New("tests failed")
	// ErrPublishFailed is returned when the publish backend reported failure.
	ErrPublishFailed = errors.New("publish failed")
)

// RunError reports a run command that still failed after every fix.
type RunError struct {
	ExitCode int
	Failure  runner.FailureKind
}

func (e *RunError) Error() string {
	if e.Failure != "" {
		return fmt.Sprintf("run command exited with status %d (%s)", e.ExitCode, e.Failure)
	}
	return fmt.Sprintf("run command exited with status %d", e.ExitCode)
}

// Run executes the main application logic based on the app configuration.
// Any failure caused by an operator interrupt is reported as ErrInterrupted,
// whichever step it happened in.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	err := a.run(ctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrInterrupted) {
		a.logger.Debug("Step aborted by interrupt.", "error", err)
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	return err
}

func (a *App) run(ctx context.Context) error {
	if a.config.Clean && !a.config.DryRun {
		if err := a.clean(ctx); err != nil {
			return err
		}
	}

	path := a.config.DocumentPath
	if a.config.Prompt != "" {
		generated, err := a.generate(ctx)
		if err != nil {
			return err
		}
		if !a.config.RunAfterGenerate {
			fmt.Fprintf(a.outW, "Run with: markpact %s\n", generated)
			if a.config.Docker {
				fmt.Fprintf(a.outW, "Or with Docker: markpact %s --docker\n", generated)
			}
			return nil
		}
		path = generated
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	text, docPath, done, err := a.convert(ctx, path, string(raw))
	if err != nil || done {
		return err
	}

	if a.config.Watch {
		return a.watch(ctx, path)
	}
	return a.execute(ctx, docPath, text, a.config.LLMFix)
}

func (a *App) clean(ctx context.Context) error {
	sb, err := sandbox.New(a.settings.Sandbox.Dir)
	if err != nil {
		return err
	}
	if err := sb.Clean(); err != nil {
		return fmt.Errorf("cleaning sandbox: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Sandbox removed.", "dir", sb.Dir())
	return nil
}

// generate drafts a document from the prompt and writes it to the output
// path, returning that path.
func (a *App) generate(ctx context.Context) (string, error) {
	content, err := a.gen(ctx).Contract(ctx, a.config.Prompt)
	if err != nil {
		return "", fmt.Errorf("generating document: %w", err)
	}
	content = withNewline(content)
	out := a.config.Output
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing generated document: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Generated document saved.", "path", out)
	return out, nil
}

// convert applies plain-Markdown conversion when it was requested. It
// returns the text to execute and the path of the document fixes should be
// written back to. done is true when nothing is left to execute.
func (a *App) convert(ctx context.Context, path, text string) (out, docPath string, done bool, err error) {
	logger := ctxlog.FromContext(ctx)
	marked := block.Contains(text)

	if !a.config.Convert && !(a.config.Auto && !marked) {
		if !marked {
			logger.Warn("No markpact blocks found; use --convert or --auto to convert plain Markdown.", "path", path)
		}
		return text, path, false, nil
	}

	logger.Info("Converting document.", "path", path)
	res := converter.Convert(text)
	res.Report(a.outW)

	docPath = path
	if a.config.SaveConverted != "" {
		if err := os.WriteFile(a.config.SaveConverted, []byte(res.Text), 0o644); err != nil {
			return "", "", false, fmt.Errorf("saving converted document: %w", err)
		}
		logger.Info("Saved converted document.", "path", a.config.SaveConverted)
		docPath = a.config.SaveConverted
	}
	if a.config.ConvertOnly {
		fmt.Fprintf(a.outW, "\n--- CONVERTED CONTENT ---\n\n%s\n", res.Text)
		return "", "", true, nil
	}
	return res.Text, docPath, false, nil
}

// build parses text and folds it into a plan.
func (a *App) build(ctx context.Context, text string) (*plan.Plan, error) {
	blocks := block.Parse(text)
	ctxlog.FromContext(ctx).Debug("Document parsed.", "blocks", len(blocks))
	p, err := plan.Build(blocks, plan.Options{Ecosystem: a.settings.Sandbox.Ecosystem})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// materialize writes the plan's files into the sandbox.
func (a *App) materialize(ctx context.Context, p *plan.Plan) (*sandbox.Sandbox, error) {
	sb, err := sandbox.New(a.settings.Sandbox.Dir)
	if err != nil {
		return nil, err
	}
	if _, err := sb.Materialize(ctx, p.Files); err != nil {
		return nil, err
	}
	return sb, nil
}

// execute runs the pipeline on text: plan, materialize, install, then run
// or test, then publish. allowRepair permits one generator-assisted repair
// of a failed run.
func (a *App) execute(ctx context.Context, docPath, text string, allowRepair bool) error {
	logger := ctxlog.FromContext(ctx)

	p, err := a.build(ctx, text)
	if err != nil {
		return err
	}

	if a.config.DryRun {
		out, err := p.Summarize().YAML()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "%s", out)
		if a.config.Docker {
			fmt.Fprintf(a.outW, "Would build and run image %s\n", container.DefaultImage)
		}
		return nil
	}

	sb, err := a.materialize(ctx, p)
	if err != nil {
		return err
	}
	if a.config.Docker {
		return a.runContainer(ctx, sb, p)
	}

	installer := deps.New(sb, a.settings.Sandbox)
	if len(p.Dependencies) > 0 {
		if err := installer.EnsureEnvironment(ctx); err != nil {
			return err
		}
		if err := installer.Install(ctx, p.Dependencies); err != nil {
			return err
		}
	}

	doc, err := document.Open(docPath, a.settings.Sandbox.Ecosystem)
	if err != nil {
		return err
	}

	switch {
	case a.config.Test:
		if err := a.test(ctx, sb, p, p.RunCommand, a.settings.Test.Port); err != nil {
			return err
		}
	case a.config.Publish:
		// Publishing packages the sandbox; the service is not started.
	case strings.TrimSpace(p.RunCommand) != "":
		res, err := runner.New(sb, a.settings.Run,
			runner.WithInstaller(installer),
			runner.WithDocument(doc),
			runner.WithOutput(a.outW),
		).Run(ctx, p.RunCommand)
		if err != nil {
			return err
		}
		if res.Interrupted {
			return ErrInterrupted
		}
		if res.ExitCode != 0 {
			runErr := &RunError{ExitCode: res.ExitCode, Failure: lastFailure(res)}
			if allowRepair {
				return a.repair(ctx, doc, text, res, runErr)
			}
			return runErr
		}
	default:
		logger.Info("No run command defined.")
	}

	if a.config.Publish {
		return a.publish(ctx, sb, p, doc, text)
	}
	return nil
}

func lastFailure(res *runner.Result) runner.FailureKind {
	if n := len(res.Attempts); n > 0 {
		return res.Attempts[n-1].Failure
	}
	return ""
}

// repair asks the generator for a corrected document after a failed run,
// writes it back and executes it once more. The original failure is returned
// when no trusted repair is available.
func (a *App) repair(ctx context.Context, doc *document.File, text string, res *runner.Result, runErr *RunError) error {
	logger := ctxlog.FromContext(ctx)
	failure := fmt.Sprintf("exit code %d, classified as %s\n%s", res.ExitCode, runErr.Failure, tail(res.Output, 3000))

	fixed, err := a.gen(ctx).Repair(ctx, text, failure)
	if err != nil {
		logger.Warn("Document repair unavailable.", "error", err)
		return runErr
	}
	fixed = withNewline(fixed)
	if err := doc.Write(fixed); err != nil {
		return err
	}
	logger.Info("Document repaired, running again.", "path", doc.Path())
	return a.execute(ctx, doc.Path(), fixed, false)
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
