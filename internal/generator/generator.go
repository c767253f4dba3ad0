// Package generator is the optional text-generation capability: it drafts
// whole documents from a description, repairs failing documents and
// proposes publish configurations. Nothing in the core pipeline depends on
// it being present.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/markpact/internal/block"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/publish"
)

var (
	// ErrUnavailable is returned when no model is configured.
	ErrUnavailable = errors.New("generator is not configured")
	// ErrUntrustedOutput is returned when a model reply no longer carries the
	// instruction grammar.
	ErrUntrustedOutput = errors.New("generated output contains no instruction blocks")
)

// Model completes a prompt under a system instruction.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Generator wraps a Model with prompts and output validation.
type Generator struct {
	model Model
}

// New returns a Generator backed by model.
func New(model Model) *Generator {
	return &Generator{model: model}
}

// Contract drafts a complete document for description.
func (g *Generator) Contract(ctx context.Context, description string) (string, error) {
	ctxlog.FromContext(ctx).Info("Generating document.", "description", preview(description))
	out, err := g.complete(ctx, contractPrompt, "Generate a Markpact README for:\n\n"+description)
	if err != nil {
		return "", err
	}
	return trusted(Clean(out))
}

// Repair asks for a corrected document given the failing run's output.
func (g *Generator) Repair(ctx context.Context, document, failure string) (string, error) {
	ctxlog.FromContext(ctx).Info("Requesting document repair.")
	prompt := fmt.Sprintf("The document below failed when executed.\n\n[ERROR OUTPUT]\n%s\n\n[DOCUMENT]\n%s", failure, document)
	out, err := g.complete(ctx, repairPrompt, prompt)
	if err != nil {
		return "", err
	}
	return trusted(Clean(out))
}

// PublishConfig proposes a publish configuration for document.
func (g *Generator) PublishConfig(ctx context.Context, document string) (publish.Config, error) {
	out, err := g.complete(ctx, publishPrompt, document)
	if err != nil {
		return publish.Config{}, err
	}
	for _, b := range block.Parse(Clean(out)) {
		if b.Kind == block.KindPublish {
			cfg := publish.Parse(b.Body, b.Meta)
			if err := cfg.Validate(); err != nil {
				return publish.Config{}, fmt.Errorf("%w: %v", ErrUntrustedOutput, err)
			}
			return cfg, nil
		}
	}
	return publish.Config{}, ErrUntrustedOutput
}

func (g *Generator) complete(ctx context.Context, system, prompt string) (string, error) {
	if g == nil || g.model == nil {
		return "", ErrUnavailable
	}
	out, err := g.model.Complete(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return out, nil
}

func trusted(doc string) (string, error) {
	if !block.Contains(doc) {
		return "", ErrUntrustedOutput
	}
	return doc, nil
}

// Clean strips a wrapping fence around the whole reply and closes a trailing
// unclosed fence.
func Clean(content string) string {
	content = strings.TrimSpace(content)
	for _, wrapper := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(content, wrapper+"\n") {
			content = strings.TrimPrefix(content, wrapper)
			content = strings.TrimSuffix(strings.TrimSpace(content), "```")
			break
		}
	}
	return CloseFences(strings.TrimSpace(content))
}

// CloseFences appends a closing fence when the last opened fence is never
// closed.
func CloseFences(content string) string {
	open := false
	for _, line := range strings.Split(content, "\n") {
		s := strings.TrimSpace(line)
		switch {
		case !open && strings.HasPrefix(s, "```"):
			open = true
		case open && s == "```":
			open = false
		}
	}
	if open {
		return content + "\n```"
	}
	return content
}

func preview(s string) string {
	if r := []rune(s); len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return s
}
