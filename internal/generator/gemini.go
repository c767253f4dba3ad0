package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/markpact/internal/config"
	genai "google.golang.org/genai"
)

// Gemini is a Model backed by the Gemini API.
type Gemini struct {
	cli   *genai.Client
	model string
}

// NewGemini builds a Gemini model from settings. It returns ErrUnavailable
// when no API key is configured.
func NewGemini(ctx context.Context, s config.GeneratorSettings) (*Gemini, error) {
	if s.APIKey == "" {
		return nil, ErrUnavailable
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: s.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{cli: cli, model: s.Model}, nil
}

// Name identifies the backing model.
func (g *Gemini) Name() string { return "Gemini:" + g.model }

// Complete sends prompt under the system instruction and returns the first
// candidate's text.
func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty response from model")
	}
	var out string
	for _, p := range resp.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out, nil
}
