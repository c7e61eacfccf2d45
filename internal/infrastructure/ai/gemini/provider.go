// Package gemini implements ai.Provider on the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Options tunes generation.
type Options struct {
	Temperature     float32
	MaxOutputTokens int32
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Provider generates text with Gemini models.
type Provider struct {
	client *genai.Client
	opts   Options
}

// NewProvider creates a Gemini provider for apiKey.
func NewProvider(ctx context.Context, apiKey string, opts Options) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Provider{client: client, opts: opts}, nil
}

// Generate sends prompt as a single user turn to model.
func (p *Provider) Generate(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{}
	if p.opts.Temperature > 0 {
		config.Temperature = genai.Ptr(p.opts.Temperature)
	}
	if p.opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = p.opts.MaxOutputTokens
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %w", model, err)
	}

	return extractText(resp), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
