// Package anthropic implements ai.Provider on the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 800

// Provider generates text with Claude models.
type Provider struct {
	client    anthropic.Client
	maxTokens int64
}

// NewProvider creates an Anthropic provider for apiKey. Extra request
// options are appended after the key.
func NewProvider(apiKey string, maxTokens int, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Provider{
		client:    anthropic.NewClient(reqOpts...),
		maxTokens: int64(maxTokens),
	}, nil
}

// Generate sends prompt as a single user message to model.
func (p *Provider) Generate(ctx context.Context, model, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate (%s): %w", model, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
