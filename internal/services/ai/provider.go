// Package ai routes prompts across an ordered list of models and providers.
package ai

import (
	"context"
	"strings"
)

// ProviderName identifies an AI provider.
type ProviderName string

const (
	ProviderGemini    ProviderName = "gemini"
	ProviderAnthropic ProviderName = "anthropic"
)

// Provider generates a completion for a single prompt.
type Provider interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ParseModel splits a configured model entry into provider and model name.
//
//	"anthropic/claude-3-5-haiku-latest" → (anthropic, "claude-3-5-haiku-latest")
//	"claude-3-5-haiku-latest"           → (anthropic, "claude-3-5-haiku-latest")
//	"gemini/gemini-2.5-flash"           → (gemini, "gemini-2.5-flash")
//	"gemini-2.5-flash"                  → (gemini, "gemini-2.5-flash")
func ParseModel(entry string) (ProviderName, string) {
	entry = strings.TrimSpace(entry)
	if i := strings.Index(entry, "/"); i > 0 {
		name := entry[i+1:]
		switch strings.ToLower(entry[:i]) {
		case string(ProviderAnthropic):
			return ProviderAnthropic, name
		case string(ProviderGemini):
			return ProviderGemini, name
		}
	}
	if strings.HasPrefix(strings.ToLower(entry), "claude") {
		return ProviderAnthropic, entry
	}
	return ProviderGemini, entry
}
