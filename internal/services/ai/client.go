package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/pkg/metrics"
)

// UnavailableReply is sent to users when every model failed.
const UnavailableReply = "Sorry, all AI models are currently unavailable."

// ErrExhausted is returned alongside UnavailableReply when no model produced text.
var ErrExhausted = errors.New("all AI models failed")

// Reply is the outcome of a Generate call.
type Reply struct {
	Text string
	// Model is the entry that produced Text; empty when exhausted.
	Model string
}

// Client produces a reply for a prompt.
type Client interface {
	// Generate returns the first non-empty completion. When every model
	// fails it returns a Reply carrying UnavailableReply and ErrExhausted.
	Generate(ctx context.Context, prompt string) (Reply, error)
}

// Config holds the fallback client dependencies.
type Config struct {
	Providers map[ProviderName]Provider
	Models    []string
	Timeout   time.Duration
}

type fallbackClient struct {
	providers map[ProviderName]Provider
	models    []string
	timeout   time.Duration
}

// NewClient creates a client that tries cfg.Models in order.
func NewClient(cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	providers := cfg.Providers
	if providers == nil {
		providers = map[ProviderName]Provider{}
	}
	return &fallbackClient{
		providers: providers,
		models:    append([]string(nil), cfg.Models...),
		timeout:   timeout,
	}, nil
}

func (c *fallbackClient) Generate(ctx context.Context, prompt string) (Reply, error) {
	for _, entry := range c.models {
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}

		providerName, model := ParseModel(entry)
		provider, ok := c.providers[providerName]
		if !ok {
			log.Debug().Str("model", entry).Str("provider", string(providerName)).Msg("no credentials for provider, skipping model")
			metrics.AIRequests.WithLabelValues(entry, "unavailable").Inc()
			continue
		}

		text, err := c.call(ctx, provider, model, prompt)
		if err != nil {
			log.Warn().Err(err).Str("model", entry).Msg("model failed, trying next")
			metrics.AIRequests.WithLabelValues(entry, metrics.OutcomeFailed).Inc()
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Warn().Str("model", entry).Msg("model returned empty text, trying next")
			metrics.AIRequests.WithLabelValues(entry, "empty").Inc()
			continue
		}

		metrics.AIRequests.WithLabelValues(entry, metrics.OutcomeOK).Inc()
		return Reply{Text: text, Model: entry}, nil
	}

	metrics.AIRequests.WithLabelValues("all", metrics.OutcomeExhausted).Inc()
	return Reply{Text: UnavailableReply}, ErrExhausted
}

func (c *fallbackClient) call(ctx context.Context, p Provider, model, prompt string) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return p.Generate(ctx, model, prompt)
}
