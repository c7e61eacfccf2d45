// Package dispatch runs command handlers with isolation and orders work
// per sender.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/pkg/metrics"
	"github.com/unifiedui/chat-gateway/internal/services/handlers"
)

// Fixed replies.
const (
	DenialText  = "❌ This command can only be used by the bot owner."
	FailureText = "An error occurred while processing the command."
)

// DefaultHandlerTimeout bounds a handler run when none is configured.
const DefaultHandlerTimeout = time.Minute

// Target is the session a command arrived on.
type Target interface {
	handlers.Sender
	ID() string
	Identity() string
	// Alive reports whether outbound sends can still be attempted.
	Alive() bool
}

// Lookup finds handlers by name.
type Lookup interface {
	Get(name string) (*handlers.Descriptor, bool)
}

// Config holds the dependencies for the dispatcher.
type Config struct {
	Registry       Lookup
	HandlerTimeout time.Duration
}

// Dispatcher invokes handlers for classified commands.
type Dispatcher struct {
	registry Lookup
	timeout  time.Duration
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(cfg *Config) (*Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("handler registry is required")
	}
	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Dispatcher{registry: cfg.Registry, timeout: timeout}, nil
}

// Dispatch runs the handler for cmd. It never returns an error and never
// panics; failures are logged and answered with a generic notice.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, msg models.InboundMessage, cmd models.Classification) {
	desc, ok := d.registry.Get(cmd.Name)
	if !ok {
		log.Debug().
			Str("command", cmd.Name).
			Str("session_id", target.ID()).
			Msg("unknown command")
		metrics.Commands.WithLabelValues("_unknown", metrics.OutcomeUnknown).Inc()
		return
	}

	logger := log.With().
		Str("command", desc.Name).
		Str("session_id", target.ID()).
		Str("identity", target.Identity()).
		Str("sender", msg.SenderID).
		Logger()

	if desc.OwnerOnly && !msg.FromPrivilegedUser {
		logger.Info().Msg("privileged command denied")
		metrics.Commands.WithLabelValues(desc.Name, metrics.OutcomeDenied).Inc()
		d.notify(ctx, target, msg.SenderID, DenialText)
		return
	}

	inv := &handlers.Invocation{
		SessionID: target.ID(),
		Identity:  target.Identity(),
		Command:   desc.Name,
		Args:      cmd.Args,
		Message:   msg,
		Sender:    target,
	}

	start := time.Now()
	if err := d.execute(ctx, desc, inv); err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("command failed")
		metrics.Commands.WithLabelValues(desc.Name, metrics.OutcomeFailed).Inc()
		d.notify(ctx, target, msg.SenderID, FailureText)
		return
	}

	logger.Debug().Dur("duration", time.Since(start)).Msg("command handled")
	metrics.Commands.WithLabelValues(desc.Name, metrics.OutcomeOK).Inc()
}

// execute runs the handler under the handler timeout. A handler that
// ignores its context keeps running after the timeout but its result is
// discarded.
func (d *Dispatcher) execute(ctx context.Context, desc *handlers.Descriptor, inv *handlers.Invocation) error {
	hctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("command", desc.Name).
					Str("stack", string(debug.Stack())).
					Msgf("handler panic: %v", r)
				errCh <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		errCh <- desc.Execute(hctx, inv)
	}()

	select {
	case err := <-errCh:
		return err
	case <-hctx.Done():
		return fmt.Errorf("handler %s: %w", desc.Name, hctx.Err())
	}
}

// notify sends a fixed reply when the session can still send. Send errors
// are logged only.
func (d *Dispatcher) notify(ctx context.Context, target Target, to, text string) {
	if !target.Alive() {
		return
	}
	if err := target.Send(context.WithoutCancel(ctx), to, models.OutboundMessage{Text: text}); err != nil {
		log.Warn().Err(err).Str("session_id", target.ID()).Msg("failed to send command notice")
	}
}
