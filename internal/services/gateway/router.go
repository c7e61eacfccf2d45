// Package gateway routes inbound envelopes from sessions to the command
// dispatcher or the auto-reply orchestrator.
package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/pkg/metrics"
	"github.com/unifiedui/chat-gateway/internal/services/autoreply"
	"github.com/unifiedui/chat-gateway/internal/services/dispatch"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
)

// Classifier decides how an envelope is handled.
type Classifier interface {
	Classify(ctx context.Context, env *models.Envelope) (models.Classification, models.InboundMessage)
}

// CommandDispatcher runs command handlers.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, target dispatch.Target, msg models.InboundMessage, cmd models.Classification)
}

// Responder answers plain-text messages.
type Responder interface {
	MaybeRespond(ctx context.Context, target autoreply.Target, msg models.InboundMessage) bool
}

// Queue serializes jobs per key without blocking the caller.
type Queue interface {
	Enqueue(ctx context.Context, key string, job dispatch.Job) error
}

// Config holds the router dependencies.
type Config struct {
	Classifier Classifier
	Dispatcher CommandDispatcher
	Queue      Queue
	// Responder is optional; without it plain text is ignored.
	Responder Responder
}

// Router implements sessions.Router.
type Router struct {
	classifier Classifier
	dispatcher CommandDispatcher
	queue      Queue
	responder  Responder
}

var _ sessions.Router = (*Router)(nil)

// NewRouter creates a new router.
func NewRouter(cfg *Config) (*Router, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("dispatch queue is required")
	}
	return &Router{
		classifier: cfg.Classifier,
		dispatcher: cfg.Dispatcher,
		queue:      cfg.Queue,
		responder:  cfg.Responder,
	}, nil
}

// Route counts and logs the envelope, then hands it to Handle.
func (r *Router) Route(ctx context.Context, s *sessions.Session, env models.Envelope) {
	s.IncrementMessages()
	metrics.InboundMessages.Inc()
	if !env.FromSelf {
		s.Record(models.LogTypeIncoming, fmt.Sprintf("from %s: %s", env.SenderID, env.Text()))
	}
	r.Handle(ctx, s, env)
}

// Handle classifies env and queues the resulting work under the session and
// sender so that one sender's messages run in arrival order. It never waits
// for a handler, so the session's event loop keeps draining.
func (r *Router) Handle(ctx context.Context, target dispatch.Target, env models.Envelope) {
	cls, msg := r.classifier.Classify(ctx, &env)

	var job dispatch.Job
	switch cls.Kind {
	case models.ClassCommand:
		job = func() { r.dispatcher.Dispatch(ctx, target, msg, cls) }
	case models.ClassPlainText:
		if r.responder == nil {
			return
		}
		job = func() { r.responder.MaybeRespond(ctx, target, msg) }
	default:
		return
	}

	if err := r.queue.Enqueue(ctx, target.ID()+"/"+msg.SenderID, job); err != nil {
		log.Warn().Err(err).
			Str("session_id", target.ID()).
			Str("sender", msg.SenderID).
			Msg("dropping message, dispatch queue unavailable")
	}
}
