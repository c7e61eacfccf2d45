package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/core/transport"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/pkg/metrics"
)

// ErrNotConnected is returned by Send when the session has no live link.
var ErrNotConnected = errors.New("session is not connected")

// Session is one bot identity's connection plus its bookkeeping.
type Session struct {
	id          string
	identity    string
	displayName string
	authMode    models.AuthMode
	startedAt   time.Time
	sendTimeout time.Duration

	messageCount atomic.Int64
	sink         *LogSink
	logger       zerolog.Logger
	onStatus     func(*Session)

	mu              sync.Mutex
	status          models.SessionStatus
	conn            transport.Connection
	stopped         bool
	notified        bool
	released        bool
	attempts        int
	pairingCode     string
	pairingErr      error
	pairingReady    chan struct{}
	pairingResolved bool
}

type sessionParams struct {
	id          string
	identity    string
	displayName string
	authMode    models.AuthMode
	startedAt   time.Time
	sendTimeout time.Duration
	onLog       func(*Session, models.LogEntry)
	onStatus    func(*Session)
}

func newSession(p sessionParams) *Session {
	s := &Session{
		id:           p.id,
		identity:     p.identity,
		displayName:  p.displayName,
		authMode:     p.authMode,
		startedAt:    p.startedAt,
		sendTimeout:  p.sendTimeout,
		status:       models.SessionStatusConnecting,
		onStatus:     p.onStatus,
		pairingReady: make(chan struct{}),
	}
	if s.displayName == "" {
		s.displayName = s.identity
	}
	s.sink = NewLogSink(LogCapacity, func(e models.LogEntry) {
		if p.onLog != nil {
			p.onLog(s, e)
		}
	})
	s.logger = log.With().
		Str("session_id", s.id).
		Str("identity", s.identity).
		Logger().
		Hook(s.sink.Hook())
	metrics.Sessions.WithLabelValues(string(s.status)).Inc()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Identity returns the bot account id.
func (s *Session) Identity() string { return s.identity }

// DisplayName returns the operator-chosen name.
func (s *Session) DisplayName() string { return s.displayName }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// AuthMode returns how the session authenticated.
func (s *Session) AuthMode() models.AuthMode { return s.authMode }

// Logger returns the session logger. Info-level and above entries are
// mirrored into the session log.
func (s *Session) Logger() *zerolog.Logger { return &s.logger }

// Logs returns the buffered log entries, oldest first.
func (s *Session) Logs() []models.LogEntry { return s.sink.Entries() }

// Record appends an incoming or outgoing entry to the session log.
func (s *Session) Record(t models.LogType, msg string) {
	s.sink.Append(models.LogEntry{Level: zerolog.InfoLevel.String(), Message: msg, Type: t})
}

// Status returns the current status.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MessageCount returns the number of inbound messages observed.
func (s *Session) MessageCount() int64 { return s.messageCount.Load() }

// IncrementMessages counts one inbound message and announces the new count.
func (s *Session) IncrementMessages() int64 {
	n := s.messageCount.Add(1)
	if s.onStatus != nil {
		s.onStatus(s)
	}
	return n
}

// Summary returns the externally visible projection.
func (s *Session) Summary() models.SessionSummary {
	return models.SessionSummary{
		ID:           s.id,
		Identity:     s.identity,
		DisplayName:  s.displayName,
		Status:       s.Status(),
		StartedAt:    s.startedAt,
		MessageCount: s.MessageCount(),
		AuthMode:     s.authMode,
	}
}

// Alive reports whether the session can still send.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.conn != nil && s.status == models.SessionStatusConnected
}

// Send delivers msg through the session's connection.
func (s *Session) Send(ctx context.Context, to string, msg models.OutboundMessage) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}
	if err := conn.Send(ctx, to, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	s.Record(models.LogTypeOutgoing, fmt.Sprintf("to %s: %s", to, outboundSummary(msg)))
	return nil
}

func outboundSummary(msg models.OutboundMessage) string {
	switch {
	case msg.Text != "":
		return truncate(msg.Text, 120)
	case msg.ImageURL != "":
		return "[image] " + truncate(msg.Caption, 100)
	default:
		return "[empty]"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// PairingCode returns the formatted pairing code, if one was issued.
func (s *Session) PairingCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairingCode
}

// AwaitPairingCode waits until the pairing attempt finishes or ctx is done.
func (s *Session) AwaitPairingCode(ctx context.Context) (string, error) {
	select {
	case <-s.pairingReady:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pairingCode, s.pairingErr
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) resolvePairing(code string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairingCode, s.pairingErr = code, err
	if !s.pairingResolved {
		s.pairingResolved = true
		close(s.pairingReady)
	}
}

func (s *Session) setStatus(status models.SessionStatus) bool {
	s.mu.Lock()
	prev := s.status
	s.status = status
	s.mu.Unlock()
	if prev == status {
		return false
	}
	metrics.Sessions.WithLabelValues(string(prev)).Dec()
	metrics.Sessions.WithLabelValues(string(status)).Inc()
	if s.onStatus != nil {
		s.onStatus(s)
	}
	return true
}

// attach installs conn as the live connection. It fails when the session
// was stopped meanwhile.
func (s *Session) attach(conn transport.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conn = conn
	return true
}

// detach clears conn if it is still the live connection.
func (s *Session) detach(conn transport.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return false
	}
	s.conn = nil
	return true
}

func (s *Session) current(conn transport.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn && !s.stopped
}

// stop marks the session stopped and returns the live connection for the
// caller to tear down.
func (s *Session) stop() (transport.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, false
	}
	s.stopped = true
	conn := s.conn
	s.conn = nil
	return conn, true
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// markNotified reports whether the connected notice still has to be sent.
func (s *Session) markNotified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified {
		return false
	}
	s.notified = true
	return true
}

// release drops the session from the status gauge. Only the first call counts.
func (s *Session) release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	status := s.status
	s.mu.Unlock()
	metrics.Sessions.WithLabelValues(string(status)).Dec()
}
