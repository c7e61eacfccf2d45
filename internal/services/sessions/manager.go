// Package sessions owns bot sessions: their connections, lifecycle and
// reconnection.
package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/unifiedui/chat-gateway/internal/core/cache"
	"github.com/unifiedui/chat-gateway/internal/core/transport"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/pkg/metrics"
	"github.com/unifiedui/chat-gateway/internal/services/credentials"
	"github.com/unifiedui/chat-gateway/internal/services/events"
)

// ConnectedNotice is sent to the bot account once per session when the
// link first opens.
const ConnectedNotice = "✅ *Bot Connected Successfully*\n\n🤖 The bot has been successfully connected.\n\n📲 You can now use bot commands in any chat.\n\nTry sending *.arise* to test the bot."

// Defaults applied to zero Config durations.
const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultMaxReconnectDelay = time.Minute
	DefaultPairingDelay      = 3 * time.Second
	DefaultPairingCodeTTL    = 2 * time.Minute
	DefaultSendTimeout       = 15 * time.Second
	DefaultRestoreParallel   = 4
)

// Router receives inbound envelopes in transport order.
type Router interface {
	Route(ctx context.Context, s *Session, env models.Envelope)
}

// StartRequest describes a session to start.
type StartRequest struct {
	Identity    string
	SessionID   string
	DisplayName string
	AuthMode    models.AuthMode
}

// Config holds the dependencies for the session manager.
type Config struct {
	Dialer      transport.Dialer
	Credentials credentials.Store
	Router      Router
	Registry    *Registry
	// Cache and Bus are optional.
	Cache cache.Cache
	Bus   *events.Bus

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PairingDelay      time.Duration
	PairingCodeTTL    time.Duration
	SendTimeout       time.Duration
	RestoreParallel   int

	// NewID generates session ids; defaults to uuid.NewString.
	NewID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager starts, supervises and stops sessions.
type Manager struct {
	dialer   transport.Dialer
	creds    credentials.Store
	router   Router
	registry *Registry
	cache    cache.Cache
	bus      *events.Bus

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	pairingDelay      time.Duration
	pairingCodeTTL    time.Duration
	sendTimeout       time.Duration
	restoreParallel   int
	newID             func() string
	now               func() time.Time

	// mu guards restarts. It is taken before any Session lock.
	mu       sync.Mutex
	restarts map[string]*pendingRestart

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pendingRestart is a session waiting to be redialed. The session is out of
// the registry until the redial succeeds.
type pendingRestart struct {
	s     *Session
	timer *time.Timer
}

// NewManager creates a session manager.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("transport dialer is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("message router is required")
	}

	m := &Manager{
		dialer:            cfg.Dialer,
		creds:             cfg.Credentials,
		router:            cfg.Router,
		registry:          cfg.Registry,
		cache:             cfg.Cache,
		bus:               cfg.Bus,
		reconnectDelay:    orDefault(cfg.ReconnectDelay, DefaultReconnectDelay),
		maxReconnectDelay: orDefault(cfg.MaxReconnectDelay, DefaultMaxReconnectDelay),
		pairingDelay:      cfg.PairingDelay,
		pairingCodeTTL:    orDefault(cfg.PairingCodeTTL, DefaultPairingCodeTTL),
		sendTimeout:       orDefault(cfg.SendTimeout, DefaultSendTimeout),
		restoreParallel:   cfg.RestoreParallel,
		newID:             cfg.NewID,
		now:               cfg.Now,
		restarts:          make(map[string]*pendingRestart),
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.maxReconnectDelay < m.reconnectDelay {
		m.maxReconnectDelay = m.reconnectDelay
	}
	if m.pairingDelay < 0 {
		m.pairingDelay = DefaultPairingDelay
	}
	if m.restoreParallel <= 0 {
		m.restoreParallel = DefaultRestoreParallel
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Registry returns the session registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Get returns a registered session.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrSessionNotFound, id)
	}
	return s, nil
}

// Start dials a new session and begins supervising it.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if err := m.ctx.Err(); err != nil {
		return nil, fmt.Errorf("session manager is shut down")
	}
	if strings.TrimSpace(req.Identity) == "" {
		return nil, fmt.Errorf("%w: identity is required", domainerrors.ErrInvalidIdentity)
	}
	if req.SessionID == "" {
		req.SessionID = m.newID()
	}
	if req.AuthMode == "" {
		req.AuthMode = models.AuthModePairingCode
	}

	var bundle []byte
	if req.AuthMode == models.AuthModeRestoredCredentials {
		var err error
		bundle, err = m.creds.Load(req.Identity)
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
		if bundle == nil {
			return nil, fmt.Errorf("%w: no stored credentials for %s", domainerrors.ErrInvalidCredentials, req.Identity)
		}
	}

	s := newSession(sessionParams{
		id:          req.SessionID,
		identity:    req.Identity,
		displayName: req.DisplayName,
		authMode:    req.AuthMode,
		startedAt:   m.now().UTC(),
		sendTimeout: m.sendTimeout,
		onLog:       m.publishLog,
		onStatus:    m.publishStatus,
	})
	if !m.claim(s) {
		s.release()
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrSessionExists, s.id)
	}
	m.publishStatus(s)
	s.logger.Info().Msgf("Starting session for %s (%s)", s.identity, s.displayName)

	conn, err := m.dialer.Dial(ctx, transport.DialOptions{Identity: s.identity, Credentials: bundle})
	if err != nil {
		logFault(s.Logger(), err, "Failed to connect session")
		s.setStatus(models.SessionStatusErrored)
		s.resolvePairing("", err)
		if m.registry.removeIf(s) {
			m.publishStopped(s, "connect_failed")
		}
		s.release()
		return nil, fmt.Errorf("failed to connect session: %w", err)
	}

	if !s.attach(conn) {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrSessionNotFound, s.id)
	}
	m.supervise(s, conn)

	if req.AuthMode == models.AuthModePairingCode {
		m.wg.Add(1)
		go m.requestPairing(s, conn)
	} else {
		s.resolvePairing("", nil)
	}
	return s, nil
}

// claim registers s unless its id is already live or awaiting a redial.
func (m *Manager) claim(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.restarts[s.id]; ok {
		return false
	}
	return m.registry.addIfAbsent(s)
}

// AwaitPairingCode waits for a session's pairing code.
func (m *Manager) AwaitPairingCode(ctx context.Context, id string) (string, error) {
	s, err := m.Get(id)
	if err != nil {
		return "", err
	}
	return s.AwaitPairingCode(ctx)
}

// Stop logs a session out, closes it and unregisters it. A session waiting
// to reconnect has its redial cancelled.
func (m *Manager) Stop(ctx context.Context, id string) error {
	s, ok := m.registry.Get(id)
	if !ok {
		if s, ok = m.cancelRestart(id); !ok {
			return fmt.Errorf("%w: %s", domainerrors.ErrSessionNotFound, id)
		}
	}
	conn, first := s.stop()
	if !first {
		return fmt.Errorf("%w: %s", domainerrors.ErrSessionNotFound, id)
	}
	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			logFault(s.Logger(), err, "Logout failed")
		}
		_ = conn.Close()
	}
	s.setStatus(models.SessionStatusDisconnected)
	s.logger.Info().Msg("Session stopped")
	m.registry.removeIf(s)
	s.release()
	m.forgetPairingCode(ctx, s)
	m.publishStopped(s, "stopped")
	return nil
}

func (m *Manager) forgetPairingCode(ctx context.Context, s *Session) {
	if m.cache == nil {
		return
	}
	if _, err := m.cache.Delete(ctx, models.PairingCodeKey(s.id)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete cached pairing code")
	}
}

// Restart closes a session's current connection and reconnects after the
// base delay. The session keeps its id. Restarting a session that is
// already waiting to reconnect is a no-op.
func (m *Manager) Restart(id string) error {
	s, err := m.Get(id)
	if err != nil {
		if m.restarting(id) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.attempts = 0
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	s.setStatus(models.SessionStatusDisconnected)
	s.logger.Info().Msg("Restart requested")
	m.park(s, m.reconnectDelay)
	return nil
}

// RestoreAll migrates legacy credentials and starts a session for every
// identity with stored credentials.
func (m *Manager) RestoreAll(ctx context.Context) (int, error) {
	if _, err := m.creds.MigrateLegacy(); err != nil {
		log.Warn().Err(err).Msg("failed to migrate legacy credentials")
	}
	if m.cache != nil {
		// Session ids do not survive a restart, so older codes are unreachable.
		if n, err := m.cache.DeletePattern(ctx, models.PairingCodePattern); err != nil {
			log.Warn().Err(err).Msg("failed to clear stale pairing codes")
		} else if n > 0 {
			log.Debug().Int64("deleted", n).Msg("cleared stale pairing codes")
		}
	}
	identities, err := m.creds.Identities()
	if err != nil {
		return 0, fmt.Errorf("failed to list stored identities: %w", err)
	}

	var (
		mu       sync.Mutex
		restored int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.restoreParallel)
	for _, identity := range identities {
		g.Go(func() error {
			_, err := m.Start(gctx, StartRequest{
				Identity: identity,
				AuthMode: models.AuthModeRestoredCredentials,
			})
			if err != nil {
				log.Error().Err(err).Str("identity", identity).Msg("failed to restore session")
				return nil
			}
			mu.Lock()
			restored++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return restored, err
	}
	log.Info().Int("restored", restored).Int("found", len(identities)).Msg("restored sessions from stored credentials")
	return restored, nil
}

// Shutdown closes every session without logging out and waits for the
// event loops to exit. Stored credentials are kept.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	// Pending redials go first so none can slip back into the registry.
	m.mu.Lock()
	for id, p := range m.restarts {
		delete(m.restarts, id)
		if p.timer.Stop() {
			m.wg.Done()
		}
		p.s.stop()
		p.s.release()
	}
	m.mu.Unlock()

	for _, s := range m.registry.Sessions() {
		if conn, ok := s.stop(); ok && conn != nil {
			_ = conn.Close()
		}
		m.registry.removeIf(s)
		s.release()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for sessions to close: %w", ctx.Err())
	}
}

func (m *Manager) supervise(s *Session, conn transport.Connection) {
	m.wg.Add(1)
	go m.loop(s, conn)
}

// loop consumes one connection's events in order.
func (m *Manager) loop(s *Session, conn transport.Connection) {
	defer m.wg.Done()
	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				m.handleClose(s, conn, &transport.CloseReason{Message: "event stream ended"})
				return
			}
			if done := m.handleEvent(s, conn, ev); done {
				return
			}
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) handleEvent(s *Session, conn transport.Connection, ev transport.Event) (done bool) {
	defer guard(s.Logger(), string(ev.Type))

	if !s.current(conn) {
		return true
	}

	switch ev.Type {
	case transport.EventConnectionUpdate:
		if ev.Connection == nil {
			return false
		}
		switch ev.Connection.State {
		case transport.StateOpen:
			m.handleOpen(s)
		case transport.StateConnecting:
			s.logger.Debug().Msg("connecting")
		case transport.StateClose:
			m.handleClose(s, conn, ev.Connection.Reason)
			return true
		}

	case transport.EventCredsUpdate:
		if err := m.creds.Save(s.identity, ev.Credentials); err != nil {
			s.logger.Error().Err(err).Msg("Failed to save credentials")
		}

	case transport.EventMessagesUpsert:
		for _, env := range ev.Messages {
			m.route(s, env)
		}
	}
	return false
}

func (m *Manager) route(s *Session, env models.Envelope) {
	defer guard(s.Logger(), "route")
	m.router.Route(m.ctx, s, env)
}

func (m *Manager) handleOpen(s *Session) {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
	s.setStatus(models.SessionStatusConnected)
	s.logger.Info().Msgf("Connection established for %s", s.identity)

	if !s.markNotified() {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.sendTimeout)
	defer cancel()
	if err := s.Send(ctx, s.identity, models.OutboundMessage{Text: ConnectedNotice}); err != nil {
		logFault(s.Logger(), err, "Failed to send connected notice")
	}
}

func (m *Manager) handleClose(s *Session, conn transport.Connection, reason *transport.CloseReason) {
	if !s.detach(conn) {
		return
	}
	_ = conn.Close()
	s.setStatus(models.SessionStatusDisconnected)

	if reason.IsLoggedOut() {
		s.logger.Error().Msg("Connection closed permanently (logged out)")
		s.stop()
		m.registry.removeIf(s)
		s.release()
		m.forgetPairingCode(m.ctx, s)
		m.publishStopped(s, "logged_out")
		return
	}

	msg := "unknown"
	if reason != nil && reason.Message != "" {
		msg = reason.Message
	}
	s.logger.Warn().Str("reason", msg).Msg("Connection closed, attempting to reconnect...")

	s.mu.Lock()
	delay := m.Backoff(s.attempts)
	s.attempts++
	s.mu.Unlock()
	m.park(s, delay)
}

// Backoff returns the restart delay after attempt consecutive failures:
// the base delay doubled per failure, capped at the max.
func (m *Manager) Backoff(attempt int) time.Duration {
	d := m.reconnectDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= m.maxReconnectDelay {
			return m.maxReconnectDelay
		}
	}
	return d
}

// park unregisters s and schedules exactly one redial after delay.
func (m *Manager) park(s *Session, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.registry.removeIf(s) {
		return
	}
	if !m.armLocked(s, delay) {
		s.release()
	}
}

// armLocked starts the redial timer for s. The WaitGroup slot taken here is
// released by reconnect, or by whoever stops the timer before it fires.
func (m *Manager) armLocked(s *Session, delay time.Duration) bool {
	if _, ok := m.restarts[s.id]; ok {
		return false
	}
	if s.isStopped() || m.ctx.Err() != nil {
		return false
	}
	metrics.Reconnects.Inc()
	p := &pendingRestart{s: s}
	m.wg.Add(1)
	p.timer = time.AfterFunc(delay, func() { m.reconnect(p) })
	m.restarts[s.id] = p
	return true
}

// cancelRestart drops the pending redial for id and returns its session.
func (m *Manager) cancelRestart(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.restarts[id]
	if !ok {
		return nil, false
	}
	delete(m.restarts, id)
	if p.timer.Stop() {
		m.wg.Done()
	}
	return p.s, true
}

func (m *Manager) restarting(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.restarts[id]
	return ok
}

// pending reports whether p is still the live redial for its session. A
// redial whose session was stopped meanwhile is dropped.
func (m *Manager) pending(p *pendingRestart) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restarts[p.s.id] != p {
		return false
	}
	if p.s.isStopped() {
		delete(m.restarts, p.s.id)
		return false
	}
	return true
}

// resume moves a redialed session back into the registry. It fails when the
// redial was cancelled meanwhile.
func (m *Manager) resume(p *pendingRestart) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restarts[p.s.id] != p {
		return false
	}
	delete(m.restarts, p.s.id)
	if p.s.isStopped() {
		return false
	}
	if !m.registry.addIfAbsent(p.s) {
		p.s.logger.Warn().Msg("Session id was reused while reconnecting, dropping session")
		p.s.stop()
		p.s.release()
		return false
	}
	return true
}

// retry re-arms a failed redial unless it was cancelled meanwhile.
func (m *Manager) retry(p *pendingRestart, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restarts[p.s.id] != p {
		return
	}
	delete(m.restarts, p.s.id)
	if !m.armLocked(p.s, delay) {
		p.s.release()
	}
}

func (m *Manager) reconnect(p *pendingRestart) {
	defer m.wg.Done()
	s := p.s
	defer guard(s.Logger(), "reconnect")

	if !m.pending(p) {
		return
	}
	s.setStatus(models.SessionStatusConnecting)
	bundle, err := m.creds.Load(s.identity)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load credentials for reconnect")
	}

	conn, err := m.dialer.Dial(m.ctx, transport.DialOptions{Identity: s.identity, Credentials: bundle})
	if err != nil {
		logFault(s.Logger(), err, "Reconnect failed")
		s.setStatus(models.SessionStatusDisconnected)
		s.mu.Lock()
		delay := m.Backoff(s.attempts)
		s.attempts++
		s.mu.Unlock()
		m.retry(p, delay)
		return
	}
	if !m.resume(p) || !s.attach(conn) {
		_ = conn.Close()
		return
	}
	s.logger.Info().Msg("Reconnected")
	m.supervise(s, conn)

	if bundle == nil && s.authMode == models.AuthModePairingCode {
		m.wg.Add(1)
		go m.requestPairing(s, conn)
	}
}

func (m *Manager) requestPairing(s *Session, conn transport.Connection) {
	defer m.wg.Done()
	defer guard(s.Logger(), "pairing")

	if m.pairingDelay > 0 {
		t := time.NewTimer(m.pairingDelay)
		select {
		case <-t.C:
		case <-m.ctx.Done():
			t.Stop()
			s.resolvePairing("", m.ctx.Err())
			return
		}
	}
	if !s.current(conn) {
		s.resolvePairing("", fmt.Errorf("session closed before pairing"))
		return
	}

	s.logger.Info().Msgf("Requesting pairing code for %s", s.identity)
	ctx, cancel := context.WithTimeout(m.ctx, m.sendTimeout)
	defer cancel()
	raw, err := conn.RequestPairingCode(ctx, s.identity)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error generating pairing code")
		s.resolvePairing("", err)
		m.publish(events.Event{
			Type:      events.TypePairingCode,
			SessionID: s.id,
			Data:      map[string]string{"phoneNumber": s.identity, "error": err.Error()},
		})
		return
	}

	code := FormatPairingCode(raw)
	if m.cache != nil {
		if err := m.cache.Set(ctx, models.PairingCodeKey(s.id), []byte(code), m.pairingCodeTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache pairing code")
		}
	}
	s.resolvePairing(code, nil)
	s.logger.Info().Msgf("Pairing code generated: %s", code)

	m.publish(events.Event{
		Type:      events.TypePairingCode,
		SessionID: s.id,
		Data:      map[string]string{"phoneNumber": s.identity, "code": code},
	})
}

// FormatPairingCode splits a code into dash-joined groups of four.
func FormatPairingCode(code string) string {
	r := []rune(code)
	if len(r) <= 4 {
		return code
	}
	var parts []string
	for len(r) > 0 {
		n := 4
		if len(r) < n {
			n = len(r)
		}
		parts = append(parts, string(r[:n]))
		r = r[n:]
	}
	return strings.Join(parts, "-")
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Manager) publishStatus(s *Session) {
	m.publish(events.Event{Type: events.TypeSessionStatus, SessionID: s.id, Data: s.Summary()})
}

func (m *Manager) publishStopped(s *Session, reason string) {
	m.publish(events.Event{
		Type:      events.TypeSessionStopped,
		SessionID: s.id,
		Data:      map[string]string{"reason": reason},
	})
}

func (m *Manager) publishLog(s *Session, e models.LogEntry) {
	m.publish(events.Event{Type: events.TypeLog, SessionID: s.id, Timestamp: e.Timestamp, Data: e})
}
