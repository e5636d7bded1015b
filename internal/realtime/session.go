// Package realtime owns the websocket side of the client: one live
// connection, reconnection after unexpected closes, inbound frame dispatch
// into the state store, and the outbound chat/call commands.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatlink/internal/notify"
	"chatlink/internal/rest"
	"chatlink/internal/store"
	"chatlink/internal/tokenstore"
)

// ErrNoAccessToken is returned when Connect is called without a stored
// access token. Connecting unauthenticated is a caller error; the guard is
// expected to prevent it.
var ErrNoAccessToken = errors.New("realtime: no access token")

// ErrNotConnected is returned by outbound commands when no connection is
// live.
var ErrNotConnected = errors.New("realtime: not connected")

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateRetrying
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	default:
		return "disconnected"
	}
}

// CallLauncher opens the call surface when a join-call frame arrives, the
// headless stand-in for the browser's window.open.
type CallLauncher interface {
	OpenCall(url string)
}

// LogLauncher records the call URL in the log.
type LogLauncher struct {
	Logger *zap.Logger
}

func (l *LogLauncher) OpenCall(url string) {
	l.Logger.Info("call ready", zap.String("url", url))
}

// ReconnectPolicy is bounded exponential backoff with jitter. The first
// retry fires after BaseDelay, then the delay doubles (Factor 2) up to
// MaxDelay; Jitter adds up to that fraction of the delay on top.
type ReconnectPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		Factor:    2,
		Jitter:    0.2,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if p.Jitter > 0 {
		d += rand.Float64() * p.Jitter * d
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Config locates the websocket endpoint. Secure selects wss and mirrors the
// REST base URL's scheme.
type Config struct {
	Host   string
	Port   string
	Secure bool
}

type Session struct {
	cfg      Config
	client   *rest.Client
	tokens   *tokenstore.Store
	state    *store.Store
	notifier notify.Notifier
	launcher CallLauncher
	logger   *zap.Logger
	policy   ReconnectPolicy
	dialer   *websocket.Dialer

	mu           sync.Mutex
	conn         *websocket.Conn
	generation   int
	connState    ConnState
	closing      bool
	dialing      bool
	retryPending bool
	retries      int

	sendMu sync.Mutex
}

func NewSession(cfg Config, client *rest.Client, tokens *tokenstore.Store, state *store.Store, notifier notify.Notifier, launcher CallLauncher, logger *zap.Logger) *Session {
	return &Session{
		cfg:      cfg,
		client:   client,
		tokens:   tokens,
		state:    state,
		notifier: notifier,
		launcher: launcher,
		logger:   logger,
		policy:   DefaultReconnectPolicy(),
		dialer:   websocket.DefaultDialer,
	}
}

// SetReconnectPolicy replaces the backoff policy. Tests shrink the delays.
func (s *Session) SetReconnectPolicy(p ReconnectPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

func (s *Session) wsURL(token string) string {
	scheme := "ws"
	if s.cfg.Secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(s.cfg.Host, s.cfg.Port),
		RawQuery: "token=" + url.QueryEscape(token),
	}
	return u.String()
}

// Connect dials the websocket endpoint with the stored access token as the
// connection credential. A dial failure schedules a retry before returning,
// matching the close-path behavior; connecting while already connected is a
// no-op.
func (s *Session) Connect(ctx context.Context) error {
	access := s.tokens.AccessToken()
	if access == "" {
		return ErrNoAccessToken
	}

	s.mu.Lock()
	if s.conn != nil || s.dialing {
		s.mu.Unlock()
		return nil
	}
	s.dialing = true
	s.closing = false
	s.connState = StateConnecting
	s.mu.Unlock()

	conn, resp, err := s.dialer.DialContext(ctx, s.wsURL(access), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	s.dialing = false
	if err != nil {
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		s.logger.Warn("websocket dial failed", zap.Error(err))
		return fmt.Errorf("realtime: dial: %w", err)
	}
	if s.closing {
		// Disconnect was called while the dial was in flight.
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.generation++
	gen := s.generation
	s.conn = conn
	s.retries = 0
	s.connState = StateConnected
	s.mu.Unlock()

	s.logger.Info("connected to chat server")
	go s.readLoop(conn, gen)
	return nil
}

// Disconnect closes the connection intentionally. The close path sees the
// flag and does not schedule a reconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.closing = true
	conn := s.conn
	s.conn = nil
	s.generation++
	s.connState = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
		s.logger.Info("websocket closed")
	}
}

// readLoop processes frames in arrival order until the connection dies, then
// runs the close handling for its connection generation.
func (s *Session) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("websocket read ended", zap.Error(err))
			break
		}
		s.handleFrame(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// A newer connection superseded this one; nothing to do.
		return
	}
	if s.conn == conn {
		s.conn = nil
	}
	if s.closing {
		s.connState = StateDisconnected
		return
	}
	s.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms at most one retry timer. A second close while
// a retry is pending must not stack another timer on top.
func (s *Session) scheduleReconnectLocked() {
	if s.closing || s.retryPending {
		return
	}
	s.retryPending = true
	s.connState = StateRetrying
	delay := s.policy.Delay(s.retries)
	s.retries++

	s.logger.Info("disconnected, reconnecting",
		zap.Duration("delay", delay),
		zap.Int("attempt", s.retries),
	)
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.retryPending = false
		closing := s.closing
		s.mu.Unlock()
		if closing {
			return
		}
		// Connect schedules the next retry itself when the dial fails.
		_ = s.Connect(context.Background())
	})
}

// currentConn returns the live connection handle, if any.
func (s *Session) currentConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
