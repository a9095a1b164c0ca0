// Package session owns the single bidirectional channel to the execution
// backend, scoped to the current (principal, project) pair. It translates
// channel events into transcript entries and status changes, recovers
// unintentional channel loss with a single delayed reconnect, and re-routes
// the channel when the active project changes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/codecanvas/pkg/clock"
	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
	"github.com/odvcencio/codecanvas/pkg/identity"
	"github.com/odvcencio/codecanvas/pkg/logging"
	"github.com/odvcencio/codecanvas/pkg/metrics"
	"github.com/odvcencio/codecanvas/pkg/transcript"
)

// Status is the session's connection state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
)

const (
	// DefaultRetryDelay is the fixed wait before the single reconnect
	// attempt after an unintentional channel loss.
	DefaultRetryDelay = 3000 * time.Millisecond
	// DefaultFailureGrace is the window after entering Connecting during
	// which failure events are kept out of the transcript. Provisioning
	// the remote execution environment can take several seconds.
	DefaultFailureGrace = 10 * time.Second
	// DefaultFallbackScope is used when no project is active and none is
	// given explicitly.
	DefaultFallbackScope = "default"
)

// terminationSentinel is the payload a forced termination sends. The
// backend treats an empty line as an interrupt.
const terminationSentinel = ""

// AuthProvider supplies the authenticated principal and its credential.
type AuthProvider interface {
	CurrentPrincipal() *identity.Principal
	Credential() string
}

// ScopeProvider supplies the active project's id, or empty.
type ScopeProvider interface {
	ActiveProjectID() string
}

// Config wires a Manager's collaborators.
type Config struct {
	BaseURL    string
	Transport  Transport
	Auth       AuthProvider
	Scope      ScopeProvider
	Transcript *transcript.Log
	Logger     *logging.Logger
	Clock      clock.Clock

	RetryDelay    time.Duration
	FailureGrace  time.Duration
	FallbackScope string
}

// Manager is the session state machine. All fields behind mu; channel
// events from superseded connections are discarded by generation tag.
type Manager struct {
	mu          sync.Mutex
	status      Status
	scope       string
	conn        Conn
	generation  int
	intentional bool
	retryTimer  clock.Timer
	graceUntil  time.Time

	baseURL       string
	transport     Transport
	auth          AuthProvider
	scopeSource   ScopeProvider
	log           *transcript.Log
	logger        *logging.Logger
	clk           clock.Clock
	retryDelay    time.Duration
	failureGrace  time.Duration
	fallbackScope string
}

// New constructs a session manager. Zero-valued tuning fields take the
// package defaults.
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}
	if cfg.Transcript == nil {
		cfg.Transcript = transcript.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.FailureGrace == 0 {
		cfg.FailureGrace = DefaultFailureGrace
	}
	if cfg.FallbackScope == "" {
		cfg.FallbackScope = DefaultFallbackScope
	}
	return &Manager{
		status:        StatusIdle,
		baseURL:       cfg.BaseURL,
		transport:     cfg.Transport,
		auth:          cfg.Auth,
		scopeSource:   cfg.Scope,
		log:           cfg.Transcript,
		logger:        cfg.Logger,
		clk:           cfg.Clock,
		retryDelay:    cfg.RetryDelay,
		failureGrace:  cfg.FailureGrace,
		fallbackScope: cfg.FallbackScope,
	}
}

// Initialize resolves the effective project scope and connects. Without an
// authenticated principal it appends a single error entry and attempts no
// channel.
func (m *Manager) Initialize(ctx context.Context, projectID string) error {
	if m.auth.CurrentPrincipal() == nil {
		m.log.Error("Not signed in. Log in to use the terminal.")
		m.logger.Error(logging.CategorySession, "init_unauthorized",
			"terminal initialized without a principal", nil)
		return canvaserrors.New(canvaserrors.ErrCodeUnauthorized, "no authenticated principal")
	}

	scope := projectID
	if scope == "" {
		scope = m.scopeSource.ActiveProjectID()
	}
	if scope == "" {
		scope = m.fallbackScope
	}

	m.mu.Lock()
	m.scope = scope
	m.mu.Unlock()

	return m.Connect(ctx)
}

// Connect opens a channel against the current scope, closing any existing
// one first. Dial failure is not returned: it feeds the same recovery path
// as a lost channel.
func (m *Manager) Connect(ctx context.Context) error {
	principal := m.auth.CurrentPrincipal()
	if principal == nil {
		m.log.Error("Not signed in. Log in to use the terminal.")
		return canvaserrors.New(canvaserrors.ErrCodeUnauthorized, "no authenticated principal")
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	old := m.conn
	m.conn = nil
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.intentional = false
	m.status = StatusConnecting
	m.graceUntil = m.clk.Now().Add(m.failureGrace)
	scope := m.scope
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	address, err := BuildAddress(m.baseURL, principal.ID, scope, m.auth.Credential())
	if err != nil {
		m.mu.Lock()
		m.status = StatusIdle
		m.mu.Unlock()
		return err
	}

	m.log.Output("Connecting to project " + scope + "...")
	metrics.SessionConnects.Inc()
	m.logger.Info(logging.CategoryNetwork, "channel_dial", "opening channel", map[string]any{
		"scope": scope,
	})

	conn, err := m.transport.Open(ctx, address)
	if err != nil {
		m.handleEvent(gen, Event{Type: EventFailed, Err: err})
		return nil
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.mu.Unlock()

	go m.pump(gen, conn)
	return nil
}

// Disconnect closes the channel intentionally. No retry is scheduled and
// any pending one is cancelled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentional = true
	m.generation++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	conn := m.conn
	m.conn = nil
	m.status = StatusClosed
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// SetProjectScope re-routes the channel to a different project. When the
// session is open this is a close-then-open sequence; nothing submitted
// before the switch reaches the new channel.
func (m *Manager) SetProjectScope(ctx context.Context, projectID string) error {
	m.mu.Lock()
	m.scope = projectID
	open := m.status == StatusOpen
	m.mu.Unlock()

	if !open {
		return nil
	}
	m.Disconnect()
	return m.Connect(ctx)
}

// Submit records a non-empty command in the transcript and forwards it
// when the session is open. Commands are never buffered: submitting while
// not open records an error entry and drops the command.
func (m *Manager) Submit(command string) error {
	if command == "" {
		return nil
	}

	m.log.Command(command)

	m.mu.Lock()
	conn := m.conn
	open := m.status == StatusOpen
	m.mu.Unlock()

	if !open || conn == nil {
		m.log.Error("Terminal is not connected.")
		return canvaserrors.New(canvaserrors.ErrCodeChannelUnavailable, "channel is not open")
	}

	if err := conn.Send(command); err != nil {
		m.logger.Error(logging.CategoryNetwork, "send_failed", err.Error(), nil)
		return err
	}
	metrics.CommandsSubmitted.Inc()
	return nil
}

// ForceTerminate sends the termination sentinel without recording a
// command entry. The surrounding caller appends its own user-facing entry
// describing why.
func (m *Manager) ForceTerminate() error {
	m.mu.Lock()
	conn := m.conn
	open := m.status == StatusOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return nil
	}
	return conn.Send(terminationSentinel)
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Scope returns the project id the channel targets.
func (m *Manager) Scope() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scope
}

// Close is Disconnect under the usual shutdown name.
func (m *Manager) Close() {
	m.Disconnect()
}

func (m *Manager) pump(gen int, conn Conn) {
	for ev := range conn.Events() {
		m.handleEvent(gen, ev)
	}
}

// handleEvent is the single transition function. Events tagged with a
// stale generation belong to a superseded channel and are dropped.
func (m *Manager) handleEvent(gen int, ev Event) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}

	switch ev.Type {
	case EventReady:
		if m.status != StatusConnecting {
			m.mu.Unlock()
			return
		}
		m.status = StatusOpen
		scope := m.scope
		m.mu.Unlock()

		m.log.Output("Connected to project " + scope + ".")
		m.logger.Info(logging.CategoryNetwork, "channel_open", "channel ready", map[string]any{
			"scope": scope,
		})

	case EventData:
		// Inbound data is proof of liveness even if the ready signal
		// was missed.
		if m.status == StatusConnecting {
			m.status = StatusOpen
		}
		m.mu.Unlock()

		m.log.Output(ev.Payload)

	case EventClosed:
		m.status = StatusClosed
		m.conn = nil
		intentional := m.intentional
		if !intentional {
			m.scheduleRetryLocked()
		}
		m.mu.Unlock()

		if intentional {
			return
		}
		metrics.SessionFailures.WithLabelValues("closed").Inc()
		m.log.Error("Terminal connection closed. Reconnecting...")
		m.logger.Warn(logging.CategoryNetwork, "channel_closed", "channel closed unexpectedly", nil)

	case EventFailed:
		withinGrace := m.status == StatusConnecting && m.clk.Now().Before(m.graceUntil)
		m.status = StatusClosed
		m.conn = nil
		intentional := m.intentional
		if !intentional {
			m.scheduleRetryLocked()
		}
		m.mu.Unlock()

		if intentional {
			return
		}
		metrics.SessionFailures.WithLabelValues("failed").Inc()
		detail := ""
		if ev.Err != nil {
			detail = ev.Err.Error()
		}
		m.logger.Warn(logging.CategoryNetwork, "channel_failed", detail, nil)
		if !withinGrace {
			m.log.Error("Terminal connection error. Reconnecting...")
		}

	default:
		m.mu.Unlock()
	}
}

// scheduleRetryLocked arms the single reconnect timer. A second
// unintentional closure while one is pending does not arm another.
func (m *Manager) scheduleRetryLocked() {
	if m.retryTimer != nil {
		return
	}
	m.retryTimer = m.clk.AfterFunc(m.retryDelay, m.retryFire)
}

func (m *Manager) retryFire() {
	m.mu.Lock()
	m.retryTimer = nil
	if m.status == StatusOpen || m.intentional {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	metrics.SessionReconnects.Inc()
	m.Connect(context.Background())
}
