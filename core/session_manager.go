package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultLoginMaxAttempts = 100
	defaultLoginInterval    = 2 * time.Second
	defaultSessionDuration  = 115 * time.Minute
)

type SessionManagerConfig struct {
	Credentials      Credentials
	SessionKey       SessionKey
	SessionDuration  time.Duration
	LoginMaxAttempts int
	LoginInterval    time.Duration
}

type SessionManagerDependencies struct {
	Invoker  Invoker
	Resetter ConnectionResetter
	Batch    *BatchModeController
	Store    SessionStore
	Logger   Logger
	Metrics  MetricsRecorder
	Now      func() time.Time
	Sleep    SleepFunc
}

// SessionManager owns the current session. Logins are serialized; readers
// never observe a partially written session.
type SessionManager struct {
	cfg      SessionManagerConfig
	invoker  Invoker
	resetter ConnectionResetter
	batch    *BatchModeController
	store    SessionStore
	now      func() time.Time
	sleep    SleepFunc
	telemetry

	loginMu sync.Mutex
	mu      sync.RWMutex
	session Session
	// rejected is a token the remote refused whose stored copy could not
	// be deleted; restore skips it until the next successful login.
	rejected string
}

func NewSessionManager(cfg SessionManagerConfig, deps SessionManagerDependencies) (*SessionManager, error) {
	if deps.Invoker == nil {
		return nil, fmt.Errorf("core: session manager invoker is required")
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = defaultSessionDuration
	}
	if cfg.LoginMaxAttempts < 1 {
		cfg.LoginMaxAttempts = defaultLoginMaxAttempts
	}
	if cfg.LoginInterval < 0 {
		cfg.LoginInterval = defaultLoginInterval
	}
	if strings.TrimSpace(cfg.SessionKey.Principal) == "" {
		cfg.SessionKey.Principal = cfg.Credentials.Principal
	}
	if strings.TrimSpace(cfg.SessionKey.Endpoint) == "" {
		cfg.SessionKey.Endpoint = cfg.Credentials.EndpointHint
	}

	now := deps.Now
	if now == nil {
		now = systemNow
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = waitWithContext
	}
	batch := deps.Batch
	if batch == nil {
		batch = NewBatchModeController()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &SessionManager{
		cfg:      cfg,
		invoker:  deps.Invoker,
		resetter: deps.Resetter,
		batch:    batch,
		store:    deps.Store,
		now:      now,
		sleep:    sleep,
		telemetry: telemetry{
			logger:  deps.Logger,
			metrics: metrics,
			now:     now,
		},
	}, nil
}

// Session returns the current session and whether one is held.
func (m *SessionManager) Session() (Session, bool) {
	if m == nil {
		return Session{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, !m.session.IsZero()
}

// EnsureValid returns the current session, logging in first when there is
// none or it has expired.
func (m *SessionManager) EnsureValid(ctx context.Context) (Session, error) {
	if m == nil {
		return Session{}, fmt.Errorf("core: session manager is nil")
	}
	if current, ok := m.validSession(); ok {
		return current, nil
	}

	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if current, ok := m.validSession(); ok {
		return current, nil
	}
	if restored, ok := m.restore(ctx); ok {
		return restored, nil
	}
	return m.login(ctx)
}

// Login performs a fresh login regardless of the current session state.
func (m *SessionManager) Login(ctx context.Context) (Session, error) {
	if m == nil {
		return Session{}, fmt.Errorf("core: session manager is nil")
	}
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	return m.login(ctx)
}

// Invalidate drops the current session and forces the transport connection
// to be re-established before the next call.
func (m *SessionManager) Invalidate(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("core: session manager is nil")
	}
	m.mu.Lock()
	dropped := m.session.Token
	m.session = Session{}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(ctx, m.cfg.SessionKey); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logError(ctx, "session store delete failed", map[string]any{
				"session_key": m.cfg.SessionKey.String(),
				"error":       err.Error(),
			})
			if dropped != "" {
				m.mu.Lock()
				m.rejected = dropped
				m.mu.Unlock()
			}
		}
	}
	return m.resetConnection(ctx)
}

// CurrentCallDecoration returns the token and call options for the next call.
func (m *SessionManager) CurrentCallDecoration() CallDecoration {
	if m == nil {
		return CallDecoration{}
	}
	m.mu.RLock()
	token := m.session.Token
	m.mu.RUnlock()
	return CallDecoration{
		SessionToken: token,
		Options:      m.batch.Options(),
	}
}

func (m *SessionManager) resetConnection(ctx context.Context) error {
	if m.resetter == nil {
		return nil
	}
	if err := m.resetter.ResetConnection(); err != nil {
		m.logError(ctx, "connection reset failed", map[string]any{
			"error": err.Error(),
		})
		return transportFailureError("reset_connection", err)
	}
	return nil
}

func (m *SessionManager) validSession() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.IsZero() || m.session.Expired(m.now()) {
		return Session{}, false
	}
	return m.session, true
}

func (m *SessionManager) restore(ctx context.Context) (Session, bool) {
	if m.store == nil {
		return Session{}, false
	}
	stored, err := m.store.Load(ctx, m.cfg.SessionKey)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.logError(ctx, "session store load failed", map[string]any{
				"session_key": m.cfg.SessionKey.String(),
				"error":       err.Error(),
			})
		}
		return Session{}, false
	}
	if stored.Expired(m.now()) {
		return Session{}, false
	}
	m.mu.Lock()
	if m.rejected != "" && stored.Token == m.rejected {
		m.mu.Unlock()
		m.logDebug(ctx, "skipping stored session rejected by the remote", map[string]any{
			"session_key": m.cfg.SessionKey.String(),
		})
		return Session{}, false
	}
	m.session = stored
	m.mu.Unlock()
	m.logInfo(ctx, "session restored", map[string]any{
		"session_key": m.cfg.SessionKey.String(),
		"expires_at":  stored.ExpiresAt,
	})
	return stored, true
}

func (m *SessionManager) login(ctx context.Context) (session Session, err error) {
	startedAt := m.now()
	attempts := 0
	defer func() {
		m.observeOperation(ctx, startedAt, OperationLogin, err, map[string]any{
			"principal": m.cfg.Credentials.Principal,
			"attempts":  attempts,
		})
	}()

	for attempt := 1; attempt <= m.cfg.LoginMaxAttempts; attempt++ {
		attempts = attempt
		resp, invokeErr := m.invoker.Invoke(ctx, Invocation{
			Operation: OperationLogin,
			Args:      m.loginArgs(),
			Attempt:   attempt,
		})
		m.logInfo(ctx, "rpc login exchange", map[string]any{
			"operation": OperationLogin,
			"attempt":   attempt,
			"received":  payloadText(resp.Exchange.Received),
		})
		if invokeErr != nil {
			m.recordCounter(ctx, metricLoginTotal, 1, map[string]string{"status": "failure"})
			if fault, ok := FaultFrom(invokeErr); ok {
				return Session{}, remoteFaultError(OperationLogin, fault)
			}
			return Session{}, exchangeFailureError(ctx, OperationLogin, invokeErr)
		}

		token := ""
		if !resp.Malformed {
			token = SessionTokenFrom(resp.Payload)
		}
		if token != "" {
			session = NewSession(token, m.now(), m.cfg.SessionDuration)
			m.mu.Lock()
			m.session = session
			m.rejected = ""
			m.mu.Unlock()
			m.persist(ctx, session)
			m.recordCounter(ctx, metricLoginTotal, 1, map[string]string{"status": "success"})
			return session, nil
		}

		if attempt < m.cfg.LoginMaxAttempts {
			if waitErr := m.sleep(ctx, m.cfg.LoginInterval); waitErr != nil {
				return Session{}, canceledError(OperationLogin, waitErr)
			}
		}
	}
	m.recordCounter(ctx, metricLoginTotal, 1, map[string]string{"status": "exhausted"})
	return Session{}, authExhaustedError(m.cfg.Credentials.Principal, attempts)
}

func (m *SessionManager) loginArgs() []Arg {
	args := []Arg{
		NamedArg("username", m.cfg.Credentials.Principal),
		NamedArg("password", m.cfg.Credentials.Secret),
	}
	if hint := strings.TrimSpace(m.cfg.Credentials.EndpointHint); hint != "" {
		args = append(args, NamedArg("entityName", hint))
	}
	return args
}

func (m *SessionManager) persist(ctx context.Context, session Session) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, m.cfg.SessionKey, session); err != nil {
		m.logError(ctx, "session store save failed", map[string]any{
			"session_key": m.cfg.SessionKey.String(),
			"error":       err.Error(),
		})
	}
}
