package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type scriptStep struct {
	resp Response
	err  error
}

func malformedStep() scriptStep {
	return scriptStep{resp: Response{
		Malformed: true,
		Exchange:  Exchange{Received: []byte("<html>upstream error</html>")},
	}}
}

func faultStep(code string, message string) scriptStep {
	return scriptStep{err: &Fault{Code: code, Message: message}}
}

func successStep(payload any) scriptStep {
	return scriptStep{resp: Response{
		Payload:  payload,
		Exchange: Exchange{Sent: []byte("<request/>"), Received: []byte("<response/>")},
	}}
}

func tokenStep(token string) scriptStep {
	return scriptStep{resp: Response{Payload: map[string]any{"Session": token}}}
}

// scriptedInvoker replays scripted steps for login and non-login calls.
// Exhausted login scripts issue fresh tokens; exhausted call scripts succeed.
type scriptedInvoker struct {
	mu          sync.Mutex
	login       []scriptStep
	calls       []scriptStep
	invocations []Invocation
	logins      int
}

func (s *scriptedInvoker) Invoke(_ context.Context, inv Invocation) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations = append(s.invocations, inv)
	if inv.Operation == OperationLogin {
		s.logins++
		if len(s.login) > 0 {
			step := s.login[0]
			s.login = s.login[1:]
			return step.resp, step.err
		}
		return Response{Payload: map[string]any{"Session": fmt.Sprintf("token-%d", s.logins)}}, nil
	}
	if len(s.calls) > 0 {
		step := s.calls[0]
		s.calls = s.calls[1:]
		return step.resp, step.err
	}
	return Response{Payload: "ok"}, nil
}

func (s *scriptedInvoker) snapshot() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Invocation(nil), s.invocations...)
}

func (s *scriptedInvoker) dispatches(operation string) []Invocation {
	out := []Invocation{}
	for _, inv := range s.snapshot() {
		if inv.Operation == operation {
			out = append(out, inv)
		}
	}
	return out
}

type countingResetter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (r *countingResetter) ResetConnection() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.err
}

func (r *countingResetter) resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	clock  *fakeClock
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	if s.clock != nil {
		s.clock.Advance(d)
	}
	return nil
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	saves    int
	deletes  int
	// deleteErr, when set, fails Delete and keeps the stored session.
	deleteErr error
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: map[string]Session{}}
}

func (s *memorySessionStore) Load(_ context.Context, key SessionKey) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key.String()]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *memorySessionStore) Save(_ context.Context, key SessionKey, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.sessions[key.String()] = session
	return nil
}

func (s *memorySessionStore) Delete(_ context.Context, key SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.sessions, key.String())
	return nil
}

type memoryAttemptRecorder struct {
	mu      sync.Mutex
	records []AttemptRecord
}

func (r *memoryAttemptRecorder) RecordAttempt(_ context.Context, record AttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memoryAttemptRecorder) snapshot() []AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AttemptRecord(nil), r.records...)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

type clientHarness struct {
	client   *Client
	invoker  *scriptedInvoker
	resetter *countingResetter
	clock    *fakeClock
	sleeper  *recordingSleeper
	logger   *captureLogger
	metrics  *captureMetricsRecorder
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Endpoint = "https://rpc.example.test/apps/services/a/93.0"
	cfg.Credentials = CredentialsConfig{
		Principal: "api@example.test",
		Secret:    "s3cret",
	}
	return cfg
}

func newClientHarness(cfg Config, invoker *scriptedInvoker, opts ...Option) (*clientHarness, error) {
	h := &clientHarness{
		invoker:  invoker,
		resetter: &countingResetter{},
		clock:    newFakeClock(),
		logger:   newCaptureLogger(),
		metrics:  &captureMetricsRecorder{},
	}
	h.sleeper = &recordingSleeper{clock: h.clock}
	base := []Option{
		WithInvoker(invoker),
		WithConnectionResetter(h.resetter),
		WithClock(h.clock.Now),
		WithSleeper(h.sleeper.Sleep),
		WithLogger(h.logger),
		WithLoggerProvider(stubLoggerProvider{logger: h.logger}),
		WithMetricsRecorder(h.metrics),
	}
	client, err := NewClient(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	h.client = client
	return h, nil
}

func logsAt(items []capturedLog, level string) []capturedLog {
	out := []capturedLog{}
	for _, item := range items {
		if item.level == level {
			out = append(out, item)
		}
	}
	return out
}
