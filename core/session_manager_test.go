package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSessionManager(t *testing.T, invoker Invoker, cfg SessionManagerConfig, store SessionStore) (*SessionManager, *fakeClock, *recordingSleeper, *countingResetter) {
	t.Helper()
	clock := newFakeClock()
	sleeper := &recordingSleeper{clock: clock}
	resetter := &countingResetter{}
	if cfg.Credentials.Principal == "" {
		cfg.Credentials = Credentials{Principal: "api@example.test", Secret: "s3cret"}
	}
	manager, err := NewSessionManager(cfg, SessionManagerDependencies{
		Invoker:  invoker,
		Resetter: resetter,
		Store:    store,
		Logger:   stubLogger{},
		Now:      clock.Now,
		Sleep:    sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	return manager, clock, sleeper, resetter
}

func TestSessionManager_LoginPollsUntilTokenArrives(t *testing.T) {
	invoker := &scriptedInvoker{login: []scriptStep{
		tokenStep(""),
		{resp: Response{Malformed: true}},
		tokenStep("   "),
		tokenStep("tok-abc"),
	}}
	manager, clock, sleeper, _ := newTestSessionManager(t, invoker, SessionManagerConfig{
		LoginInterval:   2 * time.Second,
		SessionDuration: time.Hour,
	}, nil)
	startedAt := clock.Now()

	session, err := manager.Login(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token != "tok-abc" {
		t.Fatalf("expected token tok-abc, got %q", session.Token)
	}
	if got := sleeper.recorded(); len(got) != 3 {
		t.Fatalf("expected 3 polling sleeps, got %v", got)
	}
	if !session.IssuedAt.Equal(startedAt.Add(6 * time.Second)) {
		t.Fatalf("expected issuedAt after polling, got %s", session.IssuedAt)
	}
	if !session.ExpiresAt.Equal(session.IssuedAt.Add(time.Hour)) {
		t.Fatalf("expected expiresAt = issuedAt + ttl")
	}
}

func TestSessionManager_LoginExhaustsAttempts(t *testing.T) {
	invoker := &scriptedInvoker{login: []scriptStep{tokenStep(""), tokenStep(""), tokenStep(""), tokenStep("late")}}
	manager, _, sleeper, _ := newTestSessionManager(t, invoker, SessionManagerConfig{
		LoginMaxAttempts: 3,
		LoginInterval:    time.Second,
	}, nil)

	_, err := manager.Login(context.Background())
	if !IsKind(err, ErrorKindAuthenticationExhausted) {
		t.Fatalf("expected AuthenticationExhausted, got %v", err)
	}
	if got := len(invoker.dispatches(OperationLogin)); got != 3 {
		t.Fatalf("expected 3 login attempts, got %d", got)
	}
	if got := len(sleeper.recorded()); got != 2 {
		t.Fatalf("expected sleeps only between attempts, got %d", got)
	}
	if _, ok := manager.Session(); ok {
		t.Fatalf("expected no session after exhaustion")
	}
}

func TestSessionManager_LoginArgsAndEmptyDecoration(t *testing.T) {
	invoker := &scriptedInvoker{}
	manager, _, _, _ := newTestSessionManager(t, invoker, SessionManagerConfig{
		Credentials: Credentials{Principal: "user", Secret: "pw", EndpointHint: "tenant-a"},
	}, nil)
	if _, err := manager.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	logins := invoker.dispatches(OperationLogin)
	if len(logins) != 1 {
		t.Fatalf("expected one login, got %d", len(logins))
	}
	args := logins[0].Args
	if len(args) != 3 || args[0].Name != "username" || args[1].Name != "password" || args[2].Name != "entityName" {
		t.Fatalf("unexpected login args %#v", args)
	}
	if args[2].Value != "tenant-a" {
		t.Fatalf("expected endpoint hint as entityName, got %#v", args[2].Value)
	}
	if !logins[0].Decoration.IsEmpty() {
		t.Fatalf("expected empty login decoration")
	}
}

func TestSessionManager_LoginOmitsEmptyEndpointHint(t *testing.T) {
	invoker := &scriptedInvoker{}
	manager, _, _, _ := newTestSessionManager(t, invoker, SessionManagerConfig{}, nil)
	if _, err := manager.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if args := invoker.dispatches(OperationLogin)[0].Args; len(args) != 2 {
		t.Fatalf("expected username and password only, got %#v", args)
	}
}

func TestSessionManager_LoginFaultAndTransportErrors(t *testing.T) {
	faulting := &scriptedInvoker{login: []scriptStep{faultStep("fns:INVALID_LOGIN", "bad credentials")}}
	manager, _, _, _ := newTestSessionManager(t, faulting, SessionManagerConfig{}, nil)
	if _, err := manager.Login(context.Background()); !IsKind(err, ErrorKindRemoteFault) {
		t.Fatalf("expected RemoteFault, got %v", err)
	}

	broken := &scriptedInvoker{login: []scriptStep{{err: errors.New("dial tcp: timeout")}}}
	manager, _, _, _ = newTestSessionManager(t, broken, SessionManagerConfig{}, nil)
	if _, err := manager.Login(context.Background()); !IsKind(err, ErrorKindTransportFailure) {
		t.Fatalf("expected TransportFailure, got %v", err)
	}
}

func TestSessionManager_EnsureValidReusesUnexpiredSession(t *testing.T) {
	invoker := &scriptedInvoker{}
	manager, clock, _, _ := newTestSessionManager(t, invoker, SessionManagerConfig{SessionDuration: time.Minute}, nil)
	ctx := context.Background()

	first, err := manager.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	clock.Advance(30 * time.Second)
	second, err := manager.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if first.Token != second.Token {
		t.Fatalf("expected unchanged session, got %q then %q", first.Token, second.Token)
	}
	clock.Advance(30 * time.Second)
	third, err := manager.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if third.Token == first.Token {
		t.Fatalf("expected a new session at expiry")
	}
}

func TestSessionManager_InvalidateDropsSessionAndResetsConnection(t *testing.T) {
	store := newMemorySessionStore()
	invoker := &scriptedInvoker{}
	manager, _, _, resetter := newTestSessionManager(t, invoker, SessionManagerConfig{}, store)
	ctx := context.Background()
	if _, err := manager.EnsureValid(ctx); err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected session to be persisted, got %d saves", store.saves)
	}

	if err := manager.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := manager.Session(); ok {
		t.Fatalf("expected session to be dropped")
	}
	if resetter.resets() != 1 {
		t.Fatalf("expected one connection reset, got %d", resetter.resets())
	}
	if store.deletes != 1 {
		t.Fatalf("expected stored session to be deleted")
	}
	if decoration := manager.CurrentCallDecoration(); decoration.SessionToken != "" {
		t.Fatalf("expected empty token after invalidate, got %q", decoration.SessionToken)
	}
}

func TestSessionManager_FailedDeleteDoesNotRestoreRejectedToken(t *testing.T) {
	store := newMemorySessionStore()
	invoker := &scriptedInvoker{}
	manager, clock, _, _ := newTestSessionManager(t, invoker, SessionManagerConfig{}, store)
	ctx := context.Background()
	if _, err := manager.EnsureValid(ctx); err != nil {
		t.Fatalf("ensure valid: %v", err)
	}

	store.deleteErr = errors.New("database is locked")
	if err := manager.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	session, err := manager.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("ensure valid after invalidate: %v", err)
	}
	if session.Token != "token-2" {
		t.Fatalf("expected a fresh login instead of the rejected token, got %q", session.Token)
	}
	if logins := len(invoker.dispatches(OperationLogin)); logins != 2 {
		t.Fatalf("expected 2 logins, got %d", logins)
	}

	// a stored token other than the rejected one is still adopted
	if err := manager.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	key := SessionKey{Principal: "api@example.test"}
	_ = store.Save(ctx, key, NewSession("shared-token", clock.Now(), time.Hour))
	session, err = manager.EnsureValid(ctx)
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if session.Token != "shared-token" {
		t.Fatalf("expected stored session to be restored, got %q", session.Token)
	}
}

func TestSessionManager_RestoresStoredSession(t *testing.T) {
	store := newMemorySessionStore()
	invoker := &scriptedInvoker{}
	manager, clock, _, _ := newTestSessionManager(t, invoker, SessionManagerConfig{
		SessionKey: SessionKey{Principal: "api@example.test", Endpoint: "https://rpc.example.test"},
	}, store)
	key := SessionKey{Principal: "api@example.test", Endpoint: "https://rpc.example.test"}
	_ = store.Save(context.Background(), key, NewSession("stored-token", clock.Now().Add(-time.Minute), time.Hour))

	session, err := manager.EnsureValid(context.Background())
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if session.Token != "stored-token" {
		t.Fatalf("expected stored token, got %q", session.Token)
	}
	if len(invoker.dispatches(OperationLogin)) != 0 {
		t.Fatalf("expected no login when a stored session is valid")
	}
}

func TestSessionManager_IgnoresExpiredStoredSession(t *testing.T) {
	store := newMemorySessionStore()
	invoker := &scriptedInvoker{}
	manager, clock, _, _ := newTestSessionManager(t, invoker, SessionManagerConfig{}, store)
	key := SessionKey{Principal: "api@example.test"}
	_ = store.Save(context.Background(), key, NewSession("old-token", clock.Now().Add(-2*time.Hour), time.Hour))

	session, err := manager.EnsureValid(context.Background())
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if session.Token == "old-token" {
		t.Fatalf("expected a fresh login instead of expired stored session")
	}
}

func TestSessionManager_DecorationCarriesBatchOptions(t *testing.T) {
	batch := NewBatchModeController()
	manager, err := NewSessionManager(SessionManagerConfig{
		Credentials: Credentials{Principal: "user"},
	}, SessionManagerDependencies{
		Invoker: &scriptedInvoker{},
		Batch:   batch,
	})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	batch.SetTransactionMode(true)
	if !manager.CurrentCallDecoration().HasOption(CallOptionSingleTransaction) {
		t.Fatalf("expected transaction option on decoration")
	}
	batch.SetTransactionMode(false)
	if len(manager.CurrentCallDecoration().Options) != 0 {
		t.Fatalf("expected no options after disabling transaction mode")
	}
}

func TestSessionManager_RequiresInvokerAndPrincipal(t *testing.T) {
	if _, err := NewSessionManager(SessionManagerConfig{Credentials: Credentials{Principal: "u"}}, SessionManagerDependencies{}); err == nil {
		t.Fatalf("expected missing invoker error")
	}
	if _, err := NewSessionManager(SessionManagerConfig{}, SessionManagerDependencies{Invoker: &scriptedInvoker{}}); err == nil {
		t.Fatalf("expected missing principal error")
	}
}
