package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type resettableInvoker struct {
	scriptedInvoker
	countingResetter
}

func TestNewClient_DefaultConfigResolution(t *testing.T) {
	client, err := NewClient(Config{
		Credentials: CredentialsConfig{Principal: "user"},
	}, WithInvoker(&scriptedInvoker{}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	cfg := client.Config()
	if cfg.ServiceName != "rpcsession" {
		t.Fatalf("expected default service_name, got %q", cfg.ServiceName)
	}
	if cfg.SessionDuration() != 115*time.Minute {
		t.Fatalf("expected 115m session duration, got %s", cfg.SessionDuration())
	}
	if cfg.Retry.MaxRetries != 10 || cfg.Login.MaxAttempts != 100 {
		t.Fatalf("expected retry and login defaults, got %#v", cfg)
	}
	if cfg.InvalidSessionFaultCode() != "fns:INVALID_SESSION" {
		t.Fatalf("expected default invalid session code, got %q", cfg.InvalidSessionFaultCode())
	}
	if cfg.RetryScope() != RetryScopeClient {
		t.Fatalf("expected client retry scope, got %q", cfg.RetryScope())
	}
}

func TestNewClient_LoadedConfigAndRuntimeLayers(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"endpoint": "https://loaded.example.test",
		"credentials": map[string]any{
			"principal": "loaded-user",
			"secret":    "loaded-secret",
		},
		"retry": map[string]any{
			"max_retries": 4,
			"scope":       "call",
		},
		"login": map[string]any{
			"interval_ms": 250,
		},
	}}
	client, err := NewClient(Config{
		Credentials: CredentialsConfig{Principal: "runtime-user"},
	},
		WithInvoker(&scriptedInvoker{}),
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	cfg := client.Config()
	if cfg.Endpoint != "https://loaded.example.test" {
		t.Fatalf("expected loaded endpoint, got %q", cfg.Endpoint)
	}
	if cfg.Credentials.Principal != "runtime-user" {
		t.Fatalf("expected runtime principal to win, got %q", cfg.Credentials.Principal)
	}
	if cfg.Credentials.Secret != "loaded-secret" {
		t.Fatalf("expected loaded secret, got %q", cfg.Credentials.Secret)
	}
	if cfg.Retry.MaxRetries != 4 || cfg.RetryScope() != RetryScopeCall {
		t.Fatalf("expected loaded retry settings, got %#v", cfg.Retry)
	}
	if cfg.LoginInterval() != 250*time.Millisecond {
		t.Fatalf("expected loaded login interval, got %s", cfg.LoginInterval())
	}
	if cfg.Transport.TimeoutSeconds != 30 {
		t.Fatalf("expected default transport timeout, got %d", cfg.Transport.TimeoutSeconds)
	}
}

func TestNewClient_WithXOverrides(t *testing.T) {
	configProvider := &fixedConfigProvider{cfg: DefaultConfig()}
	resolved := testConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}

	client, err := NewClient(Config{ServiceName: "runtime"},
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithInvoker(&scriptedInvoker{}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Config().ServiceName != "resolved" {
		t.Fatalf("expected resolver output to win, got %q", client.Config().ServiceName)
	}
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.Scope = "global"
	if _, err := NewClient(cfg, WithInvoker(&scriptedInvoker{})); err == nil {
		t.Fatalf("expected invalid retry scope error")
	}

	if _, err := NewClient(Config{}, WithInvoker(&scriptedInvoker{})); !IsKind(err, ErrorKindBadInput) {
		t.Fatalf("expected BadInput for missing principal, got %v", err)
	}

	if _, err := NewClient(testConfig()); err == nil {
		t.Fatalf("expected missing invoker error")
	}
}

func TestNewClient_InvokerFactoryAndResetterDetection(t *testing.T) {
	invoker := &resettableInvoker{}
	var seen Config
	client, err := NewClient(testConfig(),
		WithInvokerFactory(func(cfg Config) (Invoker, error) {
			seen = cfg
			return invoker, nil
		}),
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if seen.Endpoint != testConfig().Endpoint {
		t.Fatalf("expected factory to receive resolved config, got %q", seen.Endpoint)
	}
	if err := client.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if invoker.resets() != 1 {
		t.Fatalf("expected invoker to double as connection resetter, got %d resets", invoker.resets())
	}
}

func TestNewClient_InvokerFactoryError(t *testing.T) {
	sentinel := errors.New("no endpoint")
	_, err := NewClient(testConfig(), WithInvokerFactory(func(Config) (Invoker, error) {
		return nil, sentinel
	}))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected factory error, got %v", err)
	}
}
