package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	RetryScopeClient = "client"
	RetryScopeCall   = "call"

	TransportKindSOAP = "soap"
	TransportKindREST = "rest"

	DefaultInvalidSessionFaultCode = "fns:INVALID_SESSION"
)

type CredentialsConfig struct {
	Principal    string `koanf:"principal" mapstructure:"principal"`
	Secret       string `koanf:"secret" mapstructure:"secret"`
	EndpointHint string `koanf:"endpoint_hint" mapstructure:"endpoint_hint"`
}

type SessionConfig struct {
	DurationSeconds  int    `koanf:"duration_seconds" mapstructure:"duration_seconds"`
	InvalidFaultCode string `koanf:"invalid_fault_code" mapstructure:"invalid_fault_code"`
}

type LoginConfig struct {
	MaxAttempts    int `koanf:"max_attempts" mapstructure:"max_attempts"`
	IntervalMillis int `koanf:"interval_ms" mapstructure:"interval_ms"`
}

type RetryConfig struct {
	MaxRetries        int    `koanf:"max_retries" mapstructure:"max_retries"`
	BackoffUnitMillis int    `koanf:"backoff_unit_ms" mapstructure:"backoff_unit_ms"`
	Scope             string `koanf:"scope" mapstructure:"scope"`
}

type TransportConfig struct {
	Kind               string `koanf:"kind" mapstructure:"kind"`
	TimeoutSeconds     int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	MaxResponseBytes   int64  `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	Endpoint    string            `koanf:"endpoint" mapstructure:"endpoint"`
	Namespace   string            `koanf:"namespace" mapstructure:"namespace"`
	Credentials CredentialsConfig `koanf:"credentials" mapstructure:"credentials"`
	Session     SessionConfig     `koanf:"session" mapstructure:"session"`
	Login       LoginConfig       `koanf:"login" mapstructure:"login"`
	Retry       RetryConfig       `koanf:"retry" mapstructure:"retry"`
	Transport   TransportConfig   `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "rpcsession",
		Namespace:   "http://api.zuora.com/",
		Session: SessionConfig{
			DurationSeconds:  6900,
			InvalidFaultCode: DefaultInvalidSessionFaultCode,
		},
		Login: LoginConfig{
			MaxAttempts:    100,
			IntervalMillis: 2000,
		},
		Retry: RetryConfig{
			MaxRetries:        10,
			BackoffUnitMillis: 1000,
			Scope:             RetryScopeClient,
		},
		Transport: TransportConfig{
			Kind:             TransportKindSOAP,
			TimeoutSeconds:   30,
			MaxResponseBytes: 10 << 20,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Session.DurationSeconds < 0 {
		return fmt.Errorf("core: session.duration_seconds must be >= 0")
	}
	if c.Login.MaxAttempts < 0 {
		return fmt.Errorf("core: login.max_attempts must be >= 0")
	}
	if c.Login.IntervalMillis < 0 {
		return fmt.Errorf("core: login.interval_ms must be >= 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("core: retry.max_retries must be >= 0")
	}
	if c.Retry.BackoffUnitMillis < 0 {
		return fmt.Errorf("core: retry.backoff_unit_ms must be >= 0")
	}
	switch strings.TrimSpace(strings.ToLower(c.Retry.Scope)) {
	case "", RetryScopeClient, RetryScopeCall:
	default:
		return fmt.Errorf("core: retry.scope %q is invalid", c.Retry.Scope)
	}
	if c.Transport.TimeoutSeconds < 0 {
		return fmt.Errorf("core: transport.timeout_seconds must be >= 0")
	}
	if c.Transport.MaxResponseBytes < 0 {
		return fmt.Errorf("core: transport.max_response_bytes must be >= 0")
	}
	return nil
}

func (c Config) SessionDuration() time.Duration {
	return time.Duration(c.Session.DurationSeconds) * time.Second
}

func (c Config) LoginInterval() time.Duration {
	return time.Duration(c.Login.IntervalMillis) * time.Millisecond
}

func (c Config) BackoffUnit() time.Duration {
	return time.Duration(c.Retry.BackoffUnitMillis) * time.Millisecond
}

func (c Config) TransportTimeout() time.Duration {
	return time.Duration(c.Transport.TimeoutSeconds) * time.Second
}

func (c Config) RetryScope() string {
	scope := strings.TrimSpace(strings.ToLower(c.Retry.Scope))
	if scope == "" {
		return RetryScopeClient
	}
	return scope
}

func (c Config) InvalidSessionFaultCode() string {
	code := strings.TrimSpace(c.Session.InvalidFaultCode)
	if code == "" {
		return DefaultInvalidSessionFaultCode
	}
	return code
}

func (c CredentialsConfig) Credentials() Credentials {
	return Credentials{
		Principal:    strings.TrimSpace(c.Principal),
		Secret:       c.Secret,
		EndpointHint: strings.TrimSpace(c.EndpointHint),
	}
}

// SessionKey identifies the persisted session for these credentials.
func (c Config) SessionKey() SessionKey {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Credentials.EndpointHint)
	}
	return SessionKey{
		Principal: strings.TrimSpace(c.Credentials.Principal),
		Endpoint:  endpoint,
	}
}
