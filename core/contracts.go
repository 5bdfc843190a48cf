package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var ErrSessionNotFound = errors.New("core: session not found")

// Invoker dispatches one invocation to the remote service. A structured
// remote error is returned as *Fault; any other error is a transport failure.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Response, error)
}

type InvokerFunc func(ctx context.Context, inv Invocation) (Response, error)

func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (Response, error) {
	return f(ctx, inv)
}

// InvokerFactory builds an invoker once the client configuration is resolved.
type InvokerFactory func(cfg Config) (Invoker, error)

// ConnectionResetter drops and re-establishes the underlying connection.
type ConnectionResetter interface {
	ResetConnection() error
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type SessionStore interface {
	Load(ctx context.Context, key SessionKey) (Session, error)
	Save(ctx context.Context, key SessionKey, session Session) error
	Delete(ctx context.Context, key SessionKey) error
}

type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, record AttemptRecord) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
