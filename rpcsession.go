package rpcsession

import (
	"fmt"

	"github.com/goliatone/go-rpcsession/core"
	"github.com/goliatone/go-rpcsession/soap"
	"github.com/goliatone/go-rpcsession/transport"
)

type Config = core.Config
type CredentialsConfig = core.CredentialsConfig
type SessionConfig = core.SessionConfig
type LoginConfig = core.LoginConfig
type RetryConfig = core.RetryConfig
type TransportConfig = core.TransportConfig

type Option = core.Option

type Client = core.Client
type Session = core.Session
type Result = core.Result
type Fault = core.Fault
type Arg = core.Arg
type ErrorKind = core.ErrorKind

type Invoker = core.Invoker
type SessionStore = core.SessionStore
type AttemptRecorder = core.AttemptRecorder
type SecretProvider = core.SecretProvider

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithInvoker            = core.WithInvoker
	WithInvokerFactory     = core.WithInvokerFactory
	WithConnectionResetter = core.WithConnectionResetter
	WithBackoffScheduler   = core.WithBackoffScheduler
	WithSessionStore       = core.WithSessionStore
	WithAttemptRecorder    = core.WithAttemptRecorder
	WithClock              = core.WithClock
	WithSleeper            = core.WithSleeper
	WithCallIDGenerator    = core.WithCallIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// New builds a client that speaks SOAP over a keep-alive HTTP transport.
// An invoker passed through WithInvoker replaces the SOAP invoker.
func New(cfg Config, opts ...Option) (*Client, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithInvokerFactory(SOAPInvokerFactory(nil)))
	all = append(all, opts...)
	return core.NewClient(cfg, all...)
}

// SOAPInvokerFactory builds a soap.Invoker over the transport kind named in
// the resolved config. A nil registry uses transport.NewDefaultRegistry.
func SOAPInvokerFactory(registry *transport.Registry) core.InvokerFactory {
	return func(cfg core.Config) (core.Invoker, error) {
		if registry == nil {
			registry = transport.NewDefaultRegistry()
		}
		adapter, err := registry.Build(cfg.Transport.Kind, transport.TransportConfigMap(cfg.Transport))
		if err != nil {
			return nil, fmt.Errorf("rpcsession: build %q transport: %w", cfg.Transport.Kind, err)
		}
		return soap.NewInvoker(cfg.Endpoint, cfg.Namespace, adapter)
	}
}
