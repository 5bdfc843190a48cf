package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type clientBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	invoker         Invoker
	invokerFactory  InvokerFactory
	resetter        ConnectionResetter
	backoff         BackoffScheduler
	sessionStore    SessionStore
	attemptRecorder AttemptRecorder
	now             func() time.Time
	sleep           SleepFunc
	newCallID       func() string
}

type Option func(*clientBuilder)

func WithLogger(logger Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *clientBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

// WithInvoker sets the invoker used for every remote call. If the invoker
// also implements ConnectionResetter it is used to reset connections unless
// WithConnectionResetter is given.
func WithInvoker(invoker Invoker) Option {
	return func(b *clientBuilder) {
		b.invoker = invoker
	}
}

// WithInvokerFactory builds the invoker from the resolved configuration when
// no invoker is set explicitly.
func WithInvokerFactory(factory InvokerFactory) Option {
	return func(b *clientBuilder) {
		b.invokerFactory = factory
	}
}

func WithConnectionResetter(resetter ConnectionResetter) Option {
	return func(b *clientBuilder) {
		b.resetter = resetter
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *clientBuilder) {
		b.backoff = scheduler
	}
}

func WithSessionStore(store SessionStore) Option {
	return func(b *clientBuilder) {
		b.sessionStore = store
	}
}

func WithAttemptRecorder(recorder AttemptRecorder) Option {
	return func(b *clientBuilder) {
		b.attemptRecorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *clientBuilder) {
		b.now = now
	}
}

func WithSleeper(sleep SleepFunc) Option {
	return func(b *clientBuilder) {
		b.sleep = sleep
	}
}

func WithCallIDGenerator(generator func() string) Option {
	return func(b *clientBuilder) {
		b.newCallID = generator
	}
}

func defaultClientBuilder(runtime Config) clientBuilder {
	loggerProvider, logger := glog.Resolve("rpcsession", nil, nil)
	return clientBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             systemNow,
		sleep:           waitWithContext,
		newCallID:       uuid.NewString,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return mapClientError(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as a layer; zero values are skipped unless
// includeZero so lower layers show through.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)
	putString(layer, "endpoint", cfg.Endpoint, includeZero)
	putString(layer, "namespace", cfg.Namespace, includeZero)

	credentials := map[string]any{}
	putString(credentials, "principal", cfg.Credentials.Principal, includeZero)
	putString(credentials, "secret", cfg.Credentials.Secret, includeZero)
	putString(credentials, "endpoint_hint", cfg.Credentials.EndpointHint, includeZero)
	putSection(layer, "credentials", credentials)

	session := map[string]any{}
	putInt(session, "duration_seconds", int64(cfg.Session.DurationSeconds), includeZero)
	putString(session, "invalid_fault_code", cfg.Session.InvalidFaultCode, includeZero)
	putSection(layer, "session", session)

	login := map[string]any{}
	putInt(login, "max_attempts", int64(cfg.Login.MaxAttempts), includeZero)
	putInt(login, "interval_ms", int64(cfg.Login.IntervalMillis), includeZero)
	putSection(layer, "login", login)

	retry := map[string]any{}
	putInt(retry, "max_retries", int64(cfg.Retry.MaxRetries), includeZero)
	putInt(retry, "backoff_unit_ms", int64(cfg.Retry.BackoffUnitMillis), includeZero)
	putString(retry, "scope", cfg.Retry.Scope, includeZero)
	putSection(layer, "retry", retry)

	transport := map[string]any{}
	putString(transport, "kind", cfg.Transport.Kind, includeZero)
	putInt(transport, "timeout_seconds", int64(cfg.Transport.TimeoutSeconds), includeZero)
	if includeZero || cfg.Transport.InsecureSkipVerify {
		transport["insecure_skip_verify"] = cfg.Transport.InsecureSkipVerify
	}
	putInt(transport, "max_response_bytes", cfg.Transport.MaxResponseBytes, includeZero)
	putSection(layer, "transport", transport)
	return layer
}

func putString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

func putInt(layer map[string]any, key string, value int64, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}
