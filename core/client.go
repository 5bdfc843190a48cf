package core

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Client is the session-managed RPC client facade. Every remote operation
// is forwarded to the call executor under its wire operation name.
type Client struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	errorMapper    ErrorMapper
	batch          *BatchModeController
	sessions       *SessionManager
	executor       *CallExecutor
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}

	builder.loggerProvider, builder.logger = glog.Resolve("rpcsession", builder.loggerProvider, builder.logger)
	builder.logger = glog.Ensure(builder.logger)
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = systemNow
	}
	if builder.sleep == nil {
		builder.sleep = waitWithContext
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, fmt.Errorf("core: load config: %w", err)
	}
	finalCfg, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("core: resolve options: %w", err)
	}
	credentials := finalCfg.Credentials.Credentials()
	if err := credentials.Validate(); err != nil {
		return nil, builder.errorMapper(err)
	}

	invoker := builder.invoker
	if invoker == nil && builder.invokerFactory != nil {
		invoker, err = builder.invokerFactory(finalCfg)
		if err != nil {
			return nil, fmt.Errorf("core: build invoker: %w", err)
		}
	}
	if invoker == nil {
		return nil, fmt.Errorf("core: invoker is required")
	}
	resetter := builder.resetter
	if resetter == nil {
		if candidate, ok := invoker.(ConnectionResetter); ok {
			resetter = candidate
		}
	}
	backoff := builder.backoff
	if backoff == nil {
		backoff = LinearBackoffScheduler{Unit: finalCfg.BackoffUnit()}
	}

	batch := NewBatchModeController()
	sessions, err := NewSessionManager(SessionManagerConfig{
		Credentials:      credentials,
		SessionKey:       finalCfg.SessionKey(),
		SessionDuration:  finalCfg.SessionDuration(),
		LoginMaxAttempts: finalCfg.Login.MaxAttempts,
		LoginInterval:    finalCfg.LoginInterval(),
	}, SessionManagerDependencies{
		Invoker:  invoker,
		Resetter: resetter,
		Batch:    batch,
		Store:    builder.sessionStore,
		Logger:   builder.logger,
		Metrics:  builder.metricsRecorder,
		Now:      builder.now,
		Sleep:    builder.sleep,
	})
	if err != nil {
		return nil, err
	}
	executor, err := NewCallExecutor(CallExecutorConfig{
		MaxRetries:       finalCfg.Retry.MaxRetries,
		RetryScope:       finalCfg.RetryScope(),
		InvalidFaultCode: finalCfg.InvalidSessionFaultCode(),
	}, CallExecutorDependencies{
		Sessions:  sessions,
		Invoker:   invoker,
		Resetter:  resetter,
		Backoff:   backoff,
		Recorder:  builder.attemptRecorder,
		Logger:    builder.logger,
		Metrics:   builder.metricsRecorder,
		Now:       builder.now,
		Sleep:     builder.sleep,
		NewCallID: builder.newCallID,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:         finalCfg,
		logger:         builder.logger,
		loggerProvider: builder.loggerProvider,
		errorMapper:    builder.errorMapper,
		batch:          batch,
		sessions:       sessions,
		executor:       executor,
	}, nil
}

func (c *Client) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

func (c *Client) Sessions() *SessionManager {
	if c == nil {
		return nil
	}
	return c.sessions
}

// Session returns the current session, if any.
func (c *Client) Session() (Session, bool) {
	if c == nil {
		return Session{}, false
	}
	return c.sessions.Session()
}

func (c *Client) RetryBudget() int {
	if c == nil {
		return 0
	}
	return c.executor.RetryBudget()
}

// SetTransactionMode toggles single-transaction processing for subsequent
// calls.
func (c *Client) SetTransactionMode(enabled bool) {
	if c == nil {
		return
	}
	c.batch.SetTransactionMode(enabled)
}

func (c *Client) TransactionMode() bool {
	if c == nil {
		return false
	}
	return c.batch.TransactionMode()
}

func (c *Client) Login(ctx context.Context) (Session, error) {
	if c == nil {
		return Session{}, fmt.Errorf("core: client is nil")
	}
	return c.sessions.Login(ctx)
}

// Invalidate drops the current session and resets the connection.
func (c *Client) Invalidate(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("core: client is nil")
	}
	return c.sessions.Invalidate(ctx)
}

// Call runs an arbitrary remote operation through the call executor.
func (c *Client) Call(ctx context.Context, operation string, args ...Arg) (Result, error) {
	if c == nil {
		return Result{}, fmt.Errorf("core: client is nil")
	}
	return c.executor.Execute(ctx, operation, args...)
}

func (c *Client) Query(ctx context.Context, queryString string) (Result, error) {
	if strings.TrimSpace(queryString) == "" {
		return Result{}, badInputError("core: query string is required")
	}
	return c.Call(ctx, OperationQuery, NamedArg("queryString", queryString))
}

func (c *Client) QueryMore(ctx context.Context, queryLocator string) (Result, error) {
	if strings.TrimSpace(queryLocator) == "" {
		return Result{}, badInputError("core: query locator is required")
	}
	return c.Call(ctx, OperationQueryMore, NamedArg("queryLocator", queryLocator))
}

func (c *Client) Create(ctx context.Context, objects any) (Result, error) {
	return c.Call(ctx, OperationCreate, NamedArg("zObjects", objects))
}

func (c *Client) Update(ctx context.Context, objects any) (Result, error) {
	return c.Call(ctx, OperationUpdate, NamedArg("zObjects", objects))
}

func (c *Client) Delete(ctx context.Context, objectType string, ids []string) (Result, error) {
	if strings.TrimSpace(objectType) == "" {
		return Result{}, badInputError("core: object type is required")
	}
	return c.Call(ctx, OperationDelete,
		NamedArg("type", objectType),
		NamedArg("ids", append([]string(nil), ids...)),
	)
}

func (c *Client) Execute(ctx context.Context, objectType string, synchronous bool, ids []string) (Result, error) {
	if strings.TrimSpace(objectType) == "" {
		return Result{}, badInputError("core: object type is required")
	}
	return c.Call(ctx, OperationExecute,
		NamedArg("type", objectType),
		NamedArg("synchronous", synchronous),
		NamedArg("ids", append([]string(nil), ids...)),
	)
}

func (c *Client) Subscribe(ctx context.Context, requests any) (Result, error) {
	return c.Call(ctx, OperationSubscribe, NamedArg("subscribes", requests))
}

func (c *Client) Amend(ctx context.Context, requests any) (Result, error) {
	return c.Call(ctx, OperationAmend, NamedArg("requests", requests))
}

func (c *Client) Generate(ctx context.Context, objects any) (Result, error) {
	return c.Call(ctx, OperationGenerate, NamedArg("zObjects", objects))
}

func (c *Client) GetUserInfo(ctx context.Context) (Result, error) {
	return c.Call(ctx, OperationGetUserInfo)
}
