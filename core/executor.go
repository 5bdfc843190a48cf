package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMaxRetries = 10

type CallExecutorConfig struct {
	MaxRetries       int
	RetryScope       string
	InvalidFaultCode string
}

type CallExecutorDependencies struct {
	Sessions  *SessionManager
	Invoker   Invoker
	Resetter  ConnectionResetter
	Backoff   BackoffScheduler
	Recorder  AttemptRecorder
	Logger    Logger
	Metrics   MetricsRecorder
	Now       func() time.Time
	Sleep     SleepFunc
	NewCallID func() string
}

// RetryBudget counts consecutive retryable failures since the last success.
type RetryBudget struct {
	mu    sync.Mutex
	count int
}

func (b *RetryBudget) Value() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *RetryBudget) increment() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	return b.count
}

func (b *RetryBudget) reset() {
	b.mu.Lock()
	b.count = 0
	b.mu.Unlock()
}

// CallExecutor runs one logical call through session checks, dispatch,
// classification, and bounded retries.
type CallExecutor struct {
	cfg       CallExecutorConfig
	sessions  *SessionManager
	invoker   Invoker
	resetter  ConnectionResetter
	backoff   BackoffScheduler
	recorder  AttemptRecorder
	now       func() time.Time
	sleep     SleepFunc
	newCallID func() string
	budget    *RetryBudget
	telemetry
}

func NewCallExecutor(cfg CallExecutorConfig, deps CallExecutorDependencies) (*CallExecutor, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("core: call executor session manager is required")
	}
	if deps.Invoker == nil {
		return nil, fmt.Errorf("core: call executor invoker is required")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	switch strings.TrimSpace(strings.ToLower(cfg.RetryScope)) {
	case RetryScopeCall:
		cfg.RetryScope = RetryScopeCall
	default:
		cfg.RetryScope = RetryScopeClient
	}
	if strings.TrimSpace(cfg.InvalidFaultCode) == "" {
		cfg.InvalidFaultCode = DefaultInvalidSessionFaultCode
	}

	backoff := deps.Backoff
	if backoff == nil {
		backoff = LinearBackoffScheduler{Unit: defaultBackoffUnit}
	}
	now := deps.Now
	if now == nil {
		now = systemNow
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = waitWithContext
	}
	newCallID := deps.NewCallID
	if newCallID == nil {
		newCallID = uuid.NewString
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &CallExecutor{
		cfg:       cfg,
		sessions:  deps.Sessions,
		invoker:   deps.Invoker,
		resetter:  deps.Resetter,
		backoff:   backoff,
		recorder:  deps.Recorder,
		now:       now,
		sleep:     sleep,
		newCallID: newCallID,
		budget:    &RetryBudget{},
		telemetry: telemetry{
			logger:  deps.Logger,
			metrics: metrics,
			now:     now,
		},
	}, nil
}

// RetryBudget returns the current count of consecutive retryable failures.
func (e *CallExecutor) RetryBudget() int {
	if e == nil {
		return 0
	}
	return e.budget.Value()
}

func (e *CallExecutor) Execute(ctx context.Context, operation string, args ...Arg) (result Result, err error) {
	if e == nil {
		return Result{}, fmt.Errorf("core: call executor is nil")
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		return Result{}, badInputError("core: operation is required")
	}

	state := CallAttemptState{CallID: e.newCallID()}
	startedAt := e.now()
	defer func() {
		e.observeOperation(ctx, startedAt, operation, err, map[string]any{
			"call_id":  state.CallID,
			"attempts": state.Attempt,
		})
	}()

	if e.cfg.RetryScope == RetryScopeCall {
		e.budget.reset()
	}

	for {
		if _, sessionErr := e.sessions.EnsureValid(ctx); sessionErr != nil {
			return Result{}, sessionErr
		}

		state.Attempt++
		inv := Invocation{
			Operation:  operation,
			Args:       args,
			Decoration: e.sessions.CurrentCallDecoration(),
			CallID:     state.CallID,
			Attempt:    state.Attempt,
		}
		attemptStarted := e.now()
		resp, invokeErr := e.invoker.Invoke(ctx, inv)
		outcome, fault := e.classify(resp, invokeErr)
		state.LastOutcome = outcome

		e.logInfo(ctx, "rpc exchange", map[string]any{
			"operation": operation,
			"call_id":   state.CallID,
			"attempt":   state.Attempt,
			"outcome":   string(outcome),
			"sent":      payloadText(resp.Exchange.Sent),
			"received":  payloadText(resp.Exchange.Received),
		})

		switch outcome {
		case OutcomeSuccess:
			e.budget.reset()
			e.record(ctx, inv, resp, outcome, nil, attemptStarted)
			e.logDebug(ctx, "rpc response", map[string]any{
				"operation": operation,
				"call_id":   state.CallID,
				"payload":   fmt.Sprintf("%v", resp.Payload),
			})
			return Result{
				Operation: operation,
				CallID:    state.CallID,
				Payload:   resp.Payload,
				Attempts:  state.Attempt,
				Exchange:  resp.Exchange,
			}, nil

		case OutcomeMalformed:
			e.record(ctx, inv, resp, outcome, nil, attemptStarted)
			e.logWarn(ctx, "malformed response, retrying", map[string]any{
				"operation": operation,
				"call_id":   state.CallID,
				"attempt":   state.Attempt,
				"received":  payloadText(resp.Exchange.Received),
			})
			e.resetConnection(ctx, operation)

		case OutcomeInvalidSession:
			e.record(ctx, inv, resp, outcome, invokeErr, attemptStarted)
			e.logWarn(ctx, "invalid session, renewing", map[string]any{
				"operation":  operation,
				"call_id":    state.CallID,
				"attempt":    state.Attempt,
				"fault_code": fault.Code,
			})
			// Invalidate logs its own failures; the next session check logs in again.
			_ = e.sessions.Invalidate(ctx)

		case OutcomeFault:
			terminal := remoteFaultError(operation, fault)
			e.record(ctx, inv, resp, outcome, terminal, attemptStarted)
			fields := faultFields(fault)
			fields["operation"] = operation
			fields["call_id"] = state.CallID
			fields["attempt"] = state.Attempt
			e.logError(ctx, "remote fault", fields)
			return Result{}, terminal
		}

		if !outcome.Retryable() {
			terminal := exchangeFailureError(ctx, operation, invokeErr)
			e.record(ctx, inv, resp, outcome, terminal, attemptStarted)
			return Result{}, terminal
		}
		if retryErr := e.awaitRetry(ctx, operation, outcome); retryErr != nil {
			return Result{}, retryErr
		}
	}
}

func (e *CallExecutor) classify(resp Response, err error) (Outcome, *Fault) {
	if err != nil {
		if fault, ok := FaultFrom(err); ok {
			if e.isInvalidSession(fault.Code) {
				return OutcomeInvalidSession, fault
			}
			return OutcomeFault, fault
		}
		return OutcomeTransportError, nil
	}
	if resp.Malformed {
		return OutcomeMalformed, nil
	}
	return OutcomeSuccess, nil
}

// isInvalidSession matches the configured fault code, ignoring case and
// tolerating a different namespace prefix.
func (e *CallExecutor) isInvalidSession(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	expected := e.cfg.InvalidFaultCode
	if strings.EqualFold(code, expected) {
		return true
	}
	return strings.EqualFold(localFaultCode(code), localFaultCode(expected))
}

func localFaultCode(code string) string {
	if idx := strings.LastIndex(code, ":"); idx >= 0 {
		return code[idx+1:]
	}
	return code
}

// awaitRetry charges the retry budget and sleeps the linear backoff, or
// reports exhaustion once the budget exceeds the configured maximum. A
// budget equal to the maximum still retries, so max N allows N+1
// dispatches.
func (e *CallExecutor) awaitRetry(ctx context.Context, operation string, outcome Outcome) error {
	budget := e.budget.increment()
	if budget > e.cfg.MaxRetries {
		return retriesExhaustedError(operation, outcome, budget, e.cfg.MaxRetries)
	}
	e.recordCounter(ctx, metricRetryTotal, 1, map[string]string{
		"operation": normalizeOperation(operation),
		"reason":    string(outcome),
	})
	if err := e.sleep(ctx, e.backoff.NextDelay(budget)); err != nil {
		return canceledError(operation, err)
	}
	return nil
}

func (e *CallExecutor) resetConnection(ctx context.Context, operation string) {
	if e.resetter == nil {
		return
	}
	if err := e.resetter.ResetConnection(); err != nil {
		e.logError(ctx, "connection reset failed", map[string]any{
			"operation": operation,
			"error":     err.Error(),
		})
	}
}

func (e *CallExecutor) record(ctx context.Context, inv Invocation, resp Response, outcome Outcome, err error, startedAt time.Time) {
	if e.recorder == nil {
		return
	}
	record := AttemptRecord{
		CallID:      inv.CallID,
		Operation:   inv.Operation,
		Attempt:     inv.Attempt,
		Outcome:     outcome,
		RetryBudget: e.budget.Value(),
		Sent:        resp.Exchange.Sent,
		Received:    resp.Exchange.Received,
		StartedAt:   startedAt,
		Duration:    e.since(startedAt),
	}
	if err != nil {
		record.Error = err.Error()
		if outcome != OutcomeInvalidSession {
			record.ErrorKind = KindOf(err)
		}
		if fault, ok := FaultFrom(err); ok {
			record.FaultCode = fault.Code
		}
	}
	if recordErr := e.recorder.RecordAttempt(ctx, record); recordErr != nil {
		e.logError(ctx, "attempt journal write failed", map[string]any{
			"operation": inv.Operation,
			"call_id":   inv.CallID,
			"error":     recordErr.Error(),
		})
	}
}
