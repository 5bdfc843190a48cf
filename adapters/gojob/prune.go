package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDJournalPrune = "rpcsession.journal.prune"

	parameterCutoff = "cutoff"
)

// Pruner deletes journal entries started before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// delay grows linearly with the attempt number.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * p.BaseDelay
}

// PruneMessage builds the execution message that prunes attempts older
// than retention, measured from now. The idempotency key is the cutoff, so
// duplicate schedules for the same instant collapse.
func PruneMessage(retention time.Duration, now time.Time) (*job.ExecutionMessage, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("gojob: prune retention must be positive")
	}
	cutoff := now.Add(-retention).UTC()
	return &job.ExecutionMessage{
		JobID:          JobIDJournalPrune,
		ScriptPath:     JobIDJournalPrune,
		Parameters:     map[string]any{parameterCutoff: cutoff.Format(time.RFC3339Nano)},
		IdempotencyKey: JobIDJournalPrune + ":" + cutoff.Format(time.RFC3339),
	}, nil
}

// PruneCutoff reads the cutoff parameter of a prune message.
func PruneCutoff(msg *job.ExecutionMessage) (time.Time, error) {
	if msg == nil {
		return time.Time{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDJournalPrune {
		return time.Time{}, fmt.Errorf("gojob: unexpected job %q", msg.JobID)
	}
	switch value := msg.Parameters[parameterCutoff].(type) {
	case time.Time:
		return value.UTC(), nil
	case string:
		cutoff, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
		if err != nil {
			return time.Time{}, fmt.Errorf("gojob: invalid cutoff %q: %w", value, err)
		}
		return cutoff.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("gojob: prune message has no cutoff")
	}
}

// EnqueuePrune schedules a prune of attempts older than retention.
func EnqueuePrune(ctx context.Context, enqueuer queue.Enqueuer, retention time.Duration, now time.Time) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := PruneMessage(retention, now)
	if err != nil {
		return err
	}
	return enqueuer.Enqueue(ctx, msg)
}

type PruneTaskOption func(*PruneTask)

func WithRetryPolicy(policy RetryPolicy) PruneTaskOption {
	return func(t *PruneTask) { t.policy = policy }
}

func WithHook(hook worker.Hook) PruneTaskOption {
	return func(t *PruneTask) { t.hook = hook }
}

func WithLogger(logger job.Logger) PruneTaskOption {
	return func(t *PruneTask) { t.logger = logger }
}

func WithClock(now func() time.Time) PruneTaskOption {
	return func(t *PruneTask) {
		if now != nil {
			t.now = now
		}
	}
}

// PruneTask runs journal prune messages, either directly or from a queue
// delivery.
type PruneTask struct {
	pruner Pruner
	policy RetryPolicy
	hook   worker.Hook
	logger job.Logger
	now    func() time.Time
}

func NewPruneTask(pruner Pruner, opts ...PruneTaskOption) (*PruneTask, error) {
	if pruner == nil {
		return nil, fmt.Errorf("gojob: pruner is required")
	}
	task := &PruneTask{pruner: pruner, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(task)
		}
	}
	return task, nil
}

// Execute prunes the attempts older than the message cutoff and returns
// how many were deleted.
func (t *PruneTask) Execute(ctx context.Context, msg *job.ExecutionMessage) (int, error) {
	cutoff, err := PruneCutoff(msg)
	if err != nil {
		return 0, errors.Join(errInvalidMessage, err)
	}
	deleted, err := t.pruner.Prune(ctx, cutoff)
	if err != nil {
		if t.logger != nil {
			t.logger.Error("journal prune failed", "cutoff", cutoff, "error", err)
		}
		return 0, err
	}
	if t.logger != nil {
		t.logger.Info("journal pruned", "cutoff", cutoff, "deleted", deleted)
	}
	return deleted, nil
}

var errInvalidMessage = errors.New("gojob: invalid prune message")

// Handle executes one delivery. Success acks it; failures nack it under
// the retry policy, and malformed messages go straight to dead letter.
func (t *PruneTask) Handle(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	event := worker.Event{
		Message:   delivery.Message(),
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: t.now(),
	}
	t.onStart(ctx, event)

	_, err := t.Execute(ctx, event.Message)
	event.Duration = t.now().Sub(event.StartedAt)
	if err == nil {
		t.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = err
	opts := t.policy.NormalizeAttempt(queue.NackOptions{
		Delay:      t.policy.delay(attempt),
		Requeue:    true,
		DeadLetter: errors.Is(err, errInvalidMessage),
		Reason:     err.Error(),
	}, attempt)
	if opts.Requeue {
		event.Delay = opts.Delay
		t.onRetry(ctx, event)
	} else {
		t.onFailure(ctx, event)
	}
	if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
		return errors.Join(err, nackErr)
	}
	return err
}

func (t *PruneTask) onStart(ctx context.Context, event worker.Event) {
	if t.hook != nil {
		t.hook.OnStart(ctx, event)
	}
}

func (t *PruneTask) onSuccess(ctx context.Context, event worker.Event) {
	if t.hook != nil {
		t.hook.OnSuccess(ctx, event)
	}
}

func (t *PruneTask) onFailure(ctx context.Context, event worker.Event) {
	if t.hook != nil {
		t.hook.OnFailure(ctx, event)
	}
}

func (t *PruneTask) onRetry(ctx context.Context, event worker.Event) {
	if t.hook != nil {
		t.hook.OnRetry(ctx, event)
	}
}
