package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-rpcsession/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultAttemptPageSize = 25

// AttemptJournal persists one row per dispatch attempt. Wire payloads are
// stored redacted unless raw payloads are requested.
type AttemptJournal struct {
	db          *bun.DB
	repo        repository.Repository[*attemptRecord]
	rawPayloads bool
}

func NewAttemptJournal(db *bun.DB) (*AttemptJournal, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*attemptRecord](db, attemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid attempt repository wiring: %w", err)
		}
	}
	return &AttemptJournal{db: db, repo: repo}, nil
}

// KeepRawPayloads disables payload redaction.
func (j *AttemptJournal) KeepRawPayloads(enabled bool) *AttemptJournal {
	if j != nil {
		j.rawPayloads = enabled
	}
	return j
}

func (j *AttemptJournal) RecordAttempt(ctx context.Context, record core.AttemptRecord) error {
	if j == nil || j.repo == nil {
		return fmt.Errorf("sqlstore: attempt journal is not configured")
	}
	if strings.TrimSpace(record.CallID) == "" {
		return fmt.Errorf("sqlstore: attempt call id is required")
	}
	if record.Attempt <= 0 {
		return fmt.Errorf("sqlstore: attempt number must be positive")
	}
	startedAt := record.StartedAt.UTC()
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	_, err := j.repo.Create(ctx, &attemptRecord{
		ID:          uuid.NewString(),
		CallID:      strings.TrimSpace(record.CallID),
		Operation:   strings.TrimSpace(record.Operation),
		Attempt:     record.Attempt,
		Outcome:     string(record.Outcome),
		ErrorKind:   string(record.ErrorKind),
		FaultCode:   strings.TrimSpace(record.FaultCode),
		Error:       record.Error,
		RetryBudget: record.RetryBudget,
		Sent:        j.payload(record.Sent),
		Received:    j.payload(record.Received),
		DurationMS:  record.Duration.Milliseconds(),
		StartedAt:   startedAt,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}

func (j *AttemptJournal) List(ctx context.Context, filter core.AttemptFilter) (core.AttemptPage, error) {
	if j == nil || j.repo == nil {
		return core.AttemptPage{}, fmt.Errorf("sqlstore: attempt journal is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultAttemptPageSize
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("started_at DESC"),
		repository.OrderBy("attempt DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if callID := strings.TrimSpace(filter.CallID); callID != "" {
		selectors = append(selectors, repository.SelectBy("call_id", "=", callID))
	}
	if operation := strings.TrimSpace(filter.Operation); operation != "" {
		selectors = append(selectors, repository.SelectBy("operation", "=", operation))
	}
	if outcome := strings.TrimSpace(string(filter.Outcome)); outcome != "" {
		selectors = append(selectors, repository.SelectBy("outcome", "=", outcome))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("started_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("started_at", "<=", filter.To.UTC()))
	}

	records, total, err := j.repo.List(ctx, selectors...)
	if err != nil {
		return core.AttemptPage{}, err
	}
	items := make([]core.AttemptRecord, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	hasNext := offset+len(items) < total
	nextCursor := ""
	if hasNext {
		nextCursor = strconv.Itoa(offset + len(items))
	}
	return core.AttemptPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		HasNext:    hasNext,
		NextCursor: nextCursor,
	}, nil
}

// Prune deletes attempts started before cutoff.
func (j *AttemptJournal) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if j == nil || j.db == nil {
		return 0, fmt.Errorf("sqlstore: attempt journal is not configured")
	}
	res, err := j.db.NewDelete().
		Model((*attemptRecord)(nil)).
		Where("started_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (j *AttemptJournal) payload(value []byte) string {
	if j.rawPayloads {
		return string(value)
	}
	return RedactPayload(value)
}

func (r *attemptRecord) toDomain() core.AttemptRecord {
	if r == nil {
		return core.AttemptRecord{}
	}
	return core.AttemptRecord{
		CallID:      r.CallID,
		Operation:   r.Operation,
		Attempt:     r.Attempt,
		Outcome:     core.Outcome(r.Outcome),
		ErrorKind:   core.ErrorKind(r.ErrorKind),
		FaultCode:   r.FaultCode,
		Error:       r.Error,
		RetryBudget: r.RetryBudget,
		Sent:        []byte(r.Sent),
		Received:    []byte(r.Received),
		StartedAt:   r.StartedAt.UTC(),
		Duration:    time.Duration(r.DurationMS) * time.Millisecond,
	}
}
