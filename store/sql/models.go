package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type attemptRecord struct {
	bun.BaseModel `bun:"table:rpc_call_attempts,alias:rca"`

	ID          string    `bun:"id,pk"`
	CallID      string    `bun:"call_id,notnull"`
	Operation   string    `bun:"operation,notnull"`
	Attempt     int       `bun:"attempt,notnull"`
	Outcome     string    `bun:"outcome,notnull"`
	ErrorKind   string    `bun:"error_kind,notnull"`
	FaultCode   string    `bun:"fault_code,notnull"`
	Error       string    `bun:"error,notnull"`
	RetryBudget int       `bun:"retry_budget,notnull"`
	Sent        string    `bun:"sent,notnull"`
	Received    string    `bun:"received,notnull"`
	DurationMS  int64     `bun:"duration_ms,notnull"`
	StartedAt   time.Time `bun:"started_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:rpc_sessions,alias:rs"`

	ID              string    `bun:"id,pk"`
	Principal       string    `bun:"principal,notnull"`
	Endpoint        string    `bun:"endpoint,notnull"`
	TokenCiphertext []byte    `bun:"token_ciphertext,notnull"`
	IssuedAt        time.Time `bun:"issued_at,notnull"`
	TTLMS           int64     `bun:"ttl_ms,notnull"`
	ExpiresAt       time.Time `bun:"expires_at,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
