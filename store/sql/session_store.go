package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-rpcsession/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionStore keeps one session per principal and endpoint. Tokens are
// sealed with the configured secret provider before they are written.
type SessionStore struct {
	db      *bun.DB
	secrets core.SecretProvider
	now     func() time.Time
}

func NewSessionStore(db *bun.DB, secrets core.SecretProvider) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	return &SessionStore{
		db:      db,
		secrets: secrets,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SessionStore) Load(ctx context.Context, key core.SessionKey) (core.Session, error) {
	if s == nil || s.db == nil {
		return core.Session{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	key = normalizeSessionKey(key)
	record := &sessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("principal = ?", key.Principal).
		Where("endpoint = ?", key.Endpoint).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.ErrSessionNotFound
	}
	if err != nil {
		return core.Session{}, err
	}
	token, err := s.secrets.Decrypt(ctx, record.TokenCiphertext)
	if err != nil {
		return core.Session{}, fmt.Errorf("sqlstore: open session token: %w", err)
	}
	return core.Session{
		Token:     string(token),
		IssuedAt:  record.IssuedAt.UTC(),
		TTL:       time.Duration(record.TTLMS) * time.Millisecond,
		ExpiresAt: record.ExpiresAt.UTC(),
	}, nil
}

// Save replaces the stored session for key.
func (s *SessionStore) Save(ctx context.Context, key core.SessionKey, session core.Session) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	key = normalizeSessionKey(key)
	if key.Principal == "" {
		return fmt.Errorf("sqlstore: session principal is required")
	}
	if session.IsZero() {
		return fmt.Errorf("sqlstore: session token is required")
	}
	sealed, err := s.secrets.Encrypt(ctx, []byte(session.Token))
	if err != nil {
		return fmt.Errorf("sqlstore: seal session token: %w", err)
	}
	now := s.now()
	record := &sessionRecord{
		ID:              uuid.NewString(),
		Principal:       key.Principal,
		Endpoint:        key.Endpoint,
		TokenCiphertext: sealed,
		IssuedAt:        session.IssuedAt.UTC(),
		TTLMS:           session.TTL.Milliseconds(),
		ExpiresAt:       session.ExpiresAt.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*sessionRecord)(nil)).
			Where("principal = ?", key.Principal).
			Where("endpoint = ?", key.Endpoint).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

func (s *SessionStore) Delete(ctx context.Context, key core.SessionKey) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	key = normalizeSessionKey(key)
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("principal = ?", key.Principal).
		Where("endpoint = ?", key.Endpoint).
		Exec(ctx)
	return err
}

func normalizeSessionKey(key core.SessionKey) core.SessionKey {
	return core.SessionKey{
		Principal: strings.TrimSpace(key.Principal),
		Endpoint:  strings.TrimSpace(key.Endpoint),
	}
}
