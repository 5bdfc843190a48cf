package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	OperationLogin       = "login"
	OperationQuery       = "query"
	OperationQueryMore   = "queryMore"
	OperationCreate      = "create"
	OperationUpdate      = "update"
	OperationDelete      = "delete"
	OperationExecute     = "execute"
	OperationSubscribe   = "subscribe"
	OperationAmend       = "amend"
	OperationGenerate    = "generate"
	OperationGetUserInfo = "getUserInfo"
)

// CallOptionSingleTransaction asks the remote service to process a batch
// of records atomically.
const CallOptionSingleTransaction = "useSingleTransaction"

type Credentials struct {
	Principal    string
	Secret       string
	EndpointHint string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Principal) == "" {
		return fmt.Errorf("core: credentials principal is required")
	}
	return nil
}

// Session is an authenticated remote session. The zero value is an absent
// session.
type Session struct {
	Token     string
	IssuedAt  time.Time
	TTL       time.Duration
	ExpiresAt time.Time
}

func NewSession(token string, issuedAt time.Time, ttl time.Duration) Session {
	return Session{
		Token:     token,
		IssuedAt:  issuedAt,
		TTL:       ttl,
		ExpiresAt: issuedAt.Add(ttl),
	}
}

func (s Session) IsZero() bool {
	return strings.TrimSpace(s.Token) == ""
}

// Expired reports whether the session can no longer be used at now.
// A session is valid strictly before its expiry instant.
func (s Session) Expired(now time.Time) bool {
	if s.IsZero() {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

type SessionKey struct {
	Principal string
	Endpoint  string
}

func (k SessionKey) String() string {
	return strings.TrimSpace(k.Principal) + "@" + strings.TrimSpace(k.Endpoint)
}

type Arg struct {
	Name  string
	Value any
}

func NamedArg(name string, value any) Arg {
	return Arg{Name: name, Value: value}
}

type CallOption struct {
	Name  string
	Value any
}

// CallDecoration is attached to every remote call: the session token and
// the active call options.
type CallDecoration struct {
	SessionToken string
	Options      []CallOption
}

func (d CallDecoration) IsEmpty() bool {
	return strings.TrimSpace(d.SessionToken) == "" && len(d.Options) == 0
}

func (d CallDecoration) HasOption(name string) bool {
	for _, option := range d.Options {
		if option.Name == name {
			return true
		}
	}
	return false
}

type Invocation struct {
	Operation  string
	Args       []Arg
	Decoration CallDecoration
	CallID     string
	Attempt    int
}

// Exchange holds the raw bytes of the last request and response on the wire.
type Exchange struct {
	Sent     []byte
	Received []byte
}

// Response is what an Invoker returns for a dispatched call. Exchange is
// populated on errors too, as far as the call progressed.
type Response struct {
	Payload    any
	Malformed  bool
	StatusCode int
	Exchange   Exchange
}

// Fault is a structured error reported by the remote service.
type Fault struct {
	Code    string
	Message string
	Detail  string
}

func (f *Fault) Error() string {
	if f == nil {
		return "remote fault"
	}
	code := strings.TrimSpace(f.Code)
	message := strings.TrimSpace(f.Message)
	switch {
	case code != "" && message != "":
		return fmt.Sprintf("remote fault %s: %s", code, message)
	case code != "":
		return "remote fault " + code
	case message != "":
		return "remote fault: " + message
	default:
		return "remote fault"
	}
}

type Result struct {
	Operation string
	CallID    string
	Payload   any
	Attempts  int
	Exchange  Exchange
}

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeMalformed      Outcome = "malformed_response"
	OutcomeInvalidSession Outcome = "invalid_session"
	OutcomeFault          Outcome = "remote_fault"
	OutcomeTransportError Outcome = "transport_error"
)

func (o Outcome) Retryable() bool {
	return o == OutcomeMalformed || o == OutcomeInvalidSession
}

// CallAttemptState tracks one logical call across its physical attempts.
type CallAttemptState struct {
	CallID      string
	Attempt     int
	LastOutcome Outcome
}

// AttemptRecord describes one physical dispatch of a logical call.
type AttemptRecord struct {
	CallID      string
	Operation   string
	Attempt     int
	Outcome     Outcome
	ErrorKind   ErrorKind
	FaultCode   string
	Error       string
	RetryBudget int
	Sent        []byte
	Received    []byte
	StartedAt   time.Time
	Duration    time.Duration
}

type AttemptFilter struct {
	CallID    string
	Operation string
	Outcome   Outcome
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

type AttemptPage struct {
	Items      []AttemptRecord
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

type sessionTokenCarrier interface {
	SessionToken() string
}

// SessionTokenFrom extracts a session token from a decoded login payload.
func SessionTokenFrom(payload any) string {
	switch typed := payload.(type) {
	case nil:
		return ""
	case sessionTokenCarrier:
		return strings.TrimSpace(typed.SessionToken())
	case string:
		return strings.TrimSpace(typed)
	case map[string]string:
		for _, key := range []string{"Session", "session"} {
			if value := strings.TrimSpace(typed[key]); value != "" {
				return value
			}
		}
	case map[string]any:
		for _, key := range []string{"Session", "session"} {
			if value, ok := typed[key].(string); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}
