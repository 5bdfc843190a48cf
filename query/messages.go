package query

import (
	"strings"

	"github.com/goliatone/go-rpcsession/core"
)

const (
	TypeQuery          = "rpcsession.query.query"
	TypeQueryMore      = "rpcsession.query.query_more"
	TypeGetUserInfo    = "rpcsession.query.user_info"
	TypeCurrentSession = "rpcsession.query.session.current"
	TypeListAttempts   = "rpcsession.query.attempts.list"
)

type QueryMessage struct {
	QueryString string
}

func (QueryMessage) Type() string { return TypeQuery }

func (m QueryMessage) Validate() error {
	if strings.TrimSpace(m.QueryString) == "" {
		return queryValidationError("query_string", "query string is required")
	}
	return nil
}

type QueryMoreMessage struct {
	QueryLocator string
}

func (QueryMoreMessage) Type() string { return TypeQueryMore }

func (m QueryMoreMessage) Validate() error {
	if strings.TrimSpace(m.QueryLocator) == "" {
		return queryValidationError("query_locator", "query locator is required")
	}
	return nil
}

type GetUserInfoMessage struct{}

func (GetUserInfoMessage) Type() string { return TypeGetUserInfo }

func (GetUserInfoMessage) Validate() error { return nil }

type CurrentSessionMessage struct{}

func (CurrentSessionMessage) Type() string { return TypeCurrentSession }

func (CurrentSessionMessage) Validate() error { return nil }

type ListAttemptsMessage struct {
	Filter core.AttemptFilter
}

func (ListAttemptsMessage) Type() string { return TypeListAttempts }

func (m ListAttemptsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	return nil
}
