package query

import (
	"context"

	"github.com/goliatone/go-rpcsession/core"
)

// RemoteReader is the read-only subset of core.Client.
type RemoteReader interface {
	Query(ctx context.Context, queryString string) (core.Result, error)
	QueryMore(ctx context.Context, queryLocator string) (core.Result, error)
	GetUserInfo(ctx context.Context) (core.Result, error)
}

type SessionReader interface {
	Session() (core.Session, bool)
}

type AttemptReader interface {
	List(ctx context.Context, filter core.AttemptFilter) (core.AttemptPage, error)
}

type QueryQuery struct {
	reader RemoteReader
}

func NewQueryQuery(reader RemoteReader) *QueryQuery {
	return &QueryQuery{reader: reader}
}

func (q *QueryQuery) Query(ctx context.Context, msg QueryMessage) (core.Result, error) {
	if q == nil || q.reader == nil {
		return core.Result{}, queryDependencyError("query: remote reader is required")
	}
	return q.reader.Query(ctx, msg.QueryString)
}

type QueryMoreQuery struct {
	reader RemoteReader
}

func NewQueryMoreQuery(reader RemoteReader) *QueryMoreQuery {
	return &QueryMoreQuery{reader: reader}
}

func (q *QueryMoreQuery) Query(ctx context.Context, msg QueryMoreMessage) (core.Result, error) {
	if q == nil || q.reader == nil {
		return core.Result{}, queryDependencyError("query: remote reader is required")
	}
	return q.reader.QueryMore(ctx, msg.QueryLocator)
}

type GetUserInfoQuery struct {
	reader RemoteReader
}

func NewGetUserInfoQuery(reader RemoteReader) *GetUserInfoQuery {
	return &GetUserInfoQuery{reader: reader}
}

func (q *GetUserInfoQuery) Query(ctx context.Context, _ GetUserInfoMessage) (core.Result, error) {
	if q == nil || q.reader == nil {
		return core.Result{}, queryDependencyError("query: remote reader is required")
	}
	return q.reader.GetUserInfo(ctx)
}

type CurrentSessionQuery struct {
	reader SessionReader
}

func NewCurrentSessionQuery(reader SessionReader) *CurrentSessionQuery {
	return &CurrentSessionQuery{reader: reader}
}

// Query returns the zero session when none is held.
func (q *CurrentSessionQuery) Query(_ context.Context, _ CurrentSessionMessage) (core.Session, error) {
	if q == nil || q.reader == nil {
		return core.Session{}, queryDependencyError("query: session reader is required")
	}
	session, _ := q.reader.Session()
	return session, nil
}

type ListAttemptsQuery struct {
	reader AttemptReader
}

func NewListAttemptsQuery(reader AttemptReader) *ListAttemptsQuery {
	return &ListAttemptsQuery{reader: reader}
}

func (q *ListAttemptsQuery) Query(ctx context.Context, msg ListAttemptsMessage) (core.AttemptPage, error) {
	if q == nil || q.reader == nil {
		return core.AttemptPage{}, queryDependencyError("query: attempt reader is required")
	}
	return q.reader.List(ctx, msg.Filter)
}
