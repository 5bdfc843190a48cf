package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-rpcsession/core"
)

var (
	_ gocmd.Querier[QueryMessage, core.Result]             = (*QueryQuery)(nil)
	_ gocmd.Querier[QueryMoreMessage, core.Result]         = (*QueryMoreQuery)(nil)
	_ gocmd.Querier[GetUserInfoMessage, core.Result]       = (*GetUserInfoQuery)(nil)
	_ gocmd.Querier[CurrentSessionMessage, core.Session]   = (*CurrentSessionQuery)(nil)
	_ gocmd.Querier[ListAttemptsMessage, core.AttemptPage] = (*ListAttemptsQuery)(nil)
	_ RemoteReader                                         = (*core.Client)(nil)
	_ SessionReader                                        = (*core.Client)(nil)
)
