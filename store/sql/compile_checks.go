package sqlstore

import "github.com/goliatone/go-rpcsession/core"

var (
	_ core.AttemptRecorder = (*AttemptJournal)(nil)
	_ core.SessionStore    = (*SessionStore)(nil)
	_ core.SessionStore    = (*CachedSessionStore)(nil)
)
