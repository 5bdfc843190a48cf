package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	rpcsession "github.com/goliatone/go-rpcsession"
	"github.com/goliatone/go-rpcsession/adapters/gojob"
	"github.com/goliatone/go-rpcsession/adapters/gologger"
	"github.com/goliatone/go-rpcsession/migrations"
	"github.com/goliatone/go-rpcsession/security"
	sqlstore "github.com/goliatone/go-rpcsession/store/sql"
)

type journal struct {
	driver   string
	client   *persistence.Client
	factory  *sqlstore.RepositoryFactory
	sessions rpcsession.SessionStore
}

type sessionKeys struct {
	active   string
	version  int
	previous string
}

// provider returns nil when no active key is set. A previous key is bound
// to version-1 so sessions sealed before a rotation still open.
func (k sessionKeys) provider() (rpcsession.SecretProvider, error) {
	if strings.TrimSpace(k.active) == "" {
		return nil, nil
	}
	version := max(k.version, 1)
	active, err := security.NewAppKeySecretProviderFromString(k.active, security.WithVersion(version))
	if err != nil {
		return nil, fmt.Errorf("journal app key: %w", err)
	}
	if strings.TrimSpace(k.previous) == "" || version == 1 {
		return active, nil
	}
	previous, err := security.NewAppKeySecretProviderFromString(k.previous, security.WithVersion(version-1))
	if err != nil {
		return nil, fmt.Errorf("journal previous app key: %w", err)
	}
	return security.NewKeyRing(active, previous)
}

// openJournal opens the attempt journal described by the journal config
// section. It returns nil when no driver is configured. Sessions are
// persisted only when an app key is available.
func openJournal(ctx context.Context, section map[string]any, keys sessionKeys) (*journal, error) {
	dbCfg, err := cfgx.Build[sqlstore.DatabaseConfig](section,
		cfgx.WithDefaults(sqlstore.DatabaseConfig{PingTimeout: 5 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("journal config: %w", err)
	}
	if strings.TrimSpace(dbCfg.Driver) == "" {
		return nil, nil
	}

	secrets, err := keys.provider()
	if err != nil {
		return nil, err
	}

	client, err := sqlstore.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(ctx, client, dbCfg.Driver); err != nil {
		_ = client.Close()
		return nil, err
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, secrets)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	out := &journal{driver: dbCfg.Driver, client: client, factory: factory}
	if store := factory.SessionStore(); store != nil {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = time.Minute
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		cached, err := sqlstore.NewCachedSessionStore(store, cacheService)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		out.sessions = cached
	}
	return out, nil
}

func (j *journal) options() []rpcsession.Option {
	if j == nil {
		return nil
	}
	opts := []rpcsession.Option{rpcsession.WithAttemptRecorder(j.factory.AttemptJournal())}
	if j.sessions != nil {
		opts = append(opts, rpcsession.WithSessionStore(j.sessions))
	}
	return opts
}

// prune runs the journal prune job inline for attempts older than
// retention.
func (j *journal) prune(ctx context.Context, retention time.Duration, now time.Time, logger glog.Logger) (int, error) {
	msg, err := gojob.PruneMessage(retention, now)
	if err != nil {
		return 0, err
	}
	task, err := gojob.NewPruneTask(j.factory.AttemptJournal(), gojob.WithLogger(gologger.ToJobLogger(logger)))
	if err != nil {
		return 0, err
	}
	return task.Execute(ctx, msg)
}

func (j *journal) Close() error {
	if j == nil || j.client == nil {
		return nil
	}
	return j.client.Close()
}
