package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/config"
	"github.com/sells-group/phonelink/internal/db"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/identity"
	"github.com/sells-group/phonelink/internal/lookup"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/pkg/identityapi"
)

// stores bundles the opened backends for one command invocation.
type stores struct {
	Dir      directory.Store
	Accounts identity.Store
	closers  []func()
}

// Close releases every backend in reverse open order.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openDirectory opens the users directory selected by directory.driver.
func openDirectory(ctx context.Context, c *config.Config) (directory.Store, error) {
	switch c.Directory.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, c.Directory.DatabaseURL, c.Directory.Pool)
		if err != nil {
			return nil, eris.Wrap(err, "open directory")
		}
		return directory.NewPostgres(pool), nil
	case "sqlite":
		s, err := directory.NewSQLite(c.Directory.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		zap.L().Warn("using in-memory directory; changes are discarded on exit")
		return directory.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported directory driver: %s", c.Directory.Driver)
	}
}

// openIdentity opens the identity-account store selected by identity.driver.
// The returned func releases any pool it opened.
func openIdentity(ctx context.Context, c *config.Config) (identity.Store, func(), error) {
	switch c.Identity.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, c.IdentityDatabaseURL(), c.Directory.Pool)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open identity store")
		}
		s := identity.NewPostgres(pool)
		if c.Identity.HashCost > 0 {
			s.HashCost = c.Identity.HashCost
		}
		return s, pool.Close, nil
	case "remote":
		client := identityapi.NewClient(c.Identity.APIKey,
			identityapi.WithBaseURL(c.Identity.BaseURL),
			identityapi.WithRateLimit(c.Identity.RateLimit),
		)
		return identity.NewRemote(client, c.Retry.Policy()), func() {}, nil
	case "memory":
		zap.L().Warn("using in-memory identity store; accounts are discarded on exit")
		return identity.NewMemory(), func() {}, nil
	default:
		return nil, nil, eris.Errorf("unsupported identity driver: %s", c.Identity.Driver)
	}
}

// openStores opens both backends. On error nothing is left open.
func openStores(ctx context.Context, c *config.Config) (*stores, error) {
	dir, err := openDirectory(ctx, c)
	if err != nil {
		return nil, err
	}
	s := &stores{Dir: dir, closers: []func(){func() { _ = dir.Close() }}}

	accounts, closeAccounts, err := openIdentity(ctx, c)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Accounts = accounts
	s.closers = append(s.closers, closeAccounts)
	return s, nil
}

// newLookupService builds the lookup service, adding the Redis cache when
// redis.addr is configured. A Redis outage at startup disables the cache
// rather than failing the command.
func newLookupService(ctx context.Context, c *config.Config, dir directory.Store, m *metrics.Metrics) (*lookup.Service, func()) {
	opts := []lookup.Option{
		lookup.WithPlan(c.Phone.Plan()),
		lookup.WithMetrics(m),
	}
	closeFn := func() {}

	if c.Redis.Addr != "" {
		client, err := lookup.Connect(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB)
		if err != nil {
			zap.L().Warn("lookup cache disabled", zap.String("addr", c.Redis.Addr), zap.Error(err))
		} else {
			ttl := time.Duration(c.Lookup.CacheTTLSecs) * time.Second
			opts = append(opts, lookup.WithCache(lookup.NewRedisCache(client, ttl)))
			closeFn = func() { _ = client.Close() }
		}
	}

	return lookup.NewService(dir, opts...), closeFn
}
