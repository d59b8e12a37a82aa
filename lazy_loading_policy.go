package configcat

import (
	"context"
	"time"
)

// lazyLoadingPolicy fetches the config on a read when the current one
// is older than the cache time to live.
type lazyLoadingPolicy struct {
	service  *configService
	cacheTTL time.Duration
}

func newLazyLoadingPolicy(s *configService, cacheTTL time.Duration) *lazyLoadingPolicy {
	s.markInitialized()
	return &lazyLoadingPolicy{
		service:  s,
		cacheTTL: cacheTTL,
	}
}

func (policy *lazyLoadingPolicy) getEntry(ctx context.Context) *configEntry {
	entry, err := policy.service.fetchIfOlder(ctx, time.Now().Add(-policy.cacheTTL), false)
	if err != nil && err != ErrOffline {
		policy.service.logger.Debugf("lazy refresh failed: %v", err)
	}
	return entry
}

func (policy *lazyLoadingPolicy) setOffline() {}

func (policy *lazyLoadingPolicy) setOnline() {}

func (policy *lazyLoadingPolicy) close() {}
