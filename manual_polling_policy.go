package configcat

import (
	"context"
	"time"
)

// manualPollingPolicy never fetches by itself; the config changes only
// when Refresh is called or another client updates the shared cache.
type manualPollingPolicy struct {
	service *configService
}

func newManualPollingPolicy(s *configService) *manualPollingPolicy {
	s.markInitialized()
	return &manualPollingPolicy{service: s}
}

func (policy *manualPollingPolicy) getEntry(ctx context.Context) *configEntry {
	entry, _ := policy.service.fetchIfOlder(ctx, time.Time{}, true)
	return entry
}

func (policy *manualPollingPolicy) setOffline() {}

func (policy *manualPollingPolicy) setOnline() {}

func (policy *manualPollingPolicy) close() {}
