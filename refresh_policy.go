package configcat

import "context"

// refreshPolicy implements the behavior that differs between polling
// modes: how reads obtain the config and what happens in the
// background.
type refreshPolicy interface {
	// getEntry returns the entry that reads should evaluate with.
	getEntry(ctx context.Context) *configEntry
	// setOffline and setOnline are called after the offline state
	// of the service has changed.
	setOffline()
	setOnline()
	close()
}

func newRefreshPolicy(s *configService, cfg serviceConfig) refreshPolicy {
	switch cfg.pollingMode {
	case Manual:
		return newManualPollingPolicy(s)
	case Lazy:
		return newLazyLoadingPolicy(s, cfg.pollInterval)
	default:
		return newAutoPollingPolicy(s, cfg.pollInterval, cfg.maxInitWaitTime, cfg.offline)
	}
}
