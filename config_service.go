package configcat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// farFuture is a fetch-time threshold that every entry is older than.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// RefreshResult reports the outcome of a refresh.
type RefreshResult struct {
	Success bool
	Err     error
}

// configService keeps the current config entry up to date. It
// coordinates the persistent cache with the fetcher, making sure that
// there's never more than one fetch in flight, and fires the config
// related hooks.
type configService struct {
	fetcher Fetcher
	store   *configStore
	logger  *leveledLogger
	hooks   *Hooks
	policy  refreshPolicy

	mu       sync.Mutex
	entry    *configEntry
	inflight *fetchCall
	offline  bool
	closed   bool

	// initialized is closed when the first fetch attempt completes or
	// when the client gives up waiting for it.
	initialized chan struct{}
	initOnce    sync.Once
}

type serviceConfig struct {
	fetcher         Fetcher
	cache           ConfigCache
	sdkKey          string
	pollingMode     PollingMode
	pollInterval    time.Duration
	maxInitWaitTime time.Duration
	offline         bool
	hooks           *Hooks
}

func newConfigService(cfg serviceConfig, logger *leveledLogger) *configService {
	s := &configService{
		fetcher:     cfg.fetcher,
		store:       newConfigStore(cfg.cache, cfg.sdkKey),
		logger:      logger,
		hooks:       cfg.hooks,
		entry:       emptyEntry,
		offline:     cfg.offline,
		initialized: make(chan struct{}),
	}
	s.policy = newRefreshPolicy(s, cfg)
	return s
}

// getSettings returns the settings of the current config and the time
// they were fetched. It returns nil and the zero time when there's no
// config yet.
func (s *configService) getSettings(ctx context.Context) (map[string]*Setting, time.Time) {
	entry := s.getEntry(ctx)
	if entry.isEmpty() {
		return nil, time.Time{}
	}
	return entry.settings(), entry.fetchTime
}

// getEntry returns the entry to evaluate with, fetching it first if the
// polling mode requires that.
func (s *configService) getEntry(ctx context.Context) *configEntry {
	return s.policy.getEntry(ctx)
}

// refresh fetches the latest config regardless of the age of the
// current one.
func (s *configService) refresh(ctx context.Context) RefreshResult {
	return s.refreshIfOlder(ctx, farFuture)
}

// refreshIfOlder fetches the config if the current one was fetched
// before threshold.
func (s *configService) refreshIfOlder(ctx context.Context, threshold time.Time) RefreshResult {
	_, err := s.fetchIfOlder(ctx, threshold, false)
	return RefreshResult{
		Success: err == nil,
		Err:     err,
	}
}

// current returns the current entry without touching the cache or
// the network.
func (s *configService) current() *configEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry
}

// fetchIfOlder returns an entry fetched after threshold, fetching one
// if needed. If preferCache is true and the service is initialized, the
// current entry is returned without fetching.
//
// When ctx is done while a fetch is in progress, the fetch isn't
// aborted; its result is applied when it completes.
func (s *configService) fetchIfOlder(ctx context.Context, threshold time.Time, preferCache bool) (*configEntry, error) {
	s.mu.Lock()
	var changed *configEntry
	var cacheErr error
	if s.entry.isEmpty() || !s.entry.fetchTime.After(threshold) {
		changed, cacheErr = s.syncFromCache(ctx)
	}
	entry := s.entry
	switch {
	case !entry.isEmpty() && entry.fetchTime.After(threshold):
		s.mu.Unlock()
		s.logCacheReadError(cacheErr)
		s.configChanged(changed)
		s.markInitialized()
		return entry, nil
	case preferCache && s.isInitialized():
		s.mu.Unlock()
		s.logCacheReadError(cacheErr)
		s.configChanged(changed)
		return entry, nil
	case s.offline:
		s.mu.Unlock()
		s.logCacheReadError(cacheErr)
		s.configChanged(changed)
		return entry, ErrOffline
	}
	call := s.inflight
	if call == nil {
		call = newFetchCall()
		s.inflight = call
		etag := entry.etag
		if entry.isEmpty() {
			etag = ""
		}
		go s.fetch(call, etag)
	}
	s.mu.Unlock()
	s.logCacheReadError(cacheErr)
	s.configChanged(changed)

	select {
	case <-call.done:
		return call.entry, call.err
	case <-ctx.Done():
		return s.current(), ctx.Err()
	}
}

// syncFromCache adopts the cached entry when it differs from the
// current one. It returns the adopted entry if its content changed.
// Called with s.mu held; the caller logs the returned error once the
// lock is released.
func (s *configService) syncFromCache(ctx context.Context) (*configEntry, error) {
	cached, err := s.store.get(ctx)
	if cached.isEmpty() {
		return nil, err
	}
	switch {
	case cached.etag != s.entry.etag:
		s.entry = cached
		return cached, nil
	case cached.fetchTime.After(s.entry.fetchTime):
		s.entry = cached
	}
	return nil, nil
}

func (s *configService) logCacheReadError(err error) {
	if err == nil {
		return
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		s.logger.Warnf(2200, "ignoring malformed cache entry: %v", err)
		return
	}
	s.logger.Errorf(2200, "error occurred while reading the cache: %w", err)
}

// fetch runs the fetcher and applies its result. It's started by
// fetchIfOlder; there's never more than one running at a time.
func (s *configService) fetch(call *fetchCall, etag string) {
	s.logger.Debugf("fetching config JSON (etag %q)", etag)
	resp := s.fetcher.Fetch(context.Background(), etag)

	ctx := context.Background()
	s.mu.Lock()
	prev := s.entry
	var changed *configEntry
	var err, cacheErr error
	switch resp.Status {
	case Fetched:
		entry, perr := resp.parsedEntry()
		if perr != nil {
			err = fmt.Errorf("fetched config JSON is invalid: %w", perr)
			break
		}
		s.entry = entry
		cacheErr = s.store.set(ctx, entry)
		if contentChanged(prev, entry) {
			changed = entry
		}
	case NotModified:
		if !prev.isEmpty() {
			s.entry = prev.withFetchTime(time.Now())
			cacheErr = s.store.set(ctx, s.entry)
		}
	default:
		err = resp.Err
		if err == nil {
			err = fmt.Errorf("unknown fetch failure")
		}
		if !resp.IsTransientError && !prev.isEmpty() {
			s.entry = prev.withFetchTime(time.Now())
			cacheErr = s.store.set(ctx, s.entry)
		}
	}
	s.inflight = nil
	entry := s.entry
	s.mu.Unlock()

	if cacheErr != nil {
		s.logger.Errorf(2201, "error occurred while writing the cache: %w", cacheErr)
	}
	if err != nil {
		s.logger.Errorf(1100, "config JSON fetch failed: %w", err)
	}
	s.configChanged(changed)
	s.markInitialized()
	call.complete(entry, err)
}

func contentChanged(prev, next *configEntry) bool {
	if prev.isEmpty() {
		return true
	}
	if next.etag != "" || prev.etag != "" {
		return next.etag != prev.etag
	}
	return !bytes.Equal(prev.body, next.body)
}

func (s *configService) configChanged(entry *configEntry) {
	if entry == nil {
		return
	}
	s.hooks.invokeOnConfigChanged(s.logger, entry.settings())
}

// markInitialized releases everyone waiting for the first config. It
// fires OnClientReady the first time it's called.
func (s *configService) markInitialized() {
	s.initOnce.Do(func() {
		close(s.initialized)
		s.hooks.invokeOnClientReady(s.logger)
	})
}

func (s *configService) isInitialized() bool {
	select {
	case <-s.initialized:
		return true
	default:
		return false
	}
}

func (s *configService) setOffline() {
	s.mu.Lock()
	if s.offline {
		s.mu.Unlock()
		return
	}
	s.offline = true
	s.mu.Unlock()
	s.logger.Infof(5200, "switched to OFFLINE mode")
	s.policy.setOffline()
}

func (s *configService) setOnline() {
	s.mu.Lock()
	if !s.offline || s.closed {
		s.mu.Unlock()
		return
	}
	s.offline = false
	s.mu.Unlock()
	s.logger.Infof(5200, "switched to ONLINE mode")
	s.policy.setOnline()
}

func (s *configService) isOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// close stops background polling. A fetch in progress is allowed to
// complete and its result is still applied.
func (s *configService) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.policy.close()
}
