package configcat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"golang.org/x/sync/errgroup"

	"github.com/configcat/go-sdk/v9/configcatcache"
)

const testServiceKey = "test-sdk-key"

func newTestService(t testing.TB, cfg serviceConfig) (*configService, *testLogger) {
	logger := newTestLogger(t)
	if cfg.sdkKey == "" {
		cfg.sdkKey = testServiceKey
	}
	if cfg.pollInterval == 0 {
		cfg.pollInterval = time.Minute
	}
	s := newConfigService(cfg, newLeveledLogger(logger, LogLevelDebug, cfg.hooks))
	t.Cleanup(s.close)
	return s, logger
}

// configBody returns a config JSON holding the string flag "flag" with
// the given value.
func configBody(value string) string {
	return marshalJSON(&ConfigJson{Settings: map[string]*Setting{
		"flag": stringSetting(value, "v-"+value),
	}})
}

func flagValue(settings map[string]*Setting) string {
	s := settings["flag"]
	if s == nil || s.Value == nil || s.Value.StringValue == nil {
		return ""
	}
	return *s.Value.StringValue
}

func cachePayload(value, etag string, fetchTime time.Time) []byte {
	return configcatcache.CacheSegmentsToBytes(fetchTime, etag, []byte(configBody(value)))
}

// hookCounter counts hook invocations from any goroutine.
type hookCounter struct {
	changed atomic.Int32
	ready   atomic.Int32
	errors  atomic.Int32
}

func (h *hookCounter) hooks() *Hooks {
	return &Hooks{
		OnConfigChanged: func(map[string]*Setting) {
			h.changed.Add(1)
		},
		OnClientReady: func() {
			h.ready.Add(1)
		},
		OnError: func(error) {
			h.errors.Add(1)
		},
	}
}

// waitFor polls cond until it's true or the timeout expires.
func waitFor(c *qt.C, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			c.Fatalf("condition not satisfied after %v", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceManualWithEmptyCache(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       newCustomCache(),
		pollingMode: Manual,
	})
	settings, fetchTime := s.getSettings(context.Background())
	c.Assert(settings, qt.IsNil)
	c.Assert(fetchTime.IsZero(), qt.IsTrue)
	c.Assert(fetcher.fetchCount(), qt.Equals, 0)

	fetcher.setBody(configBody("v1"), "e1")
	before := time.Now()
	res := s.refresh(context.Background())
	c.Assert(res, qt.Equals, RefreshResult{Success: true})

	settings, fetchTime = s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
	c.Assert(fetchTime.Before(before), qt.IsFalse)
	c.Assert(fetchTime.After(time.Now()), qt.IsFalse)
	c.Assert(fetcher.fetchCount(), qt.Equals, 1)
	c.Assert(fetcher.etags, qt.DeepEquals, []string{""})
}

func TestServiceRefreshPersistsToCache(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	fetcher.setBody(configBody("v1"), "e1")
	cache := newCustomCache()
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       cache,
		pollingMode: Manual,
	})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)

	items := cache.allItems()
	c.Assert(items, qt.HasLen, 1)
	payload, ok := items[cacheKey(testServiceKey)]
	c.Assert(ok, qt.IsTrue)
	fetchTime, etag, body, err := configcatcache.CacheSegmentsFromBytes(payload)
	c.Assert(err, qt.IsNil)
	c.Assert(etag, qt.Equals, "e1")
	c.Assert(string(body), qt.Equals, configBody("v1"))
	c.Assert(fetchTime.UnixMilli(), qt.Equals, s.current().fetchTime.UnixMilli())
}

func TestServiceSingleFlight(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{block: make(chan struct{})}
	fetcher.setBody(configBody("v1"), "e1")
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
	})

	const n = 20
	results := make([]RefreshResult, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			results[i] = s.refresh(context.Background())
			return results[i].Err
		})
	}
	waitFor(c, 5*time.Second, func() bool {
		return fetcher.fetchCount() == 1
	})
	// Give every caller the chance to join the fetch in flight.
	time.Sleep(100 * time.Millisecond)
	close(fetcher.block)
	c.Assert(g.Wait(), qt.IsNil)
	c.Assert(fetcher.fetchCount(), qt.Equals, 1)
	for _, res := range results {
		c.Assert(res.Success, qt.IsTrue)
	}
	settings, _ := s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
}

func TestServiceOffline(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	fetcher.setBody(configBody("v1"), "e1")
	s, logger := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
		offline:     true,
	})
	c.Assert(s.isOffline(), qt.IsTrue)
	res := s.refresh(context.Background())
	c.Assert(res.Success, qt.IsFalse)
	c.Assert(res.Err, qt.Equals, ErrOffline)
	c.Assert(fetcher.fetchCount(), qt.Equals, 0)

	s.setOnline()
	c.Assert(s.isOffline(), qt.IsFalse)
	c.Assert(logger.count("[5200] switched to ONLINE mode"), qt.Equals, 1)
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	c.Assert(fetcher.fetchCount(), qt.Equals, 1)

	s.setOffline()
	s.setOffline()
	c.Assert(logger.count("[5200] switched to OFFLINE mode"), qt.Equals, 1)
	// Reads still serve the current config.
	settings, _ := s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
}

func TestServiceSetOnlineAfterClose(t *testing.T) {
	c := qt.New(t)
	s, _ := newTestService(c, serviceConfig{
		fetcher:     &fakeFetcher{},
		pollingMode: Manual,
		offline:     true,
	})
	s.close()
	s.setOnline()
	c.Assert(s.isOffline(), qt.IsTrue)
}

func TestServiceNotModifiedBumpsFetchTime(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	fetcher.setBody(configBody("v1"), "e1")
	var counter hookCounter
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
		hooks:       counter.hooks(),
	})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	first := s.current()
	c.Assert(counter.changed.Load(), qt.Equals, int32(1))

	time.Sleep(10 * time.Millisecond)
	fetcher.setResponse(FetchResponse{Status: NotModified})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	second := s.current()
	c.Assert(second.fetchTime.After(first.fetchTime), qt.IsTrue)
	c.Assert(second.etag, qt.Equals, "e1")
	c.Assert(second.root, qt.Equals, first.root)
	c.Assert(fetcher.etags, qt.DeepEquals, []string{"", "e1"})
	c.Assert(counter.changed.Load(), qt.Equals, int32(1))
}

func TestServiceFetchFailure(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	fetcher.setBody(configBody("v1"), "e1")
	var counter hookCounter
	s, logger := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
		hooks:       counter.hooks(),
	})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	first := s.current()

	time.Sleep(10 * time.Millisecond)
	fetcher.setResponse(fetchFailure(errors.New("network is down"), true))
	res := s.refresh(context.Background())
	c.Assert(res.Success, qt.IsFalse)
	c.Assert(res.Err, qt.ErrorMatches, "network is down")
	// A transient failure doesn't touch the current config.
	c.Assert(s.current(), qt.Equals, first)
	c.Assert(logger.count("[1100] config JSON fetch failed: network is down"), qt.Equals, 1)
	c.Assert(counter.errors.Load(), qt.Equals, int32(1))

	fetcher.setResponse(fetchFailure(errors.New("forbidden"), false))
	res = s.refresh(context.Background())
	c.Assert(res.Err, qt.ErrorMatches, "forbidden")
	// A permanent failure keeps the config but counts as a fetch.
	c.Assert(s.current().root, qt.Equals, first.root)
	c.Assert(s.current().fetchTime.After(first.fetchTime), qt.IsTrue)
}

func TestServiceFailureWithoutConfig(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	fetcher.setResponse(fetchFailure(errors.New("forbidden"), false))
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
	})
	c.Assert(s.refresh(context.Background()).Err, qt.ErrorMatches, "forbidden")
	c.Assert(s.current().isEmpty(), qt.IsTrue)
}

func TestServiceInvalidBody(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{}
	fetcher.setBody("{", "e1")
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
	})
	res := s.refresh(context.Background())
	c.Assert(res.Err, qt.ErrorMatches, "fetched config JSON is invalid: .*")
	var perr *ParseError
	c.Assert(res.Err, qt.ErrorAs, &perr)
	c.Assert(s.current().isEmpty(), qt.IsTrue)
}

func TestServiceAdoptsCachedConfig(t *testing.T) {
	c := qt.New(t)
	cache := newCustomCache()
	key := cacheKey(testServiceKey)
	cache.Set(context.Background(), key, cachePayload("v1", "e1", time.Now().Add(-time.Hour)))

	fetcher := &fakeFetcher{}
	var counter hookCounter
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       cache,
		pollingMode: Manual,
		hooks:       counter.hooks(),
	})
	settings, _ := s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
	c.Assert(counter.changed.Load(), qt.Equals, int32(1))
	settings, _ = s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
	c.Assert(counter.changed.Load(), qt.Equals, int32(1))

	// Another client stores a newer config.
	cache.Set(context.Background(), key, cachePayload("v2", "e2", time.Now()))
	res := s.refreshIfOlder(context.Background(), time.Now().Add(-time.Minute))
	c.Assert(res.Success, qt.IsTrue)
	settings, _ = s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v2")
	c.Assert(counter.changed.Load(), qt.Equals, int32(2))
	c.Assert(fetcher.fetchCount(), qt.Equals, 0)
}

func TestServiceFetchUsesCachedETag(t *testing.T) {
	c := qt.New(t)
	cache := newCustomCache()
	cache.Set(context.Background(), cacheKey(testServiceKey), cachePayload("v1", "e1", time.Now().Add(-time.Hour)))
	fetcher := &fakeFetcher{}
	fetcher.setResponse(FetchResponse{Status: NotModified})
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       cache,
		pollingMode: Manual,
	})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	c.Assert(fetcher.etags, qt.DeepEquals, []string{"e1"})
	settings, fetchTime := s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
	c.Assert(time.Since(fetchTime) < time.Minute, qt.IsTrue)
}

func TestServiceMalformedCacheIsMiss(t *testing.T) {
	c := qt.New(t)
	cache := newCustomCache()
	cache.Set(context.Background(), cacheKey(testServiceKey), []byte("not a cache entry"))
	s, logger := newTestService(c, serviceConfig{
		fetcher:     &fakeFetcher{},
		cache:       cache,
		pollingMode: Manual,
	})
	settings, _ := s.getSettings(context.Background())
	c.Assert(settings, qt.IsNil)
	c.Assert(logger.count("WARN: [2200] ignoring malformed cache entry"), qt.Equals, 1)
}

func TestServiceCacheReadError(t *testing.T) {
	c := qt.New(t)
	cache := newCustomCache()
	cache.setGetError(fmt.Errorf("cache failure"))
	fetcher := &fakeFetcher{}
	fetcher.setBody(configBody("v1"), "e1")
	var counter hookCounter
	s, logger := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       cache,
		pollingMode: Manual,
		hooks:       counter.hooks(),
	})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	c.Assert(logger.count("ERROR: [2200] error occurred while reading the cache: cache failure"), qt.Equals, 1)
	c.Assert(counter.errors.Load(), qt.Equals, int32(1))
	settings, _ := s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
}

func TestServiceCacheWriteError(t *testing.T) {
	c := qt.New(t)
	cache := newCustomCache()
	cache.setSetError(fmt.Errorf("disk full"))
	fetcher := &fakeFetcher{}
	fetcher.setBody(configBody("v1"), "e1")
	var counter hookCounter
	s, logger := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       cache,
		pollingMode: Manual,
		hooks:       counter.hooks(),
	})
	c.Assert(s.refresh(context.Background()).Success, qt.IsTrue)
	c.Assert(logger.count("ERROR: [2201] error occurred while writing the cache: disk full"), qt.Equals, 1)
	c.Assert(counter.errors.Load(), qt.Equals, int32(1))
	c.Assert(cache.allItems(), qt.HasLen, 0)
	settings, _ := s.getSettings(context.Background())
	c.Assert(flagValue(settings), qt.Equals, "v1")
}

func TestServiceContextDoneDuringFetch(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{block: make(chan struct{})}
	fetcher.setBody(configBody("v1"), "e1")
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		pollingMode: Manual,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := s.refresh(ctx)
	c.Assert(res.Err, qt.Equals, context.DeadlineExceeded)
	c.Assert(s.current().isEmpty(), qt.IsTrue)

	// The fetch isn't abandoned; its result is applied when it completes.
	close(fetcher.block)
	waitFor(c, 5*time.Second, func() bool {
		return !s.current().isEmpty()
	})
	c.Assert(fetcher.fetchCount(), qt.Equals, 1)
}

func TestServiceFetchCompletesAfterClose(t *testing.T) {
	c := qt.New(t)
	fetcher := &fakeFetcher{block: make(chan struct{})}
	fetcher.setBody(configBody("v1"), "e1")
	cache := newCustomCache()
	s, _ := newTestService(c, serviceConfig{
		fetcher:     fetcher,
		cache:       cache,
		pollingMode: Manual,
	})
	done := make(chan RefreshResult)
	go func() {
		done <- s.refresh(context.Background())
	}()
	waitFor(c, 5*time.Second, func() bool {
		return fetcher.fetchCount() == 1
	})
	s.close()
	close(fetcher.block)
	c.Assert((<-done).Success, qt.IsTrue)
	c.Assert(cache.allItems(), qt.HasLen, 1)
}

func TestContentChanged(t *testing.T) {
	c := qt.New(t)
	a := &configEntry{root: &ConfigJson{}, etag: "a", body: []byte("x")}
	c.Assert(contentChanged(emptyEntry, a), qt.IsTrue)
	c.Assert(contentChanged(a, &configEntry{root: &ConfigJson{}, etag: "a", body: []byte("y")}), qt.IsFalse)
	c.Assert(contentChanged(a, &configEntry{root: &ConfigJson{}, etag: "b", body: []byte("x")}), qt.IsTrue)
	noTag := &configEntry{root: &ConfigJson{}, body: []byte("x")}
	c.Assert(contentChanged(noTag, &configEntry{root: &ConfigJson{}, body: []byte("x")}), qt.IsFalse)
	c.Assert(contentChanged(noTag, &configEntry{root: &ConfigJson{}, body: []byte("y")}), qt.IsTrue)
}
