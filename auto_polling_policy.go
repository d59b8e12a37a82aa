package configcat

import (
	"context"
	"sync"
	"time"
)

// autoPollingPolicy fetches the config in the background every poll
// interval. Reads block until the first fetch completes, but never
// longer than the max init wait time.
type autoPollingPolicy struct {
	service   *configService
	poller    *autoPoller
	initTimer *time.Timer
}

func newAutoPollingPolicy(s *configService, interval, maxInitWaitTime time.Duration, offline bool) *autoPollingPolicy {
	policy := &autoPollingPolicy{
		service: s,
		poller: newAutoPoller(interval, func(ctx context.Context, threshold time.Time) {
			s.fetchIfOlder(ctx, threshold, false)
		}),
	}
	if offline {
		// Nothing will be fetched, so there's nothing to wait for.
		s.markInitialized()
		return policy
	}
	policy.initTimer = time.AfterFunc(maxInitWaitTime, func() {
		if s.isInitialized() {
			return
		}
		s.logger.Warnf(4200, "`maxInitWaitTime` for the very first fetch reached (%v); returning cached config", maxInitWaitTime)
		s.markInitialized()
	})
	policy.poller.start()
	return policy
}

func (policy *autoPollingPolicy) getEntry(ctx context.Context) *configEntry {
	select {
	case <-policy.service.initialized:
	case <-ctx.Done():
		return policy.service.current()
	}
	entry, _ := policy.service.fetchIfOlder(ctx, time.Time{}, true)
	return entry
}

func (policy *autoPollingPolicy) setOffline() {
	policy.poller.halt()
}

func (policy *autoPollingPolicy) setOnline() {
	policy.poller.start()
}

func (policy *autoPollingPolicy) close() {
	if policy.initTimer != nil {
		policy.initTimer.Stop()
	}
	policy.poller.close()
}

type pollerState int

const (
	pollerIdle pollerState = iota
	pollerPolling
	pollerStopped
)

// autoPoller runs poll periodically in its own goroutine.
//
// It's idle until start is called; halt takes it back to idle and
// close stops it for good. Stopping doesn't interrupt a poll that's
// already running; the poll's context is canceled, but work that it
// started may continue.
type autoPoller struct {
	interval time.Duration
	poll     func(ctx context.Context, threshold time.Time)

	mu     sync.Mutex
	state  pollerState
	cancel context.CancelFunc
}

func newAutoPoller(interval time.Duration, poll func(ctx context.Context, threshold time.Time)) *autoPoller {
	return &autoPoller{
		interval: interval,
		poll:     poll,
	}
}

func (p *autoPoller) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pollerIdle {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state = pollerPolling
	go p.run(ctx)
}

func (p *autoPoller) halt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pollerPolling {
		return
	}
	p.cancel()
	p.state = pollerIdle
}

func (p *autoPoller) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == pollerPolling {
		p.cancel()
	}
	p.state = pollerStopped
}

func (p *autoPoller) run(ctx context.Context) {
	// The first poll accepts a config that's up to one interval old,
	// so a fresh cache entry saves a fetch at startup.
	p.poll(ctx, time.Now().Add(-p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.poll(ctx, time.Now().Add(-p.interval/2))
	}
}
