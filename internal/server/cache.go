package server

import (
	"context"
	"sync"
	"time"

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

const (
	performanceTTL      = 5 * time.Minute
	invocationStaleness = 2 * time.Minute

	// invocationFetchLimit is how many invocations one refresh pulls; every
	// request is served by slicing this set, so staleness is uniform across
	// limits.
	invocationFetchLimit = 200
)

// performanceCache holds the portfolio series behind a TTL. An expired
// entry is refreshed synchronously on read; if the refresh fails the stale
// series is served rather than erroring a dashboard poll.
type performanceCache struct {
	mu        sync.Mutex
	ledger    interfaces.Ledger
	now       func() time.Time
	series    []types.SnapshotView
	fetchedAt time.Time
}

func newPerformanceCache(ledger interfaces.Ledger) *performanceCache {
	return &performanceCache{ledger: ledger, now: time.Now}
}

func (c *performanceCache) get(ctx context.Context) ([]types.SnapshotView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < performanceTTL {
		return c.series, nil
	}

	series, err := c.ledger.PortfolioSeries(ctx)
	if err != nil {
		if !c.fetchedAt.IsZero() {
			logger.WarnSkip(ctx, 1, "Performance refresh failed, serving stale series", "error", err.Error())
			return c.series, nil
		}
		return nil, err
	}
	c.series = series
	c.fetchedAt = c.now()
	return c.series, nil
}

// invocationCache serves the recent-invocation list without blocking on
// the ledger. A read past the staleness window returns the cached list
// flagged stale and kicks off one background refresh; the single-flight
// guard keeps concurrent stale reads from piling refreshes onto SQLite.
type invocationCache struct {
	mu         sync.Mutex
	ledger     interfaces.Ledger
	now        func() time.Time
	views      []types.InvocationView
	fetchedAt  time.Time
	refreshing bool
}

func newInvocationCache(ledger interfaces.Ledger) *invocationCache {
	return &invocationCache{ledger: ledger, now: time.Now}
}

// get returns up to limit invocations and whether the data is stale.
// The first call ever fetches synchronously; the lock is held across that
// fetch so concurrent cold-start requests serialize into a single ledger
// read, the same guarantee the refreshing flag gives the warm path.
func (c *invocationCache) get(ctx context.Context, limit int) ([]types.InvocationView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetchedAt.IsZero() {
		views, err := c.ledger.RecentInvocations(ctx, invocationFetchLimit)
		if err != nil {
			return nil, false, err
		}
		c.views = views
		c.fetchedAt = c.now()
		return clip(c.views, limit), false, nil
	}

	stale := c.now().Sub(c.fetchedAt) > invocationStaleness
	out := clip(c.views, limit)
	if stale && !c.refreshing {
		c.refreshing = true
		go c.refresh()
	}
	return out, stale, nil
}

func (c *invocationCache) refresh() {
	// Detached from the request; the caller already has its response.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	views, err := c.ledger.RecentInvocations(ctx, invocationFetchLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if err != nil {
		logger.Warn(ctx, "Invocation refresh failed", "error", err.Error())
		return
	}
	c.views = views
	c.fetchedAt = c.now()
}

func clip(views []types.InvocationView, limit int) []types.InvocationView {
	if len(views) > limit {
		views = views[:limit]
	}
	out := make([]types.InvocationView, len(views))
	copy(out, views)
	return out
}
