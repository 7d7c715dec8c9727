package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/coursemate-backend/internal/metrics"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Enricher adds cached provider metadata to items. Concurrent lookups of
// the same id share one upstream call, and the number of calls in flight
// across all requests is capped.
type Enricher struct {
	provider Provider
	cache    *Cache
	inflight singleflight.Group
	slots    *semaphore.Weighted
	width    int
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewEnricher wraps provider. A nil provider yields an enricher that
// reports ErrNotConfigured for every id.
func NewEnricher(provider Provider, s Settings, m *metrics.Metrics, log *logger.Logger) *Enricher {
	return &Enricher{
		provider: provider,
		cache:    NewCache(s.CacheSize, s.CacheTTL),
		slots:    semaphore.NewWeighted(int64(s.MaxConcurrency)),
		width:    s.MaxConcurrency,
		timeout:  s.Timeout,
		metrics:  m,
		logger:   log.WithComponent("enricher"),
	}
}

// Enabled reports whether a provider is wired.
func (e *Enricher) Enabled() bool { return e.provider != nil }

// Cache exposes the response cache for maintenance jobs.
func (e *Enricher) Cache() *Cache { return e.cache }

// PurgeExpired drops expired cache entries.
func (e *Enricher) PurgeExpired() int { return e.cache.PurgeExpired() }

// Enrich returns metadata for id from the cache or the provider. The shared
// upstream call is detached from ctx so one cancelled caller does not fail
// the others waiting on the same id; ctx only bounds this caller's wait.
func (e *Enricher) Enrich(ctx context.Context, id int64) (*Metadata, error) {
	if e.provider == nil {
		return nil, ErrNotConfigured
	}
	if md, ok := e.cache.Get(id); ok {
		e.metrics.CacheResult(true)
		return md, nil
	}
	e.metrics.CacheResult(false)

	shared := context.WithoutCancel(ctx)
	ch := e.inflight.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return e.fetch(shared, id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Metadata), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, ctx.Err())
	}
}

// fetch makes one bounded provider call and caches the result.
func (e *Enricher) fetch(ctx context.Context, id int64) (*Metadata, error) {
	waitCtx, cancelWait := context.WithTimeout(ctx, e.timeout)
	defer cancelWait()
	if err := e.slots.Acquire(waitCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for a provider slot: %v", ErrUpstreamTimeout, err)
	}
	defer e.slots.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	md, err := e.provider.Fetch(callCtx, id)
	if err != nil {
		return nil, err
	}
	e.cache.Put(id, md)
	return md, nil
}

// EnrichBatch looks up every id and returns the ones that succeeded. Missing
// keys mean the item is served without enrichment.
func (e *Enricher) EnrichBatch(ctx context.Context, ids []int64) map[int64]*Metadata {
	out := make(map[int64]*Metadata, len(ids))
	if e.provider == nil || len(ids) == 0 {
		return out
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.width)
	for _, id := range ids {
		g.Go(func() error {
			md, err := e.Enrich(ctx, id)
			if err != nil {
				e.logFailure(id, err)
				return nil
			}
			mu.Lock()
			out[id] = md
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Prewarm fills the cache for ids and reports how many are now cached.
func (e *Enricher) Prewarm(ctx context.Context, ids []int64) (int, error) {
	if e.provider == nil {
		return 0, ErrNotConfigured
	}
	got := e.EnrichBatch(ctx, ids)
	if len(ids) > 0 && len(got) == 0 {
		return 0, fmt.Errorf("%w: no item could be prewarmed", ErrUpstreamError)
	}
	return len(got), nil
}

func (e *Enricher) logFailure(id int64, err error) {
	msg := "Serving item " + strconv.FormatInt(id, 10) + " unenriched: " + err.Error()
	if errors.Is(err, ErrUpstreamTimeout) {
		e.logger.Debug(msg)
		return
	}
	e.logger.Warn(msg)
}
