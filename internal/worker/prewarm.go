package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/pkg/logger"
)

const (
	defaultPrewarmInterval = 30 * time.Minute
	defaultPrewarmCount    = 50
)

// CacheWarmer is the part of the enricher the prewarm job drives
type CacheWarmer interface {
	Enabled() bool
	Prewarm(ctx context.Context, ids []int64) (int, error)
	PurgeExpired() int
}

// NewPrewarmWorker creates a worker that keeps provider metadata for the
// most popular items cached.
func NewPrewarmWorker(cfg *config.WorkerConfig, store *catalog.Store, warmer CacheWarmer, log *logger.Logger) (*Worker, error) {
	count := defaultPrewarmCount
	interval := ""
	if cfg != nil {
		interval = cfg.PrewarmInterval
		if cfg.PrewarmCount != "" {
			n, err := strconv.Atoi(cfg.PrewarmCount)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid prewarm count '%s': must be a non-negative integer", cfg.PrewarmCount)
			}
			count = n
		}
	}
	return NewWorker("enrichment-prewarm", interval, defaultPrewarmInterval, PrewarmJob(store, warmer, count, log), log)
}

// PrewarmJob drops expired cache entries, then fetches metadata for the
// count most popular items.
func PrewarmJob(store *catalog.Store, warmer CacheWarmer, count int, log *logger.Logger) JobFunc {
	log = log.WithComponent("prewarm-job")
	return func(ctx context.Context) error {
		if !warmer.Enabled() || count == 0 {
			return nil
		}

		purged := warmer.PurgeExpired()
		ids := TopIDs(store, count)
		if len(ids) == 0 {
			return nil
		}

		warmed, err := warmer.Prewarm(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to prewarm %d items: %w", len(ids), err)
		}
		log.Info(fmt.Sprintf("Prewarmed %d of %d popular items, purged %d expired entries", warmed, len(ids), purged))
		return nil
	}
}

// TopIDs returns the ids of the n most popular items
func TopIDs(store *catalog.Store, n int) []int64 {
	rows := store.ByPopularity()
	if n < len(rows) {
		rows = rows[:n]
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = store.Item(row).ID
	}
	return ids
}
