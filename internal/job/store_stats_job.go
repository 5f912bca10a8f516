package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/embedcache"
	"github.com/xxxsen/pdfqa/internal/service"
)

type StatsSource interface {
	Stats(ctx context.Context) (*service.Stats, error)
}

// StoreStatsJob logs the collection size and, when an embedding cache is
// configured, its hit counters.
type StoreStatsJob struct {
	source StatsSource
	cache  *embedcache.Embedder
}

func NewStoreStatsJob(source StatsSource, cache *embedcache.Embedder) *StoreStatsJob {
	return &StoreStatsJob{source: source, cache: cache}
}

func (j *StoreStatsJob) Name() string {
	return "store_stats"
}

func (j *StoreStatsJob) Run(ctx context.Context) error {
	if j.source == nil {
		return nil
	}
	st, err := j.source.Stats(ctx)
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("collection", st.Collection),
		zap.Int64("records", st.Records),
	}
	if j.cache != nil {
		cs := j.cache.Stats()
		fields = append(fields,
			zap.Uint64("cache_hits", cs.Hits),
			zap.Uint64("cache_misses", cs.Misses),
			zap.Int("cache_size", cs.Size),
		)
	}
	logutil.GetLogger(ctx).Info("vector store stats", fields...)
	return nil
}
