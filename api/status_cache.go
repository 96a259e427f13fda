package api

import (
	"context"
	"maps"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
)

const watermarksKey = "watermarks"

type WatermarkProvider interface {
	GetLastSyncWatermarks(ctx context.Context) (map[string]int64, error)
}

// StatusCache keeps the watermarks read from the store for the ttl of the cache, so frequent status
// polling does not scan the store on every request.
type StatusCache struct {
	provider        WatermarkProvider
	watermarksCache *ttlcache.Cache[string, map[string]int64]
	watermarksLock  sync.Mutex
}

func NewStatusCache(provider WatermarkProvider, watermarksCache *ttlcache.Cache[string, map[string]int64]) *StatusCache {
	return &StatusCache{
		provider:        provider,
		watermarksCache: watermarksCache,
	}
}

func (s *StatusCache) GetLastSyncWatermarks(ctx context.Context) (map[string]int64, error) {
	s.watermarksLock.Lock() // lock so that we do not get multiple threads inside the `if`
	defer s.watermarksLock.Unlock()

	item := s.watermarksCache.Get(watermarksKey)
	if item != nil {
		return maps.Clone(item.Value()), nil
	}

	watermarks, err := s.provider.GetLastSyncWatermarks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting last sync watermarks")
	}
	s.watermarksCache.Set(watermarksKey, watermarks, ttlcache.DefaultTTL)
	return maps.Clone(watermarks), nil
}
