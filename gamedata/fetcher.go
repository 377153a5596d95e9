// Package gamedata is the generic cache-or-fetch layer behind every
// per-resource endpoint: look the key up in the cache, otherwise fetch from
// the upstream resource API once and cache the result for a fixed TTL.
package gamedata

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by a Cache when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is an opaque key-value store with TTL-based expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Source fetches raw JSON from the upstream resource API. Satisfied by
// *bnet.Client.
type Source interface {
	GetGameData(ctx context.Context, path, namespace string, params url.Values) ([]byte, error)
}

// Fetcher deduplicates and caches upstream fetches. Concurrent misses for the
// same key collapse into a single upstream call.
type Fetcher struct {
	cache  Cache
	source Source
	ttl    time.Duration
	group  singleflight.Group
}

// NewFetcher creates a fetcher with a fixed cache TTL for all keys.
func NewFetcher(cache Cache, source Source, ttl time.Duration) *Fetcher {
	return &Fetcher{
		cache:  cache,
		source: source,
		ttl:    ttl,
	}
}

// Fetch returns the cached document for key, fetching path from upstream on a
// miss. A cache read or write failure degrades to fetching; it never fails
// the request.
func (f *Fetcher) Fetch(ctx context.Context, key, path, namespace string) ([]byte, error) {
	data, err := f.cache.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	// The fetch serves every collapsed caller, so it must not die with the
	// caller that happened to start it.
	fetchCtx := context.WithoutCancel(ctx)

	v, err, _ := f.group.Do(key, func() (any, error) {
		fetched, err := f.source.GetGameData(fetchCtx, path, namespace, nil)
		if err != nil {
			return nil, err
		}
		if err := f.cache.Put(fetchCtx, key, fetched, f.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
