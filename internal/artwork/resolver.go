// Package artwork resolves cover art URLs for tracks through a cache and a
// chain of providers.
package artwork

import (
	"context"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"go.uber.org/zap"
)

// Cache stores resolved URLs by album id. An empty URL records a miss.
// Set uses the cache default expiry, SetTTL an entry-specific one (0 never expires).
type Cache interface {
	Get(key string) (string, bool)
	Set(key, url string) error
	SetTTL(key, url string, ttl time.Duration) error
}

// Expiring is implemented by providers whose URLs stop working after TTL.
// URLs from other providers are cached without expiry.
type Expiring interface {
	TTL() time.Duration
}

// Resolver consults the cache, then each provider in order
type Resolver struct {
	logger    *zap.Logger
	cache     Cache
	providers []domain.ArtworkProvider
}

var _ domain.ArtworkResolver = (*Resolver)(nil)

// NewResolver creates a resolver; cache may be nil
func NewResolver(logger *zap.Logger, cache Cache, providers ...domain.ArtworkProvider) *Resolver {
	return &Resolver{
		logger:    logger,
		cache:     cache,
		providers: providers,
	}
}

// Resolve never fails: when nothing is found it returns "" and the gateway
// falls back to its placeholder image.
func (r *Resolver) Resolve(ctx context.Context, track domain.Track) string {
	if track.ArtworkURL != "" {
		return track.ArtworkURL
	}

	key := track.AlbumID
	if key != "" && r.cache != nil {
		if url, ok := r.cache.Get(key); ok {
			r.logger.Debug("Artwork cache hit", zap.String("album", key))
			return url
		}
	}

	failed := false
	for _, p := range r.providers {
		url, err := p.Lookup(ctx, track)
		if err != nil {
			failed = true
			r.logger.Warn("Artwork provider failed",
				zap.String("provider", p.Name()),
				zap.String("album", track.Album),
				zap.Error(err))
			continue
		}
		if url == "" {
			continue
		}

		var ttl time.Duration
		if e, ok := p.(Expiring); ok {
			ttl = e.TTL()
		}
		r.store(key, func(c Cache) error { return c.SetTTL(key, url, ttl) })
		r.logger.Debug("Artwork resolved",
			zap.String("provider", p.Name()),
			zap.String("album", track.Album))
		return url
	}

	// Only remember a miss when every provider answered.
	if !failed {
		r.store(key, func(c Cache) error { return c.Set(key, "") })
	}
	return ""
}

func (r *Resolver) store(key string, write func(Cache) error) {
	if key == "" || r.cache == nil {
		return
	}
	if err := write(r.cache); err != nil {
		r.logger.Warn("Failed to cache artwork", zap.String("album", key), zap.Error(err))
	}
}
