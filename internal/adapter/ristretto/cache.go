// Package ristretto caches effective-tag extraction per spec file using
// dgraph-io/ristretto.
package ristretto

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/specnotify/internal/port/tagger"
)

// TagCache wraps an Extractor so each spec file is parsed once. Each spec
// costs 1, so maxSpecs bounds how many specs are remembered.
type TagCache struct {
	inner tagger.Extractor
	c     *ristretto.Cache[string, tagger.Tags]
}

var _ tagger.Extractor = (*TagCache)(nil)

// New creates a caching extractor in front of inner.
func New(inner tagger.Extractor, maxSpecs int64) (*TagCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, tagger.Tags]{
		NumCounters:        maxSpecs * 10,
		MaxCost:            maxSpecs,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &TagCache{inner: inner, c: c}, nil
}

// EffectiveTags returns cached tags for the spec or extracts them.
// Failed extractions are not cached.
func (t *TagCache) EffectiveTags(ctx context.Context, specAbsolutePath string) (tagger.Tags, error) {
	if tags, ok := t.c.Get(specAbsolutePath); ok {
		return tags, nil
	}

	tags, err := t.inner.EffectiveTags(ctx, specAbsolutePath)
	if err != nil {
		return nil, err
	}
	if !t.c.Set(specAbsolutePath, tags, 1) {
		slog.Debug("tag cache rejected entry", "spec", specAbsolutePath)
	}
	t.c.Wait()
	return tags, nil
}

// Clear drops all cached specs. The dispatcher calls it at every run start.
func (t *TagCache) Clear() {
	t.c.Clear()
}

// Close shuts down the cache and releases resources.
func (t *TagCache) Close() {
	t.c.Close()
}
