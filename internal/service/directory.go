package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/specnotify/internal/domain/notify"
	"github.com/Strob0t/specnotify/internal/port/directory"
)

// DirectoryCache resolves mentions to directory ids. The full listing is
// fetched at most once until Reset; a failed fetch is remembered as an
// empty listing. The shared fetch ignores the cancellation of whichever
// caller triggered it and is bounded by the fetch timeout instead.
type DirectoryCache struct {
	dir     directory.Directory
	group   singleflight.Group
	timeout time.Duration

	mu     sync.RWMutex
	ids    map[string]string
	loaded bool

	fetches atomic.Int64
}

// DefaultFetchTimeout bounds the shared directory fetch.
const DefaultFetchTimeout = time.Minute

// DirectoryOption customizes a DirectoryCache.
type DirectoryOption func(*DirectoryCache)

// WithFetchTimeout bounds the whole paginated listing. Zero keeps the default.
func WithFetchTimeout(d time.Duration) DirectoryOption {
	return func(c *DirectoryCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewDirectoryCache creates an empty cache over dir.
func NewDirectoryCache(dir directory.Directory, opts ...DirectoryOption) *DirectoryCache {
	c := &DirectoryCache{dir: dir, timeout: DefaultFetchTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reset forgets the cached listing so the next lookup fetches again.
func (c *DirectoryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
	c.loaded = false
}

// Fetches returns how many listings were started.
func (c *DirectoryCache) Fetches() int64 {
	return c.fetches.Load()
}

// FetchAll walks every page of the directory and maps each handle and
// display name to its id. The first writer of a key wins.
func (c *DirectoryCache) FetchAll(ctx context.Context) (map[string]string, error) {
	c.fetches.Add(1)
	ids := make(map[string]string)
	cursor := ""
	for {
		page, err := c.dir.ListPeople(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", notify.ErrDirectoryFetch, err)
		}
		slog.Debug("directory page", "members", len(page.Members))
		for _, p := range page.Members {
			if p.Handle != "" {
				setOnce(ids, p.Handle, p.ID)
			}
			if p.DisplayName != "" {
				setOnce(ids, p.DisplayName, p.ID)
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	slog.Debug("finished fetching directory", "names", len(ids))
	return ids, nil
}

func setOnce(m map[string]string, k, v string) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}

func (c *DirectoryCache) entries(ctx context.Context) map[string]string {
	c.mu.RLock()
	if c.loaded {
		ids := c.ids
		c.mu.RUnlock()
		return ids
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do("directory", func() (any, error) {
		c.mu.RLock()
		if c.loaded {
			ids := c.ids
			c.mu.RUnlock()
			return ids, nil
		}
		c.mu.RUnlock()

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		ids, err := c.FetchAll(fctx)
		if err != nil {
			slog.Error("could not fetch the people directory, check the token scopes (users:read)", "error", err)
			ids = map[string]string{}
		}

		c.mu.Lock()
		c.ids = ids
		c.loaded = true
		c.mu.Unlock()
		return ids, nil
	})
	ids, _ := v.(map[string]string)
	return ids
}

// Resolve looks up a mention such as "@alice" by its bare handle.
func (c *DirectoryCache) Resolve(ctx context.Context, mention string) (string, bool) {
	name := strings.TrimPrefix(strings.TrimSpace(mention), "@")
	id, ok := c.entries(ctx)[name]
	if !ok {
		slog.Warn("cannot find directory id for person", "person", name)
	}
	return id, ok
}

// ResolveAll resolves mentions in order. It returns the ids found and the
// mentions they came from; unresolved mentions are dropped from both.
func (c *DirectoryCache) ResolveAll(ctx context.Context, mentions []string) (ids, found []string) {
	ids, found = []string{}, []string{}
	for _, m := range mentions {
		if id, ok := c.Resolve(ctx, m); ok {
			ids = append(ids, id)
			found = append(found, m)
		}
	}
	return ids, found
}
