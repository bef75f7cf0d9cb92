package browse

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jxwalker/modbrowse/internal/modplatform"
)

type detailsKey struct {
	platform modplatform.Platform
	id       string
}

// DetailsCache loads extended project details in batches and keeps them for the session.
// Concurrent loads of the same id set share one request.
type DetailsCache struct {
	registry *modplatform.Registry

	mu      sync.RWMutex
	entries map[detailsKey]modplatform.Details
	group   singleflight.Group
}

func NewDetailsCache(registry *modplatform.Registry) *DetailsCache {
	return &DetailsCache{registry: registry, entries: make(map[detailsKey]modplatform.Details)}
}

func (c *DetailsCache) Get(platform modplatform.Platform, id string) (modplatform.Details, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[detailsKey{platform, id}]
	return d, ok
}

// Load returns details for ids, fetching the ones not yet cached with a single call to
// the platform adapter.
func (c *DetailsCache) Load(ctx context.Context, platform modplatform.Platform, ids []string) (map[string]modplatform.Details, error) {
	out := make(map[string]modplatform.Details, len(ids))
	var missing []string
	c.mu.RLock()
	for _, id := range ids {
		if d, ok := c.entries[detailsKey{platform, id}]; ok {
			out[id] = d
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()
	if len(missing) == 0 {
		return out, nil
	}

	a, err := c.registry.Adapter(platform)
	if err != nil {
		return nil, err
	}
	src, ok := a.(modplatform.DetailsSource)
	if !ok {
		return nil, fmt.Errorf("%s does not provide project details", platform)
	}
	slices.Sort(missing)
	missing = slices.Compact(missing)
	key := string(platform) + ":" + strings.Join(missing, ",")
	v, err, _ := c.group.Do(key, func() (any, error) {
		return src.Details(ctx, missing)
	})
	if err != nil {
		return nil, err
	}
	fetched := v.(map[string]modplatform.Details)
	c.mu.Lock()
	for id, d := range fetched {
		c.entries[detailsKey{platform, id}] = d
		out[id] = d
	}
	c.mu.Unlock()
	return out, nil
}
