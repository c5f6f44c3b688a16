package mangashark

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// IsRead merges the two possible sources of truth for one unit's read
// flag: a device-scoped local record wins when present, the
// server-reported flag is the fallback. Pure, per-unit, no shared
// state.
func IsRead(local *ProgressRecord, serverIsRead bool) bool {
	if local != nil {
		return local.Complete
	}
	return serverIsRead
}

// UnitReadState pairs a unit key with the flag the server reported
// for it.
type UnitReadState struct {
	UnitKey    string
	ServerRead bool
}

type localStatus struct {
	exists   bool
	complete bool
}

// ReadStatusCache fronts the durable store for unread-count style
// queries over whole collections, where hitting pebble per unit on
// every list render would be wasteful. Entries are invalidated by the
// engine on every durable write.
type ReadStatusCache struct {
	store DurableStore
	cache *lru.Cache[string, localStatus]
}

func NewReadStatusCache(store DurableStore, size int) *ReadStatusCache {
	cache, _ := lru.New[string, localStatus](size)
	return &ReadStatusCache{store: store, cache: cache}
}

// ReadStatus resolves the merged read flag for every unit, consulting
// the cache first and batch-reading the rest from the store.
func (c *ReadStatusCache) ReadStatus(ctx context.Context, units []UnitReadState) (map[string]bool, error) {
	out := make(map[string]bool, len(units))
	var misses []string
	for _, u := range units {
		if st, ok := c.cache.Get(u.UnitKey); ok {
			if st.exists {
				out[u.UnitKey] = st.complete
			} else {
				out[u.UnitKey] = u.ServerRead
			}
			continue
		}
		misses = append(misses, u.UnitKey)
	}
	if len(misses) > 0 {
		recs, err := c.store.BatchGet(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, u := range units {
			if _, done := out[u.UnitKey]; done {
				continue
			}
			rec := recs[u.UnitKey]
			c.cache.Add(u.UnitKey, localStatus{exists: rec != nil, complete: rec != nil && rec.Complete})
			out[u.UnitKey] = IsRead(rec, u.ServerRead)
		}
	}
	return out, nil
}

// UnreadCount is the continue-reading affordance input: how many units
// of a collection are still unread after the merge.
func (c *ReadStatusCache) UnreadCount(ctx context.Context, units []UnitReadState) (int, error) {
	statuses, err := c.ReadStatus(ctx, units)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, read := range statuses {
		if !read {
			unread++
		}
	}
	return unread, nil
}

func (c *ReadStatusCache) Invalidate(unitKey string) {
	c.cache.Remove(unitKey)
}

func (c *ReadStatusCache) Purge() {
	c.cache.Purge()
}
