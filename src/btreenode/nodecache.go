package btreenode

import (
	"esedb/src/cache"
	"esedb/src/pagestore"
	"esedb/src/rangekey"
)

// Cache wraps Read with a bounded, clock-swept cache of decoded Nodes,
// keyed by the child page number a range points at. A single traversal
// reads each node once regardless, but a catalog load followed by several
// table scans, or two scans of sibling-heavy trees, reuse decoded branch
// nodes across calls instead of re-parsing the same page repeatedly.
type Cache struct {
	store *pagestore.Store
	c     *cache.Cache[uint32, *Node]
}

// NewCache builds a node cache of the given capacity (0 disables it,
// degrading to a plain Read on every call).
func NewCache(store *pagestore.Store, capacity int) *Cache {
	return &Cache{store: store, c: cache.New[uint32, *Node](capacity)}
}

// Read decodes the node r points at, consulting the cache first unless r
// carries rangekey.IgnoreCache, and storing the decoded node unless r
// carries rangekey.NoCache.
func (nc *Cache) Read(r rangekey.R) (*Node, error) {
	pageNumber := r.PageNumber(nc.store.PageSize())

	if r.Flags&rangekey.IgnoreCache == 0 {
		if n, ok := nc.c.Get(pageNumber); ok {
			return n, nil
		}
	}

	n, err := Read(nc.store, r, pagestore.NoCache|pagestore.IgnoreCache)
	if err != nil {
		return nil, err
	}

	if r.Flags&rangekey.NoCache == 0 {
		nc.c.Put(pageNumber, n)
	}
	return n, nil
}

// Stats exposes the underlying cache's hit/miss/eviction counters.
func (nc *Cache) Stats() (hits, misses, evicted uint64) { return nc.c.Stats() }
