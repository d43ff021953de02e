package pagestore

import "esedb/src/cache"

// pageCache specializes the shared clock-sweep cache to page_number -> Page.
type pageCache struct {
	c *cache.Cache[uint32, *Page]
}

func newPageCache(capacity int) *pageCache {
	return &pageCache{c: cache.New[uint32, *Page](capacity)}
}

func (pc *pageCache) get(pageNumber uint32) (*Page, bool) { return pc.c.Get(pageNumber) }
func (pc *pageCache) put(pageNumber uint32, p *Page)      { pc.c.Put(pageNumber, p) }
func (pc *pageCache) stats() (hits, misses, evicted uint64) { return pc.c.Stats() }
