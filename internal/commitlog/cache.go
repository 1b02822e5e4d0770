package commitlog

import (
	"container/list"
	"sync"

	"duraq/internal/segment"
)

// segmentCache is a bounded LRU of open, non-tail segments. The tail
// (actively written) segment is never stored here — it's kept open for
// the lifetime of the engine regardless of how many file descriptors
// that costs. This collapses the teacher's two near-duplicate LRU
// implementations (internal/resource/segment_cache.go and
// internal/partition/cache.go) into one, kept here since a commit log
// has exactly one queue of segments to cache reads against.
type segmentCache struct {
	mu       sync.Mutex
	capacity int
	lru      *list.List
	items    map[int64]*list.Element
}

type cacheItem struct {
	baseOffset int64
	seg        *segment.Segment
}

func newSegmentCache(capacity int) *segmentCache {
	return &segmentCache{capacity: capacity, lru: list.New(), items: make(map[int64]*list.Element)}
}

func (c *segmentCache) get(baseOffset int64) *segment.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[baseOffset]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheItem).seg
	}
	return nil
}

func (c *segmentCache) put(baseOffset int64, seg *segment.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[baseOffset]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheItem).seg = seg
		return
	}

	if c.lru.Len() >= c.capacity {
		c.evictOldest()
	}

	elem := c.lru.PushFront(&cacheItem{baseOffset: baseOffset, seg: seg})
	c.items[baseOffset] = elem
}

// evictOldest drops the least-recently-used entry and closes its
// segment in the background: a caller racing Roll's own cache.put while
// the cache happens to be at capacity must not be made to wait on the
// evicted segment's full msync+munmap.
func (c *segmentCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	item := elem.Value.(*cacheItem)
	delete(c.items, item.baseOffset)
	go func(seg *segment.Segment) { _ = seg.Close() }(item.seg)
}

// take drops baseOffset from the cache and hands back whatever segment
// was cached there, without closing it — used when the owning queue is
// about to destroy the segment itself and needs the Segment object to
// do that through, not just evict the cache entry.
func (c *segmentCache) take(baseOffset int64) *segment.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[baseOffset]
	if !ok {
		return nil
	}
	c.lru.Remove(elem)
	delete(c.items, baseOffset)
	return elem.Value.(*cacheItem).seg
}

func (c *segmentCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := c.lru.Front(); e != nil; e = e.Next() {
		_ = e.Value.(*cacheItem).seg.Close()
	}
	c.lru.Init()
	c.items = make(map[int64]*list.Element)
}
