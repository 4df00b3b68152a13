package tnm

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/observability"
)

// PageFetcher is the subset of search.PageFetcher the cache decorates.
type PageFetcher interface {
	FetchPage(ctx context.Context, q domain.SearchQuery, cursor domain.Cursor, pageSize int) (domain.Page, error)
}

// CachedFetcher wraps a PageFetcher with an in-memory LRU cache keyed by
// product, format, bbox, and page position.
type CachedFetcher struct {
	inner   PageFetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a page fetcher.
func NewCachedFetcher(inner PageFetcher, maxEntries int, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFetcher) FetchPage(ctx context.Context, q domain.SearchQuery, cursor domain.Cursor, pageSize int) (domain.Page, error) {
	key := fmt.Sprintf("%s|%d|%s|%d", q.Key(), cursor.Offset, cursor.Token, pageSize)
	if page, ok := c.cache.get(key); ok {
		c.metrics.SearchCache.WithLabelValues("hit").Inc()
		return page, nil
	}
	c.metrics.SearchCache.WithLabelValues("miss").Inc()

	page, err := c.inner.FetchPage(ctx, q, cursor, pageSize)
	if err != nil {
		return page, err
	}
	c.cache.put(key, page)
	return page, nil
}

// lruCache is a simple thread-safe LRU cache for result pages.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Page
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry),
	}
}

// get returns a copy of the cached page so callers cannot mutate the entry.
func (c *lruCache) get(key string) (domain.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Page{}, false
	}
	c.moveToFront(e)
	return clonePage(e.value), true
}

func (c *lruCache) put(key string, value domain.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value = clonePage(value)
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

func clonePage(p domain.Page) domain.Page {
	out := p
	out.Results = append([]domain.SearchResult(nil), p.Results...)
	for i := range out.Results {
		if e := out.Results[i].Extent; e != nil {
			out.Results[i].Extent = e.Clone()
		}
	}
	if p.Next != nil {
		next := *p.Next
		out.Next = &next
	}
	return out
}
