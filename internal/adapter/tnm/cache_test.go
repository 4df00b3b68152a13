package tnm

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	geo "github.com/paulmach/go.geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingFetcher struct {
	calls int
	page  domain.Page
	err   error
}

func (m *countingFetcher) FetchPage(_ context.Context, _ domain.SearchQuery, _ domain.Cursor, _ int) (domain.Page, error) {
	m.calls++
	return m.page, m.err
}

func onePage() domain.Page {
	return domain.Page{Total: 1, Results: []domain.SearchResult{{FileName: "a.tif", DownloadURL: "https://example.com/a.tif"}}}
}

// --- CachedFetcher tests ---

func TestCachedFetcher_Hit(t *testing.T) {
	inner := &countingFetcher{page: onePage()}
	cached := NewCachedFetcher(inner, 10, testMetrics())

	p1, err := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	require.NoError(t, err)
	p2, err := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedFetcher_SharedAcrossDatasetTypes(t *testing.T) {
	inner := &countingFetcher{page: onePage()}
	cached := NewCachedFetcher(inner, 10, testMetrics())

	q := demQuery()
	_, _ = cached.FetchPage(context.Background(), q, domain.Cursor{}, 50)
	q.Entry.DatasetType = "elevation"
	_, _ = cached.FetchPage(context.Background(), q, domain.Cursor{}, 50)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedFetcher_DifferentPagesMiss(t *testing.T) {
	inner := &countingFetcher{page: onePage()}
	cached := NewCachedFetcher(inner, 10, testMetrics())

	_, _ = cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	_, _ = cached.FetchPage(context.Background(), demQuery(), domain.Cursor{Offset: 50}, 50)
	_, _ = cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 100)

	assert.Equal(t, 3, inner.calls)
}

func TestCachedFetcher_ErrorsNotCached(t *testing.T) {
	inner := &countingFetcher{err: errors.New("status 503")}
	cached := NewCachedFetcher(inner, 10, testMetrics())

	_, err := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	require.Error(t, err)
	_, err = cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFetcher_ReturnsCopies(t *testing.T) {
	inner := &countingFetcher{page: onePage()}
	cached := NewCachedFetcher(inner, 10, testMetrics())

	p1, _ := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	p1.Results[0].FileName = "mutated.tif"

	p2, _ := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	assert.Equal(t, "a.tif", p2.Results[0].FileName)
}

func TestCachedFetcher_ExtentsNotShared(t *testing.T) {
	page := onePage()
	page.Results[0].Extent = geo.NewBound(-84.49, -84.37, 33.55, 33.65)
	inner := &countingFetcher{page: page}
	cached := NewCachedFetcher(inner, 10, testMetrics())

	p1, err := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	require.NoError(t, err)
	require.NotNil(t, p1.Results[0].Extent)
	p1.Results[0].Extent.Set(0, 1, 0, 1)
	page.Results[0].Extent.Set(10, 11, 10, 11)

	p2, err := cached.FetchPage(context.Background(), demQuery(), domain.Cursor{}, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, -84.49, p2.Results[0].Extent.West())
	assert.Equal(t, 33.65, p2.Results[0].Extent.North())
}

// --- lruCache tests ---

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Page{Total: 1})
	c.put("b", domain.Page{Total: 2})
	c.put("c", domain.Page{Total: 3})

	_, ok := c.get("a")
	assert.False(t, ok, "a should be evicted")
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessRefreshes(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Page{Total: 1})
	c.put("b", domain.Page{Total: 2})
	c.get("a")
	c.put("c", domain.Page{Total: 3})

	_, ok := c.get("a")
	assert.True(t, ok, "a was recently used")
	_, ok = c.get("b")
	assert.False(t, ok, "b should be evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Page{Total: 1})
	c.put("a", domain.Page{Total: 5})

	p, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, 1, c.size())
}
