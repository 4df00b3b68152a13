// Package search pages through remote product listings and fans independent
// queries out concurrently.
package search

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/observability"
	"golang.org/x/sync/errgroup"
)

// PageFetcher retrieves one page of results for a query. Implementations own
// transport concerns such as retries.
type PageFetcher interface {
	FetchPage(ctx context.Context, q domain.SearchQuery, cursor domain.Cursor, pageSize int) (domain.Page, error)
}

// Searcher turns page fetches into result streams.
type Searcher struct {
	fetcher     PageFetcher
	pageSize    int
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Searcher. pageSize and concurrency below 1 are treated as 1.
func New(fetcher PageFetcher, pageSize, concurrency int, logger *slog.Logger, metrics *observability.Metrics) *Searcher {
	return &Searcher{
		fetcher:     fetcher,
		pageSize:    max(pageSize, 1),
		concurrency: max(concurrency, 1),
		logger:      logger,
		metrics:     metrics,
	}
}

// Search starts a lazy stream over every page of q. Nothing is fetched until
// the first call to Next.
func (s *Searcher) Search(ctx context.Context, q domain.SearchQuery) *Stream {
	return &Stream{ctx: ctx, searcher: s, query: q}
}

// SearchAll runs queries concurrently and returns one outcome per query, in
// the order given. A failed query does not affect the others.
func (s *Searcher) SearchAll(ctx context.Context, queries []domain.SearchQuery) []domain.QueryOutcome {
	outcomes := make([]domain.QueryOutcome, len(queries))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			outcomes[i] = s.collect(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Searcher) collect(ctx context.Context, q domain.SearchQuery) domain.QueryOutcome {
	out := domain.QueryOutcome{Query: q}
	stream := s.Search(ctx, q)
	for stream.Next() {
		out.Results = append(out.Results, stream.Result())
	}
	out.Pages = stream.Pages()
	out.Malformed = stream.Malformed()
	out.Err = stream.Err()

	if out.Err != nil {
		s.logger.Warn("search query failed",
			"dataset_type", q.Entry.DatasetType,
			"product", q.Entry.ProductName,
			"results_before_failure", len(out.Results),
			"error", out.Err,
		)
		return out
	}
	if out.Malformed > 0 {
		s.logger.Warn("skipped malformed search records",
			"dataset_type", q.Entry.DatasetType,
			"product", q.Entry.ProductName,
			"count", out.Malformed,
		)
	}
	s.logger.Info("search query complete",
		"dataset_type", q.Entry.DatasetType,
		"product", q.Entry.ProductName,
		"results", len(out.Results),
		"pages", out.Pages,
	)
	return out
}

// Stream iterates the results of one query. It is finite and cannot be
// restarted; call Search again for a fresh pass.
type Stream struct {
	ctx      context.Context //nolint:containedctx // bound for the life of the iteration, like sql.Rows
	searcher *Searcher
	query    domain.SearchQuery

	cursor    domain.Cursor
	buf       []domain.SearchResult
	current   domain.SearchResult
	exhausted bool
	err       error
	pages     int
	malformed int
}

// Next advances to the next valid result, fetching pages as needed.
func (st *Stream) Next() bool {
	for len(st.buf) == 0 {
		if st.exhausted || st.err != nil {
			return false
		}
		st.fetch()
	}
	st.current, st.buf = st.buf[0], st.buf[1:]
	return true
}

// Result returns the record Next advanced to.
func (st *Stream) Result() domain.SearchResult { return st.current }

// Err returns the error that ended the stream early, if any. It wraps
// domain.ErrRemoteSearch.
func (st *Stream) Err() error { return st.err }

// Pages returns how many pages were fetched.
func (st *Stream) Pages() int { return st.pages }

// Malformed returns how many records were skipped.
func (st *Stream) Malformed() int { return st.malformed }

func (st *Stream) fetch() {
	s := st.searcher
	if err := st.ctx.Err(); err != nil {
		st.err = &domain.RemoteSearchError{Query: st.query, Err: err}
		return
	}

	page, err := s.fetcher.FetchPage(st.ctx, st.query, st.cursor, s.pageSize)
	if err != nil {
		st.err = &domain.RemoteSearchError{Query: st.query, Err: err}
		return
	}
	st.pages++
	s.metrics.SearchPages.Inc()

	for _, r := range page.Results {
		r.DatasetType = st.query.Entry.DatasetType
		r.ProductName = st.query.Entry.ProductName
		if err := r.Validate(); err != nil {
			st.malformed++
			s.metrics.MalformedRecords.Inc()
			s.logger.Debug("malformed search record", "error", err, "offset", st.cursor.Offset)
			continue
		}
		st.buf = append(st.buf, r)
	}
	s.metrics.SearchResults.Add(float64(len(st.buf)))

	received := len(page.Results)
	next := st.cursor.Offset + received
	switch {
	case page.Total == 0 && page.Next == nil:
		st.exhausted = true
	case received < s.pageSize:
		st.exhausted = true
	case page.Total > 0 && next >= page.Total:
		st.exhausted = true
	}
	if page.Next != nil {
		st.cursor = *page.Next
	} else {
		st.cursor = domain.Cursor{Offset: next}
	}
}
