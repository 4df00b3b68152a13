package domain

import (
	"net/url"
	"strconv"
	"strings"
)

// CatalogEntry describes one remote product within a dataset type.
type CatalogEntry struct {
	DatasetType string `json:"dataset_type"`
	Name        string `json:"name"`
	ProductName string `json:"product_name"`
	FileFormat  string `json:"file_format"`
	OnRequest   bool   `json:"on_request,omitempty"`
}

// SearchQuery is one remote search for a single catalog entry.
type SearchQuery struct {
	BBox  BoundingBox
	Entry CatalogEntry
}

// Cursor positions a paginated search. Token carries an opaque continuation
// value for APIs that hand one out; the products API pages by offset only.
type Cursor struct {
	Offset int
	Token  string
}

// Page is one response of a paginated search. Results may contain malformed
// records; validation happens in the search client. Next, when set, overrides
// offset arithmetic.
type Page struct {
	Results []SearchResult
	Total   int
	Next    *Cursor
}

// QueryOutcome is everything a single query produced during a run.
type QueryOutcome struct {
	Query     SearchQuery
	Results   []SearchResult
	Pages     int
	Malformed int
	Err       error
}

// BuildQueries emits one query per catalog entry, in catalog order.
func BuildQueries(bbox BoundingBox, entries []CatalogEntry) ([]SearchQuery, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	queries := make([]SearchQuery, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.ProductName) == "" {
			return nil, Configurationf("catalog", "entry %s/%s has an empty product name", e.DatasetType, e.Name)
		}
		queries = append(queries, SearchQuery{BBox: bbox, Entry: e})
	}
	return queries, nil
}

// Values maps the query onto products API request parameters. This is the
// only place catalog fields are translated into the remote vocabulary.
func (q SearchQuery) Values(cursor Cursor, pageSize int) url.Values {
	v := url.Values{
		"datasets":     {q.Entry.ProductName},
		"bbox":         {q.BBox.String()},
		"max":          {strconv.Itoa(pageSize)},
		"offset":       {strconv.Itoa(cursor.Offset)},
		"outputFormat": {"JSON"},
	}
	if q.Entry.FileFormat != "" {
		v.Set("prodFormats", q.Entry.FileFormat)
	}
	return v
}

// Key identifies the query independent of pagination.
func (q SearchQuery) Key() string {
	return q.Entry.ProductName + "|" + q.Entry.FileFormat + "|" + q.BBox.String()
}
