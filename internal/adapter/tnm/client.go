// Package tnm implements search.PageFetcher against the TNM Access products API.
package tnm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/observability"
	"github.com/couchcryptid/usgs-data-tool/internal/retry"
	geo "github.com/paulmach/go.geo"
)

// Client pages through the products API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      retry.Policy
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a products API client. Each page request is bounded by
// timeout and retried according to policy.
func NewClient(baseURL string, timeout time.Duration, policy retry.Policy, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		retry:   policy,
		logger:  logger,
		metrics: metrics,
	}
}

// StatusError is a non-2xx response from the products API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("products API error: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

// FetchPage requests one page of results for q.
func (c *Client) FetchPage(ctx context.Context, q domain.SearchQuery, cursor domain.Cursor, pageSize int) (domain.Page, error) {
	fullURL := c.baseURL + "?" + q.Values(cursor, pageSize).Encode()

	var page domain.Page
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		page, err = c.doRequest(ctx, fullURL)
		if err != nil && attempt > 1 {
			c.logger.Debug("products API retry failed", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return domain.Page{}, err
	}
	return page, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Page{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.SearchRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return domain.Page{}, retry.Permanent(fmt.Errorf("products request: %w", err))
		}
		return domain.Page{}, fmt.Errorf("products request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if !statusErr.Temporary() {
			return domain.Page{}, retry.Permanent(statusErr)
		}
		return domain.Page{}, statusErr
	}

	var tnmResp response
	if err := json.NewDecoder(resp.Body).Decode(&tnmResp); err != nil {
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		return domain.Page{}, fmt.Errorf("decode response: %w", err)
	}
	if msg := tnmResp.errorText(); msg != "" && len(tnmResp.Items) == 0 {
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		return domain.Page{}, retry.Permanent(errors.New("products API error: " + msg))
	}

	c.metrics.SearchRequests.WithLabelValues("success").Inc()
	return toPage(tnmResp), nil
}

func toPage(r response) domain.Page {
	page := domain.Page{Total: r.Total, Results: make([]domain.SearchResult, 0, len(r.Items))}
	for _, it := range r.Items {
		page.Results = append(page.Results, it.toResult())
	}
	return page
}

func (it item) toResult() domain.SearchResult {
	res := domain.SearchResult{
		Title:           it.Title,
		DownloadURL:     it.DownloadURL,
		FileName:        domain.FileNameFromURL(it.DownloadURL),
		ProjectID:       domain.ProjectFromURL(it.DownloadURL),
		Format:          it.Format,
		PublicationDate: it.PublicationDate,
		SizeBytes:       it.SizeInBytes,
	}
	if b := it.BoundingBox; b != nil && b.MinX < b.MaxX && b.MinY < b.MaxY {
		res.Extent = geo.NewBound(b.MinX, b.MaxX, b.MinY, b.MaxY)
	}
	return res
}

// Products API response types.

type response struct {
	Total    int             `json:"total"`
	Items    []item          `json:"items"`
	Errors   json.RawMessage `json:"errors"`
	Messages []string        `json:"messages"`
}

type item struct {
	Title           string       `json:"title"`
	SourceID        string       `json:"sourceId"`
	PublicationDate string       `json:"publicationDate"`
	Format          string       `json:"format"`
	DownloadURL     string       `json:"downloadURL"`
	SizeInBytes     int64        `json:"sizeInBytes"`
	BoundingBox     *boundingBox `json:"boundingBox"`
}

type boundingBox struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// errorText extracts the first message from "errors", which the API sends
// as a list of strings, a list of objects, or an object.
func (r response) errorText() string {
	if len(r.Errors) == 0 {
		return ""
	}
	var list []json.RawMessage
	if err := json.Unmarshal(r.Errors, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return messageOf(list[0])
	}
	return messageOf(r.Errors)
}

func messageOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}
