package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/observability"
	"github.com/google/uuid"
)

// CatalogResolver maps a dataset type key to the catalog entries to query.
type CatalogResolver interface {
	Resolve(key string, variants ...string) ([]domain.CatalogEntry, error)
	Variants(key string) ([]string, error)
}

// Searcher runs every query and reports one outcome per query, in order.
type Searcher interface {
	SearchAll(ctx context.Context, queries []domain.SearchQuery) []domain.QueryOutcome
}

// Downloader places grouped files on disk.
type Downloader interface {
	Download(ctx context.Context, sets []domain.GroupedFileSet, outputDir string) ([]domain.DownloadOutcome, error)
}

// ManifestWriter records the outcomes of a run next to the files.
type ManifestWriter interface {
	Write(outputDir, runID string, aoi domain.BoundingBox, outcomes []domain.DownloadOutcome) ([]string, error)
}

// Publisher announces the outcomes of a run to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, summary domain.RunSummary, outcomes []domain.DownloadOutcome) error
}

// Request describes one fetch run.
type Request struct {
	BBox         domain.BoundingBox
	DatasetTypes []string
	// Variants, when set, replace the default catalog entries of each
	// requested dataset type that defines them. Types defining none of the
	// named variants keep their defaults.
	Variants  []string
	OutputDir string
}

// Pipeline orchestrates resolve, search, group, and download for a run.
type Pipeline struct {
	resolver   CatalogResolver
	searcher   Searcher
	downloader Downloader
	manifest   ManifestWriter
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(r CatalogResolver, s Searcher, d Downloader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		resolver:   r,
		searcher:   s,
		downloader: d,
		logger:     logger,
		metrics:    metrics,
	}
}

// WithManifest enables manifest writing after downloads.
func (p *Pipeline) WithManifest(m ManifestWriter) *Pipeline {
	p.manifest = m
	return p
}

// WithPublisher enables event publishing at the end of a run.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// CheckReadiness returns nil once a run request has passed validation,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no run has been accepted yet")
	}
	return nil
}

// Run executes one fetch. Validation happens before any network call and
// its failures are returned as a ConfigurationError. Query and file
// failures are recorded in the summary instead of being returned; the only
// other error is domain.ErrOutputUnwritable when downloads were aborted.
func (p *Pipeline) Run(ctx context.Context, req Request) (domain.RunSummary, error) {
	summary := domain.NewRunSummary(uuid.NewString())
	log := p.logger.With("run_id", summary.RunID)

	types, queries, err := p.plan(req)
	if err != nil {
		return summary, err
	}
	p.ready.Store(true)
	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	log.Info("run started",
		"aoi", req.BBox.String(),
		"dataset_types", strings.Join(types, ","),
		"queries", len(queries),
		"output_dir", req.OutputDir,
	)
	summary.Queries = len(queries)

	results := p.searcher.SearchAll(ctx, queries)
	sets := p.group(types, results, &summary)

	outcomes, dlErr := p.downloader.Download(ctx, sets, req.OutputDir)
	for _, o := range outcomes {
		summary.Record(o)
	}

	if p.manifest != nil && dlErr == nil && len(outcomes) > 0 {
		paths, err := p.manifest.Write(req.OutputDir, summary.RunID, req.BBox, outcomes)
		if err != nil {
			log.Warn("manifest write failed", "error", err)
		} else {
			log.Debug("manifest written", "paths", paths)
		}
	}

	summary.Finish()

	if p.publisher != nil {
		// Publish even when the run was interrupted.
		if err := p.publisher.Publish(context.WithoutCancel(ctx), summary, outcomes); err != nil {
			log.Warn("publish failed", "error", err)
		}
	}

	log.Info("run finished",
		"discovered", summary.Discovered,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"failed_queries", summary.FailedQueries,
		"duration", summary.Duration(),
	)
	return summary, dlErr
}

// plan validates the request and builds every query up front. It returns
// the normalized dataset types, deduplicated in request order.
func (p *Pipeline) plan(req Request) ([]string, []domain.SearchQuery, error) {
	if err := req.BBox.Validate(); err != nil {
		return nil, nil, err
	}
	if err := checkOutputDir(req.OutputDir); err != nil {
		return nil, nil, err
	}
	types := normalizeTypes(req.DatasetTypes)
	if len(types) == 0 {
		return nil, nil, domain.Configurationf("type", "at least one dataset type is required")
	}

	scoped, err := p.scopeVariants(types, req.Variants)
	if err != nil {
		return nil, nil, err
	}

	var entries []domain.CatalogEntry
	for _, key := range types {
		resolved, err := p.resolver.Resolve(key, scoped[key]...)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, resolved...)
	}
	queries, err := domain.BuildQueries(req.BBox, entries)
	return types, queries, err
}

func normalizeTypes(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// scopeVariants assigns each named variant to the requested types that
// define it. A variant no requested type defines is a configuration error.
func (p *Pipeline) scopeVariants(types, variants []string) (map[string][]string, error) {
	defined := make(map[string][]string, len(types))
	for _, key := range types {
		names, err := p.resolver.Variants(key)
		if err != nil {
			return nil, err
		}
		defined[key] = names
	}

	scoped := make(map[string][]string, len(types))
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		owned := false
		for _, key := range types {
			if slices.Contains(defined[key], v) {
				scoped[key] = append(scoped[key], v)
				owned = true
			}
		}
		if !owned {
			return nil, domain.Configurationf("variant", "no requested dataset type has variant %q (types: %s)", v, strings.Join(types, ", "))
		}
	}
	return scoped, nil
}

// group merges query results per dataset type, in request order, and folds
// query-level counters into the summary.
func (p *Pipeline) group(types []string, outcomes []domain.QueryOutcome, summary *domain.RunSummary) []domain.GroupedFileSet {
	byType := make(map[string][]domain.SearchResult, len(types))
	for _, o := range outcomes {
		summary.Malformed += o.Malformed
		if o.Err != nil {
			summary.FailedQueries++
			summary.QueryErrors = append(summary.QueryErrors, o.Err.Error())
		}
		dt := o.Query.Entry.DatasetType
		byType[dt] = append(byType[dt], o.Results...)
	}

	sets := make([]domain.GroupedFileSet, 0, len(types))
	for _, dt := range types {
		set := domain.Group(byType[dt], dt)
		summary.Duplicates += set.Duplicates
		summary.Discovered += set.Len()
		p.logger.Info("grouped search results",
			"dataset_type", dt,
			"projects", len(set.Projects),
			"files", set.Len(),
			"duplicates", set.Duplicates,
		)
		sets = append(sets, set)
	}
	return sets
}

func checkOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return domain.Configurationf("output_dir", "output directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return domain.Configurationf("output_dir", "%s exists and is not a directory", dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return domain.Configurationf("output_dir", "%v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Configurationf("output_dir", "create output directory: %v", err)
	}
	return nil
}
