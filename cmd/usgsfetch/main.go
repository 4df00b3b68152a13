// Command usgsfetch downloads USGS elevation rasters and LiDAR point clouds
// covering an area of interest from The National Map.
//
// Usage:
//
//	usgsfetch --aoi -84.45688,33.62848,-84.40212,33.65607 --type dem --output-dir ./out
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/usgs-data-tool/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/usgs-data-tool/internal/adapter/kafka"
	"github.com/couchcryptid/usgs-data-tool/internal/adapter/tnm"
	"github.com/couchcryptid/usgs-data-tool/internal/catalog"
	"github.com/couchcryptid/usgs-data-tool/internal/config"
	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/download"
	"github.com/couchcryptid/usgs-data-tool/internal/manifest"
	"github.com/couchcryptid/usgs-data-tool/internal/observability"
	"github.com/couchcryptid/usgs-data-tool/internal/pipeline"
	"github.com/couchcryptid/usgs-data-tool/internal/retry"
	"github.com/couchcryptid/usgs-data-tool/internal/search"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	opts, err := config.ParseRunOptions(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	logger, logCloser := observability.NewLogger(cfg)
	defer logCloser.Close() //nolint:errcheck // nothing useful to do on exit

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		return 1
	}
	if opts.ListCatalog {
		fmt.Fprint(stdout, cat.String())
		return 0
	}

	bbox, err := domain.NewBoundingBox(opts.AOI)
	if err != nil {
		logger.Error("invalid area of interest", "error", err)
		return 1
	}

	metrics := observability.NewMetrics()
	policy := retry.Policy{
		Attempts: cfg.RetryAttempts,
		Initial:  cfg.RetryBackoff,
		Max:      retry.Default().Max,
	}

	var fetcher search.PageFetcher = tnm.NewClient(cfg.TNMBaseURL, cfg.SearchTimeout, policy, logger, metrics)
	if cfg.SearchCacheSize > 0 {
		fetcher = tnm.NewCachedFetcher(fetcher, cfg.SearchCacheSize, metrics)
	}
	searcher := search.New(fetcher, cfg.SearchPageSize, cfg.SearchConcurrency, logger, metrics)
	downloader := download.New(download.NewHTTPClient(cfg.DownloadTimeout), download.Options{
		Workers:                cfg.DownloadWorkers,
		IdleTimeout:            cfg.DownloadTimeout,
		Retry:                  policy,
		MaxConsecutiveFSErrors: cfg.MaxConsecutiveFSErrors,
	}, logger, metrics)

	p := pipeline.New(cat, searcher, downloader, logger, metrics)
	if cfg.ManifestEnabled {
		p.WithManifest(manifest.NewWriter())
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		p.WithPublisher(writer)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srvCtx, stopServer := context.WithCancel(context.Background())
		srvDone := make(chan struct{})
		srv := httpadapter.NewServer(cfg.MetricsAddr, p, nil, cfg.ShutdownTimeout, logger)
		go func() {
			defer close(srvDone)
			if err := srv.Serve(srvCtx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			stopServer()
			<-srvDone
		}()
	}

	summary, err := p.Run(ctx, pipeline.Request{
		BBox:         bbox,
		DatasetTypes: opts.Types,
		Variants:     opts.Variants,
		OutputDir:    opts.OutputDir,
	})
	if errors.Is(err, domain.ErrConfiguration) {
		logger.Error("invalid request", "error", err)
		return 1
	}

	printSummary(stdout, summary)
	return exitCode(summary, err, logger)
}

func exitCode(summary domain.RunSummary, err error, logger *slog.Logger) int {
	switch {
	case err != nil:
		logger.Error("run aborted", "error", err)
		return 1
	case summary.AllFailed():
		logger.Error("every discovered file failed to download", "failed", summary.Failed)
		return 1
	}
	return 0
}

func printSummary(w io.Writer, s domain.RunSummary) {
	fmt.Fprintf(w, "Run %s finished in %s\n", s.RunID, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  queries:     %d (%d failed)\n", s.Queries, s.FailedQueries)
	fmt.Fprintf(w, "  discovered:  %d (%d duplicates, %d malformed records skipped)\n", s.Discovered, s.Duplicates, s.Malformed)
	fmt.Fprintf(w, "  downloaded:  %d (%d bytes)\n", s.Downloaded, s.BytesWritten)
	fmt.Fprintf(w, "  skipped:     %d\n", s.Skipped)
	fmt.Fprintf(w, "  failed:      %d\n", s.Failed)
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "  cancelled:   %d\n", s.Cancelled)
	}
	for _, e := range s.QueryErrors {
		fmt.Fprintf(w, "  query error: %s\n", e)
	}
	for _, u := range s.FailedURLs {
		fmt.Fprintf(w, "  failed url:  %s\n", u)
	}
	if s.Discovered == 0 && s.FailedQueries == 0 {
		fmt.Fprintln(w, "No matching products found for the area of interest.")
	}
}
