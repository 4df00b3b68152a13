// Package download places grouped search results on disk.
package download

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/observability"
	"github.com/couchcryptid/usgs-data-tool/internal/retry"
	"golang.org/x/sync/errgroup"
)

// Options tunes a Downloader.
type Options struct {
	Workers int
	// IdleTimeout bounds the wait for response headers and for each body read.
	IdleTimeout time.Duration
	Retry       retry.Policy
	// MaxConsecutiveFSErrors aborts the batch after this many filesystem
	// failures in a row.
	MaxConsecutiveFSErrors int
}

// Downloader fetches files with bounded parallelism.
type Downloader struct {
	client  *http.Client
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHTTPClient returns a client without a whole-transfer deadline. The
// downloader enforces idle timeouts itself.
func NewHTTPClient(idleTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = idleTimeout
	transport.TLSHandshakeTimeout = idleTimeout
	return &http.Client{Transport: transport}
}

// New creates a Downloader.
func New(client *http.Client, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Downloader {
	opts.Workers = max(opts.Workers, 1)
	if opts.MaxConsecutiveFSErrors <= 0 {
		opts.MaxConsecutiveFSErrors = 3
	}
	return &Downloader{client: client, opts: opts, logger: logger, metrics: metrics}
}

// Download places every file of sets under outputDir and returns exactly one
// outcome per file, in set order. Per-file failures are reported in the
// outcomes; the returned error is non-nil only when the batch was aborted
// because the output directory is unwritable.
func (d *Downloader) Download(ctx context.Context, sets []domain.GroupedFileSet, outputDir string) ([]domain.DownloadOutcome, error) {
	var targets []domain.FileTarget
	for _, s := range sets {
		targets = append(targets, s.Targets()...)
	}
	outcomes := make([]domain.DownloadOutcome, len(targets))

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	streak := &fsStreak{limit: d.opts.MaxConsecutiveFSErrors}

	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for i, target := range targets {
		dest := destination(outputDir, target)
		if runCtx.Err() != nil {
			outcomes[i] = d.cancelled(target, dest)
			continue
		}
		g.Go(func() error {
			if runCtx.Err() != nil {
				outcomes[i] = d.cancelled(target, dest)
				return nil
			}
			o := d.downloadOne(runCtx, target, dest)
			outcomes[i] = o
			if streak.observe(o) {
				abort(domain.ErrOutputUnwritable)
			}
			return nil
		})
	}
	_ = g.Wait()

	if cause := context.Cause(runCtx); errors.Is(cause, domain.ErrOutputUnwritable) {
		d.logger.Error("aborting downloads: output directory is not writable",
			"output_dir", outputDir,
			"consecutive_failures", d.opts.MaxConsecutiveFSErrors,
		)
		return outcomes, cause
	}
	return outcomes, nil
}

func destination(outputDir string, t domain.FileTarget) string {
	return filepath.Join(outputDir, t.DatasetType, t.Project, t.Result.FileName)
}

func (d *Downloader) cancelled(t domain.FileTarget, dest string) domain.DownloadOutcome {
	d.metrics.Downloads.WithLabelValues(string(domain.StatusCancelled)).Inc()
	return domain.DownloadOutcome{Target: t, Path: dest, Status: domain.StatusCancelled}
}

func (d *Downloader) downloadOne(ctx context.Context, t domain.FileTarget, dest string) domain.DownloadOutcome {
	out := domain.DownloadOutcome{Target: t, Path: dest}
	url := t.Result.DownloadURL
	log := d.logger.With("dataset_type", t.DatasetType, "project", t.Project, "file", t.Result.FileName)

	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		out.Status = domain.StatusSkipped
		out.Bytes = info.Size()
		d.metrics.Downloads.WithLabelValues(string(out.Status)).Inc()
		log.Info("file exists, skipping", "path", dest)
		return out
	}

	if dlErr := validateURL(url); dlErr != nil {
		return d.fail(log, out, dlErr)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return d.fail(log, out, &domain.DownloadError{Kind: domain.FailureFilesystem, URL: url, Err: err})
	}

	start := time.Now()
	var written int64
	err := d.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			d.metrics.DownloadRetries.Inc()
			log.Debug("retrying download", "attempt", attempt)
		}
		n, err := d.fetch(ctx, url, dest)
		written = n
		return err
	})
	out.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			out.Status = domain.StatusCancelled
			d.metrics.Downloads.WithLabelValues(string(out.Status)).Inc()
			log.Info("download interrupted", "url", url)
			return out
		}
		var dlErr *domain.DownloadError
		if !errors.As(err, &dlErr) {
			dlErr = &domain.DownloadError{Kind: domain.FailureNetwork, URL: url, Err: err}
		}
		return d.fail(log, out, dlErr)
	}

	out.Status = domain.StatusDownloaded
	out.Bytes = written
	d.metrics.Downloads.WithLabelValues(string(out.Status)).Inc()
	d.metrics.DownloadBytes.Add(float64(written))
	d.metrics.DownloadDuration.Observe(out.Duration.Seconds())
	log.Info("file downloaded", "path", dest, "bytes", written, "duration", out.Duration)
	return out
}

func (d *Downloader) fail(log *slog.Logger, out domain.DownloadOutcome, err *domain.DownloadError) domain.DownloadOutcome {
	out.Status = domain.StatusFailed
	out.Err = err
	d.metrics.Downloads.WithLabelValues(string(out.Status)).Inc()
	log.Warn("download failed, continuing with remaining files",
		"url", err.URL,
		"kind", err.Kind,
		"error", err.Err,
	)
	return out
}

// fsStreak counts consecutive filesystem failures across workers.
type fsStreak struct {
	mu    sync.Mutex
	count int
	limit int
}

// observe records an outcome and reports whether the limit was reached.
func (s *fsStreak) observe(o domain.DownloadOutcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case o.Status == domain.StatusFailed && o.Err != nil && o.Err.Kind == domain.FailureFilesystem:
		s.count++
	case o.Status == domain.StatusDownloaded || o.Status == domain.StatusFailed:
		s.count = 0
	}
	return s.count >= s.limit
}
