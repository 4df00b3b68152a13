package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"github.com/couchcryptid/usgs-data-tool/internal/retry"
)

var errIdleTimeout = errors.New("no data received within idle timeout")

func validateURL(raw string) *domain.DownloadError {
	u, err := url.Parse(raw)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("unsupported URL %q: only http and https are allowed", raw)
	}
	return &domain.DownloadError{Kind: domain.FailureInvalidURL, URL: raw, Err: err}
}

// fetch performs one attempt: stream the body into a temp file next to dest
// and rename it into place on success. The temp file never survives a
// failed attempt. Non-retryable errors are wrapped with retry.Permanent.
func (d *Downloader) fetch(ctx context.Context, rawURL, dest string) (int64, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, retry.Permanent(&domain.DownloadError{Kind: domain.FailureInvalidURL, URL: rawURL, Err: err})
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, classifyTransport(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		dlErr := &domain.DownloadError{
			Kind:       domain.FailureHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
		if retryableStatus(resp.StatusCode) {
			return 0, dlErr
		}
		return 0, retry.Permanent(dlErr)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, retry.Permanent(&domain.DownloadError{Kind: domain.FailureFilesystem, URL: rawURL, Err: err})
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()           //nolint:errcheck // already failing
			os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()

	body := newIdleReader(resp.Body, d.opts.IdleTimeout, func() { cancel(errIdleTimeout) })
	defer body.stop()

	w := &fileWriter{f: tmp}
	n, err := io.Copy(w, body)
	if err != nil {
		if w.err != nil {
			return n, retry.Permanent(&domain.DownloadError{Kind: domain.FailureFilesystem, URL: rawURL, Err: w.err})
		}
		if errors.Is(context.Cause(reqCtx), errIdleTimeout) {
			return n, &domain.DownloadError{Kind: domain.FailureTimeout, URL: rawURL, Err: errIdleTimeout}
		}
		if ctx.Err() != nil {
			return n, retry.Permanent(&domain.DownloadError{Kind: domain.FailureInterrupted, URL: rawURL, Err: ctx.Err()})
		}
		return n, &domain.DownloadError{Kind: domain.FailureInterrupted, URL: rawURL, Err: err}
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, &domain.DownloadError{
			Kind: domain.FailureInterrupted,
			URL:  rawURL,
			Err:  fmt.Errorf("received %d of %d bytes: %w", n, resp.ContentLength, io.ErrUnexpectedEOF),
		}
	}

	if err := tmp.Close(); err != nil {
		return n, retry.Permanent(&domain.DownloadError{Kind: domain.FailureFilesystem, URL: rawURL, Err: err})
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return n, retry.Permanent(&domain.DownloadError{Kind: domain.FailureFilesystem, URL: rawURL, Err: err})
	}
	committed = true
	return n, nil
}

func classifyTransport(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil {
		return retry.Permanent(&domain.DownloadError{Kind: domain.FailureInterrupted, URL: rawURL, Err: ctx.Err()})
	}
	kind := domain.FailureNetwork
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		kind = domain.FailureTimeout
	}
	return &domain.DownloadError{Kind: kind, URL: rawURL, Err: err}
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// fileWriter remembers write errors so they can be told apart from read
// errors after io.Copy.
type fileWriter struct {
	f   *os.File
	err error
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

// idleReader fires onIdle when no Read completes within timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, onIdle)
	}
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if ir.timer != nil && n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop() {
	if ir.timer != nil {
		ir.timer.Stop()
	}
}
