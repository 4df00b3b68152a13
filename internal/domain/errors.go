package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrRemoteSearch    = errors.New("remote search error")
	ErrDownload        = errors.New("download error")
	ErrFilesystem      = errors.New("filesystem error")
	ErrMalformedRecord = errors.New("malformed record")

	// ErrOutputUnwritable aborts a run after repeated filesystem failures
	// writing into the output directory.
	ErrOutputUnwritable = errors.New("output directory is not writable")
)

// ConfigurationError reports invalid user input or catalog content. It is
// always raised before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configurationf builds a ConfigurationError for the named field.
func Configurationf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RemoteSearchError reports a query whose pages could not be retrieved after
// retries. Other queries in the same run are unaffected.
type RemoteSearchError struct {
	Query SearchQuery
	Err   error
}

func (e *RemoteSearchError) Error() string {
	return fmt.Sprintf("search %s/%s (%q): %v", e.Query.Entry.DatasetType, e.Query.Entry.Name, e.Query.Entry.ProductName, e.Err)
}

func (e *RemoteSearchError) Unwrap() error { return e.Err }

func (e *RemoteSearchError) Is(target error) bool {
	return target == ErrRemoteSearch
}

// FailureKind classifies why a single file could not be downloaded.
type FailureKind string

const (
	FailureNetwork     FailureKind = "network"
	FailureTimeout     FailureKind = "timeout"
	FailureHTTPStatus  FailureKind = "http_status"
	FailureInterrupted FailureKind = "interrupted"
	FailureInvalidURL  FailureKind = "invalid_url"
	FailureFilesystem  FailureKind = "filesystem"
)

// DownloadError is attached to a failed DownloadOutcome.
type DownloadError struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Kind == FailureHTTPStatus {
		return fmt.Sprintf("download %s: %s %d: %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Is(target error) bool {
	if target == ErrDownload {
		return true
	}
	return target == ErrFilesystem && e.Kind == FailureFilesystem
}
