package domain

import (
	"time"
)

// OutcomeStatus is the terminal state of one file in a run.
type OutcomeStatus string

const (
	StatusDownloaded OutcomeStatus = "downloaded"
	StatusSkipped    OutcomeStatus = "skipped"
	StatusFailed     OutcomeStatus = "failed"
	StatusCancelled  OutcomeStatus = "cancelled"
)

// DownloadOutcome records what happened to one file. Err is set only for
// failed outcomes.
type DownloadOutcome struct {
	Target   FileTarget
	Path     string
	Status   OutcomeStatus
	Bytes    int64
	Duration time.Duration
	Err      *DownloadError
}

// RunSummary is the report produced at the end of a run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Queries       int      `json:"queries"`
	FailedQueries int      `json:"failed_queries"`
	QueryErrors   []string `json:"query_errors,omitempty"`
	Malformed     int      `json:"malformed"`
	Duplicates    int      `json:"duplicates"`

	Discovered   int      `json:"discovered"`
	Downloaded   int      `json:"downloaded"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	Cancelled    int      `json:"cancelled"`
	BytesWritten int64    `json:"bytes_written"`
	FailedURLs   []string `json:"failed_urls,omitempty"`
}

// NewRunSummary stamps a summary with its id and start time.
func NewRunSummary(runID string) RunSummary {
	return RunSummary{RunID: runID, StartedAt: clock.Now().UTC()}
}

// Record folds one outcome into the counters.
func (s *RunSummary) Record(o DownloadOutcome) {
	switch o.Status {
	case StatusDownloaded:
		s.Downloaded++
		s.BytesWritten += o.Bytes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		s.FailedURLs = append(s.FailedURLs, o.Target.Result.DownloadURL)
	case StatusCancelled:
		s.Cancelled++
	}
}

// Finish stamps the end time.
func (s *RunSummary) Finish() {
	s.FinishedAt = clock.Now().UTC()
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// AllFailed reports whether files were discovered and none of them made it
// to disk.
func (s RunSummary) AllFailed() bool {
	return s.Discovered > 0 && s.Failed == s.Discovered
}
