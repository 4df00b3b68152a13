package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/usgs-data-tool/internal/config"
	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testOutcome(status domain.OutcomeStatus) domain.DownloadOutcome {
	return domain.DownloadOutcome{
		Target: domain.FileTarget{
			DatasetType: "dem",
			Project:     "GA_Statewide_2018_B18_DRRA",
			Result: domain.SearchResult{
				ProductName: "Digital Elevation Model (DEM) 1 meter",
				DownloadURL: "https://example.com/Projects/GA_Statewide_2018_B18_DRRA/TIFF/a.tif",
				FileName:    "a.tif",
			},
		},
		Path:     "out/dem/GA_Statewide_2018_B18_DRRA/a.tif",
		Status:   status,
		Bytes:    1024,
		Duration: 1500 * time.Millisecond,
	}
}

func TestSerializeOutcome(t *testing.T) {
	msg, err := serializeOutcome("run-1", testOutcome(domain.StatusDownloaded))
	require.NoError(t, err)

	assert.Equal(t, []byte("dem/GA_Statewide_2018_B18_DRRA/a.tif"), msg.Key)
	var event FileEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "downloaded", event.Status)
	assert.Equal(t, int64(1500), event.DurationMS)
	assert.Empty(t, event.Error)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("file"), msg.Headers[0].Value)
	assert.Equal(t, []byte("downloaded"), msg.Headers[2].Value)
}

func TestSerializeOutcome_Failure(t *testing.T) {
	o := testOutcome(domain.StatusFailed)
	o.Err = &domain.DownloadError{Kind: domain.FailureHTTPStatus, URL: o.Target.Result.DownloadURL, StatusCode: 404, Err: errors.New("Not Found")}

	msg, err := serializeOutcome("run-1", o)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"error_kind":"http_status"`)
	assert.Contains(t, string(msg.Value), `"error":`)
}

func TestSerializeSummary(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := domain.RunSummary{RunID: "run-2", Discovered: 3, Downloaded: 3, FinishedAt: finished}

	msg, err := serializeSummary(s)
	require.NoError(t, err)
	assert.Equal(t, []byte("run-2"), msg.Key)
	assert.Contains(t, string(msg.Value), `"downloaded":3`)
	assert.Equal(t, []byte("run_summary"), msg.Headers[0].Value)
	assert.Equal(t, []byte(finished.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	outcomes := []domain.DownloadOutcome{testOutcome(domain.StatusDownloaded), testOutcome(domain.StatusSkipped)}
	require.NoError(t, w.Publish(context.Background(), domain.RunSummary{RunID: "run-3"}, outcomes))

	require.Len(t, fw.msgs, 3)
	assert.Equal(t, []byte("run-3"), fw.msgs[2].Key)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_Publish_Error(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.Publish(context.Background(), domain.RunSummary{RunID: "run-4"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-4")
}

func TestNewWriter_UsesConfiguredTopic(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "usgs-downloads"}, slog.Default())
	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "usgs-downloads", kw.Topic)
	require.NoError(t, w.Close())
}
