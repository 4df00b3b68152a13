package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/usgs-data-tool/internal/config"
	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	kindFile    = "file"
	kindSummary = "run_summary"
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes run results to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// FileEvent is the message value for one file outcome.
type FileEvent struct {
	RunID       string `json:"run_id"`
	DatasetType string `json:"dataset_type"`
	Product     string `json:"product"`
	Project     string `json:"project"`
	File        string `json:"file"`
	URL         string `json:"url"`
	Path        string `json:"path"`
	Status      string `json:"status"`
	Bytes       int64  `json:"bytes"`
	DurationMS  int64  `json:"duration_ms"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Publish sends one message per outcome followed by the run summary, in a
// single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, summary domain.RunSummary, outcomes []domain.DownloadOutcome) error {
	msgs := make([]kafkago.Message, 0, len(outcomes)+1)
	for i := range outcomes {
		msg, err := serializeOutcome(summary.RunID, outcomes[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	msg, err := serializeSummary(summary)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish run %s: %w", summary.RunID, err)
	}
	w.logger.Info("run published", "run_id", summary.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeOutcome marshals a DownloadOutcome into a Kafka message keyed by
// its relative output path so repeated runs land on the same partition.
func serializeOutcome(runID string, o domain.DownloadOutcome) (kafkago.Message, error) {
	r := o.Target.Result
	event := FileEvent{
		RunID:       runID,
		DatasetType: o.Target.DatasetType,
		Product:     r.ProductName,
		Project:     o.Target.Project,
		File:        r.FileName,
		URL:         r.DownloadURL,
		Path:        o.Path,
		Status:      string(o.Status),
		Bytes:       o.Bytes,
		DurationMS:  o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		event.ErrorKind = string(o.Err.Kind)
		event.Error = o.Err.Error()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize file event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(o.Target.DatasetType + "/" + o.Target.Project + "/" + r.FileName),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kindFile)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "status", Value: []byte(o.Status)},
		},
	}, nil
}

// serializeSummary marshals the run summary into a Kafka message keyed by run id.
func serializeSummary(s domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kindSummary)},
			{Key: "run_id", Value: []byte(s.RunID)},
			{Key: "finished_at", Value: []byte(s.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
