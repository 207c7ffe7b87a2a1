package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-backup-etl/internal/config"
	"github.com/couchcryptid/weather-backup-etl/internal/domain"
)

// Writer publishes pipeline run reports to a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish sends one run report, keyed by run ID.
func (w *Writer) Publish(ctx context.Context, report domain.RunReport) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run report %s: %w", report.RunID, err)
	}
	w.logger.Debug("run report published", "run_id", report.RunID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RunReport into a Kafka message.
func serializeToMessage(report domain.RunReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run report: %w", err)
	}
	outcome := "success"
	if report.Error != "" {
		outcome = "failed"
	}
	return kafkago.Message{
		Key:   []byte(report.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(outcome)},
			{Key: "completed_at", Value: []byte(report.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
