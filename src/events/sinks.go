package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// -----------------------------------------------------------------------------
// KafkaSink
// -----------------------------------------------------------------------------

// KafkaSink publishes each run report as JSON keyed by symbol, so one
// symbol's reports stay ordered within a partition.
type KafkaSink struct {
	Writer MessageWriter
	Topic  string
}

// NewKafkaSink builds a hash-balanced writer for the given brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		Topic: topic,
	}
}

func (k *KafkaSink) Publish(ctx context.Context, report models.MRunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(report.Symbol),
		Value: payload,
		Time:  report.FinishedAt,
		Headers: []kafka.Header{
			{Key: "stage", Value: []byte(report.Stage)},
			{Key: "run_id", Value: []byte(report.RunID)},
		},
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run report to %s: %w", k.Topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.Writer.Close()
}

// -----------------------------------------------------------------------------
// LogSink
// -----------------------------------------------------------------------------

// LogSink prints the per-symbol summary line.
type LogSink struct {
	Logger *logger.Logger
}

func (l *LogSink) Publish(_ context.Context, r models.MRunReport) error {
	log := l.Logger.With("run_id", r.RunID, "symbol", r.Symbol, "stage", r.Stage)
	switch {
	case r.Failed():
		log.Error("%s %s failed after %v (%s): %s", r.Stage, r.Symbol, r.Duration().Round(time.Millisecond), r.ErrorClass, r.Error)
	case r.NoData:
		log.Info("%s %s: no data (read %d, dropped %d)", r.Stage, r.Symbol, r.RowsRead, r.RowsDropped)
	default:
		log.Info("%s %s: read %d, dropped %d, written %d in %v", r.Stage, r.Symbol, r.RowsRead, r.RowsDropped, r.RecordsWritten, r.Duration().Round(time.Millisecond))
	}
	for _, d := range r.DropReasons {
		log.Debug("dropped %s", d)
	}
	return nil
}

func (l *LogSink) Close() error { return nil }

// -----------------------------------------------------------------------------
// MultiSink
// -----------------------------------------------------------------------------

// MultiSink fans a report out to every sink and joins their errors.
type MultiSink []interfaces.IReportSink

func (m MultiSink) Publish(ctx context.Context, report models.MRunReport) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
