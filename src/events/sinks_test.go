package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-metrics/src/logger"
	"market-metrics/src/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func sampleReport() models.MRunReport {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return models.MRunReport{
		RunID: "run-1", Stage: models.StageIngest, Symbol: "AAPL", File: "AAPL.csv",
		RowsRead: 10, RowsDropped: 1, RecordsWritten: 9,
		DropReasons: []models.MDropReason{{Line: 7, Field: "close", Cause: "not a number"}},
		StartedAt:   start, FinishedAt: start.Add(time.Second),
	}
}

func TestKafkaSinkPublishesKeyedJSON(t *testing.T) {
	w := &mockWriter{}
	sink := &KafkaSink{Writer: w, Topic: "runs"}

	require.NoError(t, sink.Publish(context.Background(), sampleReport()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "AAPL", string(msg.Key))
	var decoded models.MRunReport
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 9, decoded.RecordsWritten)
	assert.Equal(t, "ingest", string(msg.Headers[0].Value))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkWrapsWriterError(t *testing.T) {
	sink := &KafkaSink{Writer: &mockWriter{err: errors.New("broker down")}, Topic: "runs"}
	err := sink.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs")
}

func TestNewKafkaSink(t *testing.T) {
	sink := NewKafkaSink([]string{"localhost:9092"}, "market-metrics.runs")
	w, ok := sink.Writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "market-metrics.runs", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestLogSinkAndMultiSink(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithWriter(&buf, "DEBUG", "text", "events")
	w := &mockWriter{}

	multi := MultiSink{&LogSink{Logger: log}, &KafkaSink{Writer: w, Topic: "runs"}}
	require.NoError(t, multi.Publish(context.Background(), sampleReport()))

	assert.Contains(t, buf.String(), "written 9")
	assert.Contains(t, buf.String(), "line 7: close: not a number")
	assert.Len(t, w.msgs, 1)

	failed := sampleReport()
	failed.Error, failed.ErrorClass = "insert price_data failed", "transient"
	w.err = errors.New("broker down")
	err := multi.Publish(context.Background(), failed)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "failed")

	require.NoError(t, multi.Close())
}
