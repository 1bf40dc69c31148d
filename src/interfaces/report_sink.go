package interfaces

import (
	"context"

	"market-metrics/src/models"
)

// -----------------------------------------------------------------------------
// IReportSink receives every per-symbol run report (log, Kafka, websocket).
// -----------------------------------------------------------------------------

type IReportSink interface {
	Publish(ctx context.Context, report models.MRunReport) error
	Close() error
}
