package interfaces

import "market-metrics/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger pushes finished run reports to live listeners (websocket).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a report to connected clients and records it.
	Broadcast(report models.MRunReport)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
