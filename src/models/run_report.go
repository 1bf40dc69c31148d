package models

import (
	"fmt"
	"time"
)

// Run stages reported by the pipeline.
const (
	StageIngest  = "ingest"
	StageMetrics = "metrics"
)

// MDropReason explains why a loaded row did not become a price point.
type MDropReason struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
	Cause string `json:"cause"`
}

func (d MDropReason) String() string {
	if d.Field == "" {
		return fmt.Sprintf("line %d: %s", d.Line, d.Cause)
	}
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Field, d.Cause)
}

// -----------------------------------------------------------------------------

// MRunReport is the per-symbol outcome of one pipeline unit of work.
type MRunReport struct {
	RunID          string         `json:"run_id"`
	Stage          string         `json:"stage"`
	Symbol         string         `json:"symbol"`
	File           string         `json:"file,omitempty"`
	RowsRead       int            `json:"rows_read"`
	RowsDropped    int            `json:"rows_dropped"`
	DropReasons    []MDropReason  `json:"drop_reasons,omitempty"`
	DropSummary    map[string]int `json:"drop_summary,omitempty"`
	RecordsWritten int            `json:"records_written"`
	NoData         bool           `json:"no_data"`
	Error          string         `json:"error,omitempty"`
	ErrorClass     string         `json:"error_class,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Failed reports whether the unit of work ended with an error.
func (r *MRunReport) Failed() bool {
	return r.Error != ""
}

// Duration returns how long the unit of work took.
func (r *MRunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
