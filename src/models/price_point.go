package models

import "time"

// MPricePoint is one validated OHLCV observation for a symbol.
type MPricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Source    string    `json:"source"`
}

// -----------------------------------------------------------------------------

// MRawRow is a loaded but not yet coerced row. Numeric fields are kept as the
// text found in the file; the Validator owns type coercion.
type MRawRow struct {
	Line         int       `json:"line"`
	Symbol       string    `json:"symbol"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	TimestampRaw string    `json:"timestamp_raw"`
	Open         string    `json:"open"`
	High         string    `json:"high"`
	Low          string    `json:"low"`
	Close        string    `json:"close"`
	Volume       string    `json:"volume"`
}
