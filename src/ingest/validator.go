package ingest

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"market-metrics/src/models"

	"github.com/shopspring/decimal"
)

// Drop causes, also the keys of ValidationResult.Summary.
const (
	CauseMissing        = "missing value"
	CauseNotNumeric     = "not a number"
	CauseNotFinite      = "not finite"
	CauseNotPositive    = "must be positive"
	CauseNegative       = "must not be negative"
	CauseBadTimestamp   = "unparseable timestamp"
	CauseDuplicateStamp = "duplicate timestamp"
)

// RowResult is the outcome for one row: exactly one of Point or Skip is set.
type RowResult struct {
	Point *models.MPricePoint
	Skip  *models.MDropReason
}

// ValidationResult splits rows into typed points and drop reasons.
type ValidationResult struct {
	Points  []models.MPricePoint
	Dropped []models.MDropReason
	Summary map[string]int // drops per cause
}

// DropCount returns the number of dropped rows.
func (r ValidationResult) DropCount() int {
	return len(r.Dropped)
}

// SummaryString renders Summary as "cause=n, ..." in cause order.
func (r ValidationResult) SummaryString() string {
	causes := make([]string, 0, len(r.Summary))
	for c := range r.Summary {
		causes = append(causes, c)
	}
	sort.Strings(causes)
	parts := make([]string, len(causes))
	for i, c := range causes {
		parts[i] = fmt.Sprintf("%s=%d", c, r.Summary[c])
	}
	return strings.Join(parts, ", ")
}

// -----------------------------------------------------------------------------

// Validator coerces raw rows into price points.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// -----------------------------------------------------------------------------

// ValidateRow checks one row in isolation.
func (v *Validator) ValidateRow(row models.MRawRow) RowResult {
	skip := func(field, cause string) RowResult {
		return RowResult{Skip: &models.MDropReason{Line: row.Line, Field: field, Cause: cause}}
	}

	if row.TimestampRaw == "" {
		return skip("timestamp", CauseMissing)
	}
	if row.Timestamp.IsZero() {
		return skip("timestamp", CauseBadTimestamp)
	}

	// stores keep whole seconds
	p := models.MPricePoint{
		Timestamp: row.Timestamp.UTC().Truncate(time.Second),
		Symbol:    row.Symbol,
		Source:    row.Source,
	}
	fields := []struct {
		name     string
		raw      string
		dst      *float64
		positive bool
	}{
		{"open", row.Open, &p.Open, true},
		{"high", row.High, &p.High, true},
		{"low", row.Low, &p.Low, true},
		{"close", row.Close, &p.Close, true},
		{"volume", row.Volume, &p.Volume, false},
	}

	for _, f := range fields {
		val, cause := parseNumber(f.raw)
		if cause != "" {
			return skip(f.name, cause)
		}
		if f.positive && val <= 0 {
			return skip(f.name, CauseNotPositive)
		}
		if !f.positive && val < 0 {
			return skip(f.name, CauseNegative)
		}
		*f.dst = val
	}

	return RowResult{Point: &p}
}

// -----------------------------------------------------------------------------

// Validate runs every row, keeps the first occurrence of each timestamp and
// returns the points in ascending timestamp order.
func (v *Validator) Validate(rows []models.MRawRow) ValidationResult {
	res := ValidationResult{Summary: map[string]int{}}
	seen := make(map[int64]bool, len(rows))

	for _, row := range rows {
		r := v.ValidateRow(row)
		if r.Skip == nil {
			key := r.Point.Timestamp.Unix()
			if seen[key] {
				r = RowResult{Skip: &models.MDropReason{Line: row.Line, Field: "timestamp", Cause: CauseDuplicateStamp}}
			} else {
				seen[key] = true
			}
		}

		if r.Skip != nil {
			res.Dropped = append(res.Dropped, *r.Skip)
			res.Summary[r.Skip.Cause]++
			continue
		}
		res.Points = append(res.Points, *r.Point)
	}

	sort.SliceStable(res.Points, func(i, j int) bool {
		return res.Points[i].Timestamp.Before(res.Points[j].Timestamp)
	})
	return res
}

// -----------------------------------------------------------------------------

// parseNumber returns the value or a drop cause. Thousands separators are not accepted.
func parseNumber(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, CauseMissing
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, CauseNotNumeric
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, CauseNotFinite
	}
	return f, ""
}
