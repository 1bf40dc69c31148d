package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-metrics/src/helpers"
	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/utils"
)

// Result wraps a query answer. Empty is the explicit no-data signal; it is
// never set together with an error.
type Result[T any] struct {
	Rows  []T  `json:"rows"`
	Empty bool `json:"empty"`
}

func newResult[T any](rows []T) Result[T] {
	if rows == nil {
		rows = []T{}
	}
	return Result[T]{Rows: rows, Empty: len(rows) == 0}
}

// DateRange is an inclusive span of calendar days in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Bounds returns the half-open store range [Start, End+1day).
func (r DateRange) Bounds() (time.Time, time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

// ParseDateRange parses inclusive YYYY-MM-DD bounds.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(utils.DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, helpers.NewValidationError(fmt.Sprintf("invalid start_date %q, expected YYYY-MM-DD", start))
	}
	e, err := time.Parse(utils.DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, helpers.NewValidationError(fmt.Sprintf("invalid end_date %q, expected YYYY-MM-DD", end))
	}
	if e.Before(s) {
		return DateRange{}, helpers.NewValidationError(fmt.Sprintf("end_date %s is before start_date %s", end, start))
	}
	return DateRange{Start: s, End: e}, nil
}

// -----------------------------------------------------------------------------

// Service answers read-only range queries over the stored series.
type Service struct {
	DB      interfaces.IDatabase
	Timeout time.Duration
	Logger  *logger.Logger

	// LatestOnly keeps only the most recent calculation per metric timestamp
	// when several runs covered the same range.
	LatestOnly bool

	// PreferredSource picks the price row to keep when one timestamp was
	// ingested under several provenance tags. Unset or absent, the first
	// source in name order wins.
	PreferredSource string
}

func NewService(db interfaces.IDatabase, timeout time.Duration, log *logger.Logger) *Service {
	return &Service{DB: db, Timeout: timeout, Logger: log, LatestOnly: true}
}

// -----------------------------------------------------------------------------

// Prices returns the symbol's price points with timestamps in the inclusive
// date range, ascending.
func (s *Service) Prices(ctx context.Context, symbol, startDate, endDate string) (Result[models.MPricePoint], error) {
	if err := checkSymbol(symbol); err != nil {
		return Result[models.MPricePoint]{}, err
	}
	r, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return Result[models.MPricePoint]{}, err
	}
	return s.PricesBetween(ctx, symbol, r)
}

// PricesBetween is Prices over an already parsed range.
func (s *Service) PricesBetween(ctx context.Context, symbol string, r DateRange) (Result[models.MPricePoint], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	from, to := r.Bounds()
	rows, err := s.DB.QueryPrices(ctx, symbol, from, to)
	if err != nil {
		return Result[models.MPricePoint]{}, helpers.NewStoreError("query "+symbol+" prices", err)
	}
	collapsed := onePerTimestamp(rows, s.PreferredSource)
	if n := len(rows) - len(collapsed); n > 0 && s.Logger != nil {
		s.Logger.Debug("Collapsed %d %s price rows stored under more than one source", n, symbol)
	}
	return newResult(collapsed), nil
}

// -----------------------------------------------------------------------------

// Metrics returns one metric series for the symbol in the inclusive date range.
func (s *Service) Metrics(ctx context.Context, symbol, metricName, startDate, endDate string) (Result[models.MMetricRecord], error) {
	if err := checkSymbol(symbol); err != nil {
		return Result[models.MMetricRecord]{}, err
	}
	metric, err := models.ParseMetricName(strings.TrimSpace(metricName))
	if err != nil {
		return Result[models.MMetricRecord]{}, helpers.NewValidationError(err.Error())
	}
	r, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return Result[models.MMetricRecord]{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	from, to := r.Bounds()
	rows, err := s.DB.QueryMetrics(ctx, symbol, metric, from, to)
	if err != nil {
		return Result[models.MMetricRecord]{}, helpers.NewStoreError("query "+symbol+" "+string(metric), err)
	}
	if s.LatestOnly {
		rows = latestPerTimestamp(rows)
	}
	return newResult(rows), nil
}

// -----------------------------------------------------------------------------

// ListSymbols returns every symbol with stored prices.
func (s *Service) ListSymbols(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	symbols, err := s.DB.ListSymbols(ctx)
	if err != nil {
		return nil, helpers.NewStoreError("list symbols", err)
	}
	if symbols == nil {
		symbols = []string{}
	}
	return symbols, nil
}

// -----------------------------------------------------------------------------

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func checkSymbol(symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return helpers.NewValidationError("symbol is required")
	}
	return nil
}

// latestPerTimestamp expects rows ordered by (timestamp, calculation_date)
// and keeps the last row of each timestamp.
func latestPerTimestamp(rows []models.MMetricRecord) []models.MMetricRecord {
	if len(rows) < 2 {
		return rows
	}
	out := rows[:0:0]
	for i, r := range rows {
		if i+1 < len(rows) && rows[i+1].Timestamp.Equal(r.Timestamp) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// onePerTimestamp expects rows ordered by (timestamp, source) and keeps one
// row per timestamp, the preferred source when present.
func onePerTimestamp(rows []models.MPricePoint, preferred string) []models.MPricePoint {
	if len(rows) < 2 {
		return rows
	}
	out := make([]models.MPricePoint, 0, len(rows))
	for _, r := range rows {
		last := len(out) - 1
		if last >= 0 && out[last].Timestamp.Equal(r.Timestamp) {
			if preferred != "" && r.Source == preferred && out[last].Source != preferred {
				out[last] = r
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
