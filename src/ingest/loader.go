package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/utils"

	"github.com/xuri/excelize/v2"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

var columnAliases = map[string]string{
	"date":     "timestamp",
	"datetime": "timestamp",
	"time":     "timestamp",
}

// timestampLayouts are tried in order; values without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
	"01-02-06",
}

// SourceFile is one input file and the symbol derived from its name.
type SourceFile struct {
	Path   string
	Symbol string
}

// -----------------------------------------------------------------------------

// Loader reads price files into raw rows. It never touches the store.
type Loader struct {
	Source string
	Logger *logger.Logger
}

func NewLoader(source string, log *logger.Logger) *Loader {
	if source == "" {
		source = utils.DefaultSource
	}
	return &Loader{Source: source, Logger: log}
}

// -----------------------------------------------------------------------------

// LoadFile reads a .csv or .xlsx file. Below the header row exactly one
// metadata row is skipped. An empty file yields no rows and no error.
func (l *Loader) LoadFile(path, symbol string) ([]models.MRawRow, error) {
	var (
		records []record
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}

	rows, err := l.parseTable(records, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if l.Logger != nil {
		l.Logger.Debug("Loaded %d rows for %s from %s", len(rows), symbol, path)
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

// ScanDir lists .csv/.xlsx files under dir, sorted by name. When only is
// non-empty, files whose symbol is not listed are skipped.
func (l *Loader) ScanDir(dir string, only []string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory '%s': %w", dir, err)
	}

	wanted := make(map[string]bool, len(only))
	for _, s := range only {
		wanted[s] = true
	}

	var files []SourceFile
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx", ".xlsm":
		default:
			continue
		}
		path := filepath.Join(dir, e.Name())
		symbol := SymbolFromPath(path)
		if len(wanted) > 0 && !wanted[symbol] {
			continue
		}
		files = append(files, SourceFile{Path: path, Symbol: symbol})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// SymbolFromPath uses the file name without extension as the symbol.
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// -----------------------------------------------------------------------------

// record is one table row and the physical line (1-based) it starts on.
type record struct {
	line   int
	fields []string
}

// readCSV keeps the physical line of every record; encoding/csv itself
// skips empty lines.
func readCSV(path string) ([]record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// the metadata row is usually shorter than the header
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []record
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, fields: rec})
	}
	return records, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(path string) ([]record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	records := make([]record, 0, len(rows))
	for i, r := range rows {
		if blank(r) {
			continue
		}
		records = append(records, record{line: i + 1, fields: r})
	}
	return records, nil
}

// -----------------------------------------------------------------------------

// parseTable treats the first record as the header and skips the physical
// line right below it as the metadata row, even when that line is empty.
func (l *Loader) parseTable(records []record, symbol string) ([]models.MRawRow, error) {
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	index := make(map[string]int)
	for i, name := range header.fields {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := columnAliases[key]; ok {
			key = alias
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	cell := func(rec []string, col string) string {
		i := index[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []models.MRawRow
	for _, r := range records[1:] {
		if r.line <= header.line+1 || blank(r.fields) {
			continue
		}
		rec := r.fields

		raw := models.MRawRow{
			Line:         r.line,
			Symbol:       symbol,
			Source:       l.Source,
			TimestampRaw: cell(rec, "timestamp"),
			Open:         cell(rec, "open"),
			High:         cell(rec, "high"),
			Low:          cell(rec, "low"),
			Close:        cell(rec, "close"),
			Volume:       cell(rec, "volume"),
		}
		if ts, err := ParseTimestamp(raw.TimestampRaw); err == nil {
			raw.Timestamp = ts
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// ParseTimestamp accepts the layouts written by common exporters and returns UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
