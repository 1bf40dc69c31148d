package models

// MColumnBatch is a store-agnostic insert batch: one table, a fixed column
// order and row values aligned with it.
type MColumnBatch struct {
	Table   string
	Columns []string
	Rows    [][]any
	// UniqueKey lists the columns that identify a row. Rows colliding on it
	// are skipped by stores that enforce the key.
	UniqueKey []string
}

// Len returns the number of rows in the batch.
func (b *MColumnBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Column returns the values of one column, or nil if the column is unknown.
func (b *MColumnBatch) Column(name string) []any {
	idx := -1
	for i, c := range b.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]any, len(b.Rows))
	for i, row := range b.Rows {
		out[i] = row[idx]
	}
	return out
}
