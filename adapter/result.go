package adapter

// Result is a materialized tabular result. Accessors return copies.
type Result struct {
	columns  []string
	rows     [][]any
	affected int64
}

func newResult(columns []string, rows [][]any, affected int64) *Result {
	return &Result{columns: columns, rows: rows, affected: affected}
}

func (r *Result) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *Result) Rows() [][]any {
	rows := make([][]any, len(r.rows))
	for i, row := range r.rows {
		rows[i] = append([]any(nil), row...)
	}
	return rows
}

// Len is the number of rows.
func (r *Result) Len() int {
	return len(r.rows)
}

// Affected is the number of rows written or deleted by a mutation.
func (r *Result) Affected() int64 {
	return r.affected
}

// Records pairs every row with the column names.
func (r *Result) Records() []map[string]any {
	records := make([]map[string]any, len(r.rows))
	for i, row := range r.rows {
		record := make(map[string]any, len(r.columns))
		for j, column := range r.columns {
			if j < len(row) {
				record[column] = row[j]
			}
		}
		records[i] = record
	}
	return records
}
