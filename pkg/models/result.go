package models

import "time"

// Result is the outcome of processing one source. Records preserve input
// order, one per line; unmatched lines are sentinel records, never dropped,
// so len(Records) always equals the number of input lines (minus any lines
// folded into a previous record when continuation folding is enabled).
type Result struct {
	// Source names the processed input (file path or stream name).
	Source string `json:"source"`

	// Records in input order.
	Records []Record `json:"records"`

	// Columns is the declared field order across the pattern set, used by
	// Table. The first column is always pattern_name.
	Columns []string `json:"columns,omitempty"`

	// Unmatched counts sentinel records.
	Unmatched int `json:"unmatched"`

	// Folded counts continuation lines appended to a preceding record.
	Folded int `json:"folded,omitempty"`

	// Matches counts matched lines per pattern name.
	Matches map[string]int `json:"matches"`
}

// Lines returns the number of input lines represented by the result.
func (r *Result) Lines() int {
	return len(r.Records) + r.Folded
}

// Table renders the result as ordered rows: pattern_name followed by one
// cell per declared field name across all patterns, nil where a record has
// no value for that column.
func (r *Result) Table() *Table {
	cols := make([]string, 0, len(r.Columns)+1)
	cols = append(cols, "pattern_name")
	cols = append(cols, r.Columns...)

	rows := make([][]any, 0, len(r.Records))
	for i := range r.Records {
		rec := &r.Records[i]
		row := make([]any, len(cols))
		row[0] = rec.PatternName
		for j, col := range r.Columns {
			if v, ok := rec.Fields[col]; ok {
				row[j+1] = v
			}
		}
		rows = append(rows, row)
	}
	return &Table{Columns: cols, Rows: rows}
}

// Table is the tabular projection of a Result.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Run describes one completed processing run as persisted by storage.
type Run struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Lines       int            `json:"lines"`
	Unmatched   int            `json:"unmatched"`
	Folded      int            `json:"folded,omitempty"`
	Matches     map[string]int `json:"matches"`
}
