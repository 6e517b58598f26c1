package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Table is ordered tabular export content. Rows shorter than Headers are
// padded with empty cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends one row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// CSVExporter renders tables as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the table.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.Write(buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the table to w.
func (e *CSVExporter) Write(w io.Writer, table Table) error {
	if len(table.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for n, row := range table.Rows {
		if len(row) > len(table.Headers) {
			return fmt.Errorf("csv row %d has %d cells for %d headers", n+1, len(row), len(table.Headers))
		}
		record := make([]string, len(table.Headers))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
