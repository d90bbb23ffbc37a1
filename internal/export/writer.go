package export

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Writer serializes a result set in one tabular format
type Writer interface {
	Extension() string
	// Write writes the header and every row, returning the number of data rows
	Write(w io.Writer, name string, columns []string, rows *sql.Rows) (int64, error)
}

// NewWriter returns the writer for a format
func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatCSV, "":
		return &CSVWriter{}, nil
	case FormatXLSX:
		return &XLSXWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// scanRow reads the current row into driver-neutral values
func scanRow(rows *sql.Rows, n int) ([]interface{}, error) {
	values := make([]interface{}, n)
	ptrs := make([]interface{}, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

// dateColumns marks the columns the driver reports as DATE. Column types
// are read once, when the first time value shows up.
type dateColumns struct {
	rows   *sql.Rows
	dates  []bool
	loaded bool
}

func newDateColumns(rows *sql.Rows, n int) *dateColumns {
	return &dateColumns{rows: rows, dates: make([]bool, n)}
}

func (d *dateColumns) isDate(i int) bool {
	if !d.loaded {
		d.loaded = true
		if types, err := d.rows.ColumnTypes(); err == nil {
			for j, ct := range types {
				if j < len(d.dates) && strings.EqualFold(ct.DatabaseTypeName(), "DATE") {
					d.dates[j] = true
				}
			}
		}
	}
	return i < len(d.dates) && d.dates[i]
}

// formatTime keeps sub-second precision; a DATE column at midnight is
// written as a plain calendar date
func formatTime(t time.Time, date bool) string {
	if date && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

// formatValue renders a scanned value as text; NULL becomes an empty field
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return formatTime(val, false)
	default:
		return fmt.Sprint(val)
	}
}

// CSVWriter writes a header row followed by one record per row
type CSVWriter struct{}

func (cw *CSVWriter) Extension() string {
	return ".csv"
}

func (cw *CSVWriter) Write(w io.Writer, name string, columns []string, rows *sql.Rows) (int64, error) {
	out := csv.NewWriter(w)
	if err := out.Write(columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	var count int64
	dates := newDateColumns(rows, len(columns))
	record := make([]string, len(columns))
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return count, fmt.Errorf("failed to scan row %d: %w", count+1, err)
		}
		for i, v := range values {
			if t, ok := v.(time.Time); ok {
				record[i] = formatTime(t, dates.isDate(i))
				continue
			}
			record[i] = formatValue(v)
		}
		if err := out.Write(record); err != nil {
			return count, fmt.Errorf("failed to write row %d: %w", count+1, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	out.Flush()
	return count, out.Error()
}

// XLSXWriter writes one worksheet named after the query
type XLSXWriter struct{}

func (xw *XLSXWriter) Extension() string {
	return ".xlsx"
}

func (xw *XLSXWriter) Write(w io.Writer, name string, columns []string, rows *sql.Rows) (int64, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return 0, fmt.Errorf("failed to name worksheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to create worksheet writer: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	var count int64
	dates := newDateColumns(rows, len(columns))
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return count, fmt.Errorf("failed to scan row %d: %w", count+1, err)
		}
		for i, v := range values {
			if t, ok := v.(time.Time); ok {
				values[i] = formatTime(t, dates.isDate(i))
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, int(count)+2)
		if err != nil {
			return count, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return count, fmt.Errorf("failed to write row %d: %w", count+1, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	if err := sw.Flush(); err != nil {
		return count, fmt.Errorf("failed to flush worksheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return count, fmt.Errorf("failed to write workbook: %w", err)
	}
	return count, nil
}

// sheetName trims a query name to the 31 characters a worksheet name allows
func sheetName(name string) string {
	if utf8.RuneCountInString(name) <= 31 {
		return name
	}
	return string([]rune(name)[:31])
}
