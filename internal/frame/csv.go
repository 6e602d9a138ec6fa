package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"
)

// WriteCSV writes the frame with a header row. The first column is the timestamp in
// RFC 3339 with nanoseconds; NaN floats are written as empty cells.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := append([]string{TimestampColumn}, f.order...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))

	for i, ts := range f.index {
		record[0] = ts.UTC().Format(time.RFC3339Nano)

		for j, name := range f.order {
			if col, ok := f.floats[name]; ok {
				record[j+1] = formatFloat(col[i])
			} else {
				record[j+1] = f.strings[name][i]
			}
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()

	return writer.Error()
}

// ReadCSV parses a frame written by WriteCSV. Columns listed in stringColumns are always
// read as strings; any other column is a float column when every non-empty cell parses
// as a float and a string column otherwise.
func ReadCSV(r io.Reader, stringColumns []string) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header")
	}

	header := records[0]
	if len(header) == 0 || header[0] != TimestampColumn {
		return nil, fmt.Errorf("csv first column must be %q", TimestampColumn)
	}

	rows := records[1:]
	index := make([]time.Time, len(rows))

	for i, rec := range rows {
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timestamp %q: %w", i, rec[0], err)
		}

		index[i] = ts.UTC()
	}

	f := New(nil)
	f.index = index

	for j := 1; j < len(header); j++ {
		name := header[j]

		raw := make([]string, len(rows))
		for i, rec := range rows {
			raw[i] = rec[j]
		}

		if slices.Contains(stringColumns, name) {
			f.setString(name, raw)

			continue
		}

		if values, ok := parseFloats(raw); ok {
			f.setFloat(name, values)
		} else {
			f.setString(name, raw)
		}
	}

	return f, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloats(raw []string) ([]float64, bool) {
	values := make([]float64, len(raw))

	for i, cell := range raw {
		if cell == "" {
			values[i] = math.NaN()

			continue
		}

		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}

		values[i] = v
	}

	return values, true
}
