package table

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// WriteCSV writes a header line followed by every row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write header")
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = FormatValue(row[j])
			}
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush csv")
	}
	return nil
}

// ReadCSV reads a table whose first line is the header. Every cell is a
// string; empty cells stay "".
func ReadCSV(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return New(name), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read csv header")
	}

	t := New(name, header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("failed to read csv row %d", t.Len()+1))
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
