package table

import (
	"bytes"
	"io"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/json"
)

// orderedRow encodes one row as an object whose keys follow column order.
type orderedRow struct {
	columns []string
	values  []interface{}
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v interface{}
		if i < len(r.values) {
			v = r.values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSON writes the rows as a JSON array of objects, one per line.
func WriteJSON(w io.Writer, t *Table) error {
	enc := json.NewStreamingEncoder(w)
	enc.SetIndent("  ")
	for _, row := range t.Rows {
		if err := enc.Encode(orderedRow{columns: t.Columns, values: row}); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode row")
		}
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close json array")
	}
	return nil
}

// ReadJSON reads an array of objects. Columns are the sorted union of keys.
func ReadJSON(r io.Reader, name string) (*Table, error) {
	var records []map[string]interface{}
	if err := json.Decode(r, &records); err != nil {
		if err == io.EOF {
			return New(name), nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode json table")
	}
	return FromRecords(name, records), nil
}
