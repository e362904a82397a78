package table

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/forcebridge/pkg/compression"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

func accounts() *Table {
	t := New("accounts", "Id", "Name", "AnnualRevenue")
	_ = t.Append("001A", "Acme, Inc.", 1250000.5)
	_ = t.Append("001B", `Globex "West"`, nil)
	return t
}

func TestAppendChecksWidth(t *testing.T) {
	tbl := New("t", "a", "b")
	err := tbl.Append("only one")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, 0, tbl.Len())
}

func TestSingleCell(t *testing.T) {
	tbl := SingleCell("out", "json_records", "[]")
	assert.Equal(t, []string{"json_records"}, tbl.Columns)
	require.Equal(t, 1, tbl.Len())
	v, ok := tbl.Cell(0, "json_records")
	require.True(t, ok)
	assert.Equal(t, "[]", v)

	_, ok = tbl.Cell(1, "json_records")
	assert.False(t, ok)
	_, ok = tbl.Cell(0, "missing")
	assert.False(t, ok)
}

func TestRecordsSkipsNil(t *testing.T) {
	recs := accounts().Records()
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]interface{}{"Id": "001A", "Name": "Acme, Inc.", "AnnualRevenue": 1250000.5}, recs[0])
	assert.NotContains(t, recs[1], "AnnualRevenue")
}

func TestFromRecords(t *testing.T) {
	tbl := FromRecords("x", []map[string]interface{}{
		{"attributes": map[string]interface{}{"type": "Account"}, "Name": "Acme", "Id": "001A"},
		{"Id": "001B", "Industry": "Energy"},
	}, "attributes")

	assert.Equal(t, []string{"Id", "Industry", "Name"}, tbl.Columns)
	assert.Equal(t, []interface{}{"001A", nil, "Acme"}, tbl.Rows[0])
	assert.Equal(t, []interface{}{"001B", "Energy", nil}, tbl.Rows[1])
}

func TestWithColumn(t *testing.T) {
	src := accounts()
	out := src.WithColumn("sf__Id", func(i int) interface{} { return i })

	assert.Equal(t, []string{"Id", "Name", "AnnualRevenue", "sf__Id"}, out.Columns)
	assert.Equal(t, 1, out.Rows[1][3])
	assert.Len(t, src.Columns, 3, "source table must not change")
	assert.Len(t, src.Rows[0], 3)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "12.5", FormatValue(12.5))
	assert.Equal(t, "3", FormatValue(3))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, `{"type":"Account"}`, FormatValue(map[string]interface{}{"type": "Account"}))
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, accounts()))
	assert.Equal(t, "Id,Name,AnnualRevenue\n001A,\"Acme, Inc.\",1250000.5\n001B,\"Globex \"\"West\"\"\",\n", buf.String())

	got, err := ReadCSV(&buf, "accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Name", "AnnualRevenue"}, got.Columns)
	assert.Equal(t, []interface{}{"001B", `Globex "West"`, ""}, got.Rows[1])
}

func TestReadCSVEmpty(t *testing.T) {
	got, err := ReadCSV(bytes.NewReader(nil), "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestJSONKeepsColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, accounts()))
	assert.Equal(t, "[\n  {\"Id\":\"001A\",\"Name\":\"Acme, Inc.\",\"AnnualRevenue\":1250000.5},\n"+
		"  {\"Id\":\"001B\",\"Name\":\"Globex \\\"West\\\"\",\"AnnualRevenue\":null}\n]", buf.String())

	got, err := ReadJSON(&buf, "accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"AnnualRevenue", "Id", "Name"}, got.Columns)
	assert.Equal(t, 2, got.Len())
}

func TestWriteEmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, New("none", "Id")))
	assert.Equal(t, "[]", buf.String())
}

func TestFileRoundTripThroughCompression(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []Format{FormatCSV, FormatJSON} {
		for _, alg := range []compression.Algorithm{compression.None, compression.Gzip, compression.Zstd, compression.LZ4, compression.Snappy, compression.S2} {
			path := FileName(dir, "accounts", format, alg)
			t.Run(filepath.Base(path), func(t *testing.T) {
				require.NoError(t, WriteFile(path, accounts(), format, alg))

				got, err := ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "accounts", got.Name)
				assert.Equal(t, 2, got.Len())
				assert.ElementsMatch(t, []string{"Id", "Name", "AnnualRevenue"}, got.Columns)

				id, _ := got.Cell(0, "Id")
				assert.Equal(t, "001A", id)
			})
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("in/contacts.json.zst")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatFromPath("in/contacts")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = FormatFromPath("in/contacts.xlsx")
	assert.Error(t, err)
}
