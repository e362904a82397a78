package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/forcebridge/pkg/compression"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// Format is a table file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv or json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported output format %q", s)
	}
}

// FormatFromPath detects the format from the file name, ignoring any
// compression suffix.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(compression.TrimExtension(path)), ".")
	if ext == "" {
		return "", errors.Newf(errors.ErrorTypeConfig, "cannot infer table format of %s", path)
	}
	return ParseFormat(ext)
}

// FileName joins dir, base and the suffixes for format and alg.
func FileName(dir, base string, format Format, alg compression.Algorithm) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s%s", base, format, compression.Extension(alg)))
}

// WriteFile writes t to path, creating or truncating it.
func WriteFile(path string, t *Table, format Format, alg compression.Algorithm) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output file")
		}
	}()

	w, err := compression.NewWriter(f, alg, compression.Default)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}

	switch format {
	case FormatJSON:
		err = WriteJSON(w, t)
	default:
		err = WriteCSV(w, t)
	}
	if err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream")
	}
	return nil
}

// ReadFile reads a table whose format and compression are inferred from
// path. The table is named after the file.
func ReadFile(path string) (*Table, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input file")
	}
	defer f.Close()

	r, err := compression.NewReader(f, compression.FromPath(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open compressed stream")
	}
	defer r.Close()

	name := strings.TrimSuffix(filepath.Base(compression.TrimExtension(path)), "."+string(format))
	if format == FormatJSON {
		return ReadJSON(r, name)
	}
	return ReadCSV(r, name)
}
