// Package json provides JSON serialization on top of goccy/go-json with
// pooled buffers. API bodies, single-cell payloads and table files all go
// through here.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is re-exported so callers do not import two JSON packages.
type RawMessage = gojson.RawMessage

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	// Oversized buffers are left for the GC
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalString encodes v without HTML escaping and returns it as a string.
// Used for payloads that end up inside a single table cell.
func MarshalString(v interface{}) (string, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder appends a newline
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Decode reads one JSON value from r into v.
func Decode(r io.Reader, v interface{}) error {
	return gojson.NewDecoder(r).Decode(v)
}

// NewEncoder returns an encoder writing to w with HTML escaping disabled.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// StreamingEncoder writes a JSON array element by element.
type StreamingEncoder struct {
	w       io.Writer
	first   bool
	started bool
	indent  string
}

// NewStreamingEncoder creates a new streaming array encoder
func NewStreamingEncoder(w io.Writer) *StreamingEncoder {
	return &StreamingEncoder{w: w, first: true}
}

// SetIndent enables one element per line with the given indent.
func (se *StreamingEncoder) SetIndent(indent string) {
	se.indent = indent
}

// Encode encodes a single array element
func (se *StreamingEncoder) Encode(v interface{}) error {
	if !se.started {
		if _, err := se.w.Write([]byte("[")); err != nil {
			return err
		}
		se.started = true
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	if !se.first {
		buf.WriteByte(',')
	}
	if se.indent != "" {
		buf.WriteByte('\n')
		buf.WriteString(se.indent)
	}
	se.first = false

	data, err := gojson.MarshalNoEscape(v)
	if err != nil {
		return err
	}
	buf.Write(data)

	_, err = se.w.Write(buf.Bytes())
	return err
}

// Close terminates the array. An encoder that saw no element writes [].
func (se *StreamingEncoder) Close() error {
	if !se.started {
		_, err := se.w.Write([]byte("[]"))
		return err
	}
	closing := "]"
	if se.indent != "" {
		closing = "\n]"
	}
	_, err := se.w.Write([]byte(closing))
	return err
}
