// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package wire implements the length-prefixed framing used between the
// launcher client and the gateway. Strings and byte blobs carry a
// big-endian uint32 length prefix; booleans are a single byte.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Field size limits enforced on read.
const (
	MaxLoginLength       = 255
	MaxPasswordBlob      = 2048
	MaxFingerprintBlob   = 16384
	MaxReasonLength      = 1024
	MaxProfilePayload    = 1 << 20
	MaxSignatureLength   = 4096
	MaxAccessTokenLength = 255
)

// Response markers.
const (
	MarkerOK    byte = 0x00
	MarkerError byte = 0x01
)

// Reader decodes length-prefixed fields from a stream.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadString reads a length-prefixed UTF-8 string of at most max bytes.
func (r *Reader) ReadString(max int) (string, error) {
	b, err := r.ReadBytes(max)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", oops.Code("WIRE_INVALID_UTF8").Errorf("string field is not valid UTF-8")
	}
	return string(b), nil
}

// ReadBytes reads a length-prefixed byte blob of at most max bytes.
func (r *Reader) ReadBytes(max int) ([]byte, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if int(n) > max {
		return nil, oops.Code("WIRE_FIELD_TOO_LONG").
			With("length", n).
			With("max", max).
			Errorf("field length %d exceeds limit %d", n, max)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, oops.Code("WIRE_READ_FAILED").With("operation", "read field body").Wrap(err)
	}
	return b, nil
}

// ReadBool reads a single-byte boolean. Any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return false, oops.Code("WIRE_READ_FAILED").With("operation", "read bool").Wrap(err)
	}
	return b[0] != 0, nil
}

func (r *Reader) readLength() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, oops.Code("WIRE_READ_FAILED").With("operation", "read length prefix").Wrap(err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// Writer encodes length-prefixed fields to a stream. Output is buffered;
// callers must Flush before the response is considered sent.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) error {
	return w.WriteBytes([]byte(s))
}

// WriteBytes writes a length-prefixed byte blob.
func (w *Writer) WriteBytes(b []byte) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(b)))
	if _, err := w.w.Write(buf[:]); err != nil {
		return oops.Code("WIRE_WRITE_FAILED").With("operation", "write length prefix").Wrap(err)
	}
	if _, err := w.w.Write(b); err != nil {
		return oops.Code("WIRE_WRITE_FAILED").With("operation", "write field body").Wrap(err)
	}
	return nil
}

// WriteBool writes a single-byte boolean.
func (w *Writer) WriteBool(v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	return w.WriteByte(b)
}

// WriteByte writes a raw byte, used for response markers.
func (w *Writer) WriteByte(b byte) error {
	if err := w.w.WriteByte(b); err != nil {
		return oops.Code("WIRE_WRITE_FAILED").With("operation", "write byte").Wrap(err)
	}
	return nil
}

// WriteUint32 writes a big-endian uint32, used for the profile count.
func (w *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := w.w.Write(buf[:]); err != nil {
		return oops.Code("WIRE_WRITE_FAILED").With("operation", "write uint32").Wrap(err)
	}
	return nil
}

// Flush writes any buffered output to the underlying stream.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return oops.Code("WIRE_WRITE_FAILED").With("operation", "flush").Wrap(err)
	}
	return nil
}
