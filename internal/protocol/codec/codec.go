// Package codec implements the fixed byte layout used to store payloads and
// to exchange payloads and party info between nodes.
//
// Every variable length field is prefixed by its length as a big-endian
// uint64. Sequences are prefixed by their element count the same way.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	lenSize = 8
	// maxField bounds a single field so corrupt prefixes cannot force huge allocations.
	maxField = 64 << 20
)

var ErrShortBuffer = errors.New("codec: buffer too short")

type writer struct {
	buf []byte
}

func (w *writer) uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *writer) bytes(b []byte) {
	w.uint64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) string(s string) {
	w.bytes([]byte(s))
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) uint64() (uint64, error) {
	if len(r.buf)-r.off < lenSize {
		return 0, fmt.Errorf("read length at offset %d: %w", r.off, ErrShortBuffer)
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += lenSize
	return v, nil
}

func (r *reader) count() (int, error) {
	n, err := r.uint64()
	if err != nil {
		return 0, err
	}
	// every element takes at least one length prefix
	if n > uint64(len(r.buf)-r.off)/lenSize {
		return 0, fmt.Errorf("element count %d exceeds remaining input: %w", n, ErrShortBuffer)
	}
	return int(n), nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint64()
	if err != nil {
		return nil, err
	}
	if n > maxField {
		return nil, fmt.Errorf("field length %d exceeds limit", n)
	}
	if uint64(len(r.buf)-r.off) < n {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, r.off, ErrShortBuffer)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}

func (r *reader) string() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *reader) done() error {
	if r.off != len(r.buf) {
		return fmt.Errorf("codec: %d trailing bytes", len(r.buf)-r.off)
	}
	return nil
}
