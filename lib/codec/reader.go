// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/opendcc/liveshare/lib/value"
)

// maxNesting bounds Value recursion (dictionaries of dictionaries,
// nested values) so hostile input cannot exhaust the stack.
const maxNesting = 64

// Reader decodes edit-log data from a byte slice. Every read checks
// the remaining length first and returns a *CorruptDataError instead
// of reading past the end. A Reader is not safe for concurrent use.
type Reader struct {
	registry *Registry
	buf      []byte
	offset   int
	depth    int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(registry *Registry, buf []byte) *Reader {
	return &Reader{registry: registry, buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.offset }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.offset }

// Registry returns the kind table this Reader decodes through.
func (r *Reader) Registry() *Registry { return r.registry }

// Finish returns an error if any bytes remain unread.
func (r *Reader) Finish() error {
	if remaining := r.Remaining(); remaining != 0 {
		return r.corrupt(0, fmt.Sprintf("%d trailing bytes", remaining))
	}
	return nil
}

func (r *Reader) corrupt(want int, reason string) error {
	return &CorruptDataError{
		Offset:    r.offset,
		Want:      want,
		Remaining: r.Remaining(),
		Reason:    reason,
	}
}

// take returns the next n bytes and advances past them.
func (r *Reader) take(n int, what string) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, r.corrupt(n, "short read of "+what)
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// Bool reads one byte; any nonzero value is true.
func (r *Reader) Bool() (bool, error) {
	b, err := r.take(1, "bool")
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1, "u8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Char reads a single-byte character.
func (r *Reader) Char() (byte, error) {
	b, err := r.take(1, "char")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a native-order u32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4, "u32")
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(b), nil
}

// Int32 reads a native-order i32.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Uint64 reads a native-order u64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8, "u64")
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(b), nil
}

// Int64 reads a native-order i64.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Half reads 16 half-precision bits.
func (r *Reader) Half() (value.Half, error) {
	b, err := r.take(2, "half")
	if err != nil {
		return 0, err
	}
	return value.Half(binary.NativeEndian.Uint16(b)), nil
}

// Float32 reads a native-order IEEE single.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

// Float64 reads a native-order IEEE double.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

// Count reads a u64 element count and checks that count elements of at
// least minSize bytes each fit in the remaining buffer.
func (r *Reader) Count(minSize int) (int, error) {
	start := r.offset
	n, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	if minSize < 1 {
		minSize = 1
	}
	if n > uint64(r.Remaining()/minSize) {
		r.offset = start
		return 0, &CorruptDataError{
			Offset:    start,
			Remaining: len(r.buf) - start,
			Reason:    fmt.Sprintf("count %d exceeds remaining buffer", n),
		}
	}
	return int(n), nil
}

// Text reads a u64 length-prefixed string.
func (r *Reader) Text() (string, error) {
	n, err := r.Count(1)
	if err != nil {
		return "", err
	}
	b, err := r.take(n, "string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Path reads a string-encoded scene path.
func (r *Reader) Path() (value.Path, error) {
	s, err := r.Text()
	return value.Path(s), err
}

// Token reads a string-encoded token.
func (r *Reader) Token() (value.Token, error) {
	s, err := r.Text()
	return value.Token(s), err
}

// Value reads an i32 kind discriminant followed by that kind's payload.
func (r *Reader) Value() (value.Value, error) {
	start := r.offset
	discriminant, err := r.Int32()
	if err != nil {
		return value.Value{}, err
	}
	kind := value.Kind(discriminant)
	if kind == value.KindVoid {
		return value.Value{}, nil
	}
	entry := r.registry.lookup(kind)
	if entry == nil {
		r.offset = start
		return value.Value{}, r.corrupt(0, fmt.Sprintf("invalid kind discriminant %d", discriminant))
	}
	if r.depth >= maxNesting {
		return value.Value{}, r.corrupt(0, "values nested too deeply")
	}
	r.depth++
	defer func() { r.depth-- }()
	v, err := entry.decode(r)
	if err != nil {
		return value.Value{}, fmt.Errorf("decoding %v: %w", kind, err)
	}
	return v, nil
}

// Dictionary reads a u64 entry count followed by (key, Value) pairs.
func (r *Reader) Dictionary() (value.Dictionary, error) {
	// Smallest entry: empty key (8) plus a Void value (4).
	n, err := r.Count(12)
	if err != nil {
		return nil, err
	}
	d := make(value.Dictionary, n)
	for i := 0; i < n; i++ {
		key, err := r.Text()
		if err != nil {
			return nil, err
		}
		v, err := r.Value()
		if err != nil {
			return nil, fmt.Errorf("dictionary key %q: %w", key, err)
		}
		d[key] = v
	}
	return d, nil
}

func (r *Reader) layerOffset() (value.LayerOffset, error) {
	offset, err := r.Float64()
	if err != nil {
		return value.LayerOffset{}, err
	}
	scale, err := r.Float64()
	if err != nil {
		return value.LayerOffset{}, err
	}
	return value.LayerOffset{Offset: offset, Scale: scale}, nil
}
