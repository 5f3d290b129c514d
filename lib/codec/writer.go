// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/opendcc/liveshare/lib/value"
)

// Writer appends edit-log encoded data to a growing buffer. A Writer
// is not safe for concurrent use.
type Writer struct {
	registry *Registry
	buf      []byte
}

// NewWriter returns an empty Writer that encodes values through
// registry.
func NewWriter(registry *Registry) *Writer {
	return &Writer{registry: registry}
}

// Bytes returns the encoded buffer. The slice aliases the Writer's
// storage until the next Put call.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards the buffer contents, keeping its capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Registry returns the kind table this Writer encodes through.
func (w *Writer) Registry() *Registry { return w.registry }

// PutBool writes b as one byte, 1 for true and 0 for false.
func (w *Writer) PutBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// PutUint8 writes one byte.
func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

// PutChar writes a single-byte character.
func (w *Writer) PutChar(c byte) { w.buf = append(w.buf, c) }

// PutInt32 writes v in native byte order.
func (w *Writer) PutInt32(v int32) { w.buf = binary.NativeEndian.AppendUint32(w.buf, uint32(v)) }

// PutUint32 writes v in native byte order.
func (w *Writer) PutUint32(v uint32) { w.buf = binary.NativeEndian.AppendUint32(w.buf, v) }

// PutInt64 writes v in native byte order.
func (w *Writer) PutInt64(v int64) { w.buf = binary.NativeEndian.AppendUint64(w.buf, uint64(v)) }

// PutUint64 writes v in native byte order.
func (w *Writer) PutUint64(v uint64) { w.buf = binary.NativeEndian.AppendUint64(w.buf, v) }

// PutHalf writes the 16 IEEE half-precision bits of h.
func (w *Writer) PutHalf(h value.Half) { w.buf = binary.NativeEndian.AppendUint16(w.buf, h.Bits()) }

// PutFloat32 writes the IEEE bits of f in native byte order.
func (w *Writer) PutFloat32(f float32) {
	w.buf = binary.NativeEndian.AppendUint32(w.buf, math.Float32bits(f))
}

// PutFloat64 writes the IEEE bits of f in native byte order.
func (w *Writer) PutFloat64(f float64) {
	w.buf = binary.NativeEndian.AppendUint64(w.buf, math.Float64bits(f))
}

// PutString writes a u64 byte length followed by the raw bytes.
func (w *Writer) PutString(s string) {
	w.PutUint64(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// PutRaw appends b without a length prefix.
func (w *Writer) PutRaw(b []byte) { w.buf = append(w.buf, b...) }

// PutPath writes p in string form.
func (w *Writer) PutPath(p value.Path) { w.PutString(string(p)) }

// PutToken writes t in string form.
func (w *Writer) PutToken(t value.Token) { w.PutString(string(t)) }

// PutValue writes the i32 kind discriminant of v followed by its
// payload. An empty value is written as Void with no payload.
func (w *Writer) PutValue(v value.Value) error {
	kind := v.Kind()
	w.PutInt32(int32(kind))
	if kind == value.KindVoid {
		return nil
	}
	entry := w.registry.lookup(kind)
	if entry == nil {
		return fmt.Errorf("codec: no encoder registered for kind %v", kind)
	}
	if v.IsArray() && !kind.SupportsArray() {
		return fmt.Errorf("codec: kind %v does not support arrays", kind)
	}
	if err := entry.encode(w, v); err != nil {
		return fmt.Errorf("encoding %v: %w", kind, err)
	}
	return nil
}

// PutDictionary writes a u64 entry count followed by (key, Value)
// pairs in sorted key order, so equal dictionaries encode to equal
// bytes.
func (w *Writer) PutDictionary(d value.Dictionary) error {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	w.PutUint64(uint64(len(keys)))
	for _, key := range keys {
		w.PutString(key)
		if err := w.PutValue(d[key]); err != nil {
			return fmt.Errorf("dictionary key %q: %w", key, err)
		}
	}
	return nil
}

func (w *Writer) putLayerOffset(o value.LayerOffset) {
	w.PutFloat64(o.Offset)
	w.PutFloat64(o.Scale)
}
