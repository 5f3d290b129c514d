// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/opendcc/liveshare/lib/value"
)

// Registry is the immutable kind-discriminant table shared by a Writer
// and every Reader that decodes its output. Build one with NewRegistry
// or use the process-wide Standard table; both hold the same entries.
type Registry struct {
	entries [value.NumKinds]*entry
}

type entry struct {
	encode func(*Writer, value.Value) error
	decode func(*Reader) (value.Value, error)
}

var standard = sync.OnceValue(NewRegistry)

// Standard returns the process-wide registry, built on first use.
func Standard() *Registry { return standard() }

// Kinds returns the registered kinds in discriminant order.
func (reg *Registry) Kinds() []value.Kind {
	var kinds []value.Kind
	for k, e := range reg.entries {
		if e != nil {
			kinds = append(kinds, value.Kind(k))
		}
	}
	return kinds
}

func (reg *Registry) lookup(kind value.Kind) *entry {
	if kind <= value.KindInvalid || kind >= value.NumKinds {
		return nil
	}
	return reg.entries[kind]
}

// EncodeValue returns the wire encoding of v.
func (reg *Registry) EncodeValue(v value.Value) ([]byte, error) {
	w := NewWriter(reg)
	if err := w.PutValue(v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeValue decodes exactly one value from buf. Trailing bytes are an
// error.
func (reg *Registry) DecodeValue(buf []byte) (value.Value, error) {
	r := NewReader(reg, buf)
	v, err := r.Value()
	if err != nil {
		return value.Value{}, err
	}
	if err := r.Finish(); err != nil {
		return value.Value{}, err
	}
	return v, nil
}

// NewRegistry builds the kind table. Each entry's wire layout is part
// of the protocol; changing one breaks every peer on the bus.
func NewRegistry() *Registry {
	reg := &Registry{}
	set := func(kind value.Kind, e *entry) { reg.entries[kind] = e }

	set(value.KindBool, arrayEntry(1, (*Writer).PutBool, (*Reader).Bool))
	set(value.KindUChar, arrayEntry(1, (*Writer).PutUint8, (*Reader).Uint8))
	set(value.KindInt, arrayEntry(4, (*Writer).PutInt32, (*Reader).Int32))
	set(value.KindUInt, arrayEntry(4, (*Writer).PutUint32, (*Reader).Uint32))
	set(value.KindInt64, arrayEntry(8, (*Writer).PutInt64, (*Reader).Int64))
	set(value.KindUInt64, arrayEntry(8, (*Writer).PutUint64, (*Reader).Uint64))
	set(value.KindHalf, arrayEntry(2, (*Writer).PutHalf, (*Reader).Half))
	set(value.KindFloat, arrayEntry(4, (*Writer).PutFloat32, (*Reader).Float32))
	set(value.KindDouble, arrayEntry(8, (*Writer).PutFloat64, (*Reader).Float64))
	set(value.KindString, arrayEntry(8, (*Writer).PutString, (*Reader).Text))
	set(value.KindToken, arrayEntry(8, (*Writer).PutToken, (*Reader).Token))
	set(value.KindAssetPath, arrayEntry(8,
		func(w *Writer, a value.AssetPath) { w.PutString(string(a)) },
		func(r *Reader) (value.AssetPath, error) {
			s, err := r.Text()
			return value.AssetPath(s), err
		}))

	set(value.KindMatrix2d, arrayEntry(32,
		func(w *Writer, m value.Matrix2d) {
			for _, row := range m {
				putAll(w, row[:], (*Writer).PutFloat64)
			}
		},
		func(r *Reader) (m value.Matrix2d, err error) {
			for i := range m {
				if err = getAll(r, m[i][:], (*Reader).Float64); err != nil {
					return m, err
				}
			}
			return m, nil
		}))
	set(value.KindMatrix3d, arrayEntry(72,
		func(w *Writer, m value.Matrix3d) {
			for _, row := range m {
				putAll(w, row[:], (*Writer).PutFloat64)
			}
		},
		func(r *Reader) (m value.Matrix3d, err error) {
			for i := range m {
				if err = getAll(r, m[i][:], (*Reader).Float64); err != nil {
					return m, err
				}
			}
			return m, nil
		}))
	set(value.KindMatrix4d, arrayEntry(128,
		func(w *Writer, m value.Matrix4d) {
			for _, row := range m {
				putAll(w, row[:], (*Writer).PutFloat64)
			}
		},
		func(r *Reader) (m value.Matrix4d, err error) {
			for i := range m {
				if err = getAll(r, m[i][:], (*Reader).Float64); err != nil {
					return m, err
				}
			}
			return m, nil
		}))

	set(value.KindQuatd, arrayEntry(32,
		func(w *Writer, q value.Quatd) {
			putAll(w, q.Imaginary[:], (*Writer).PutFloat64)
			w.PutFloat64(q.Real)
		},
		func(r *Reader) (q value.Quatd, err error) {
			if err = getAll(r, q.Imaginary[:], (*Reader).Float64); err != nil {
				return q, err
			}
			q.Real, err = r.Float64()
			return q, err
		}))
	set(value.KindQuatf, arrayEntry(16,
		func(w *Writer, q value.Quatf) {
			putAll(w, q.Imaginary[:], (*Writer).PutFloat32)
			w.PutFloat32(q.Real)
		},
		func(r *Reader) (q value.Quatf, err error) {
			if err = getAll(r, q.Imaginary[:], (*Reader).Float32); err != nil {
				return q, err
			}
			q.Real, err = r.Float32()
			return q, err
		}))
	set(value.KindQuath, arrayEntry(8,
		func(w *Writer, q value.Quath) {
			putAll(w, q.Imaginary[:], (*Writer).PutHalf)
			w.PutHalf(q.Real)
		},
		func(r *Reader) (q value.Quath, err error) {
			if err = getAll(r, q.Imaginary[:], (*Reader).Half); err != nil {
				return q, err
			}
			q.Real, err = r.Half()
			return q, err
		}))

	set(value.KindVec2d, vecEntry[value.Vec2d](8, (*Writer).PutFloat64, (*Reader).Float64))
	set(value.KindVec2f, vecEntry[value.Vec2f](4, (*Writer).PutFloat32, (*Reader).Float32))
	set(value.KindVec2h, vecEntry[value.Vec2h](2, (*Writer).PutHalf, (*Reader).Half))
	set(value.KindVec2i, vecEntry[value.Vec2i](4, (*Writer).PutInt32, (*Reader).Int32))
	set(value.KindVec3d, vecEntry[value.Vec3d](8, (*Writer).PutFloat64, (*Reader).Float64))
	set(value.KindVec3f, vecEntry[value.Vec3f](4, (*Writer).PutFloat32, (*Reader).Float32))
	set(value.KindVec3h, vecEntry[value.Vec3h](2, (*Writer).PutHalf, (*Reader).Half))
	set(value.KindVec3i, vecEntry[value.Vec3i](4, (*Writer).PutInt32, (*Reader).Int32))
	set(value.KindVec4d, vecEntry[value.Vec4d](8, (*Writer).PutFloat64, (*Reader).Float64))
	set(value.KindVec4f, vecEntry[value.Vec4f](4, (*Writer).PutFloat32, (*Reader).Float32))
	set(value.KindVec4h, vecEntry[value.Vec4h](2, (*Writer).PutHalf, (*Reader).Half))
	set(value.KindVec4i, vecEntry[value.Vec4i](4, (*Writer).PutInt32, (*Reader).Int32))

	set(value.KindDictionary, scalarEntry((*Writer).PutDictionary, (*Reader).Dictionary))

	set(value.KindTokenListOp, listOpEntry(8, noError((*Writer).PutToken), (*Reader).Token))
	set(value.KindStringListOp, listOpEntry(8, noError((*Writer).PutString), (*Reader).Text))
	set(value.KindPathListOp, listOpEntry(8, noError((*Writer).PutPath), (*Reader).Path))
	set(value.KindReferenceListOp, listOpEntry(40, putReference, getReference))
	set(value.KindIntListOp, listOpEntry(4, noError((*Writer).PutInt32), (*Reader).Int32))
	set(value.KindInt64ListOp, listOpEntry(8, noError((*Writer).PutInt64), (*Reader).Int64))
	set(value.KindUIntListOp, listOpEntry(4, noError((*Writer).PutUint32), (*Reader).Uint32))
	set(value.KindUInt64ListOp, listOpEntry(8, noError((*Writer).PutUint64), (*Reader).Uint64))
	set(value.KindPayloadListOp, listOpEntry(32, noError(putPayload), getPayload))
	set(value.KindUnregisteredValueListOp, listOpEntry(4, putUnregistered, getUnregistered))

	set(value.KindPathVector, sequenceEntry[value.PathVector](8, (*Writer).PutPath, (*Reader).Path))
	set(value.KindTokenVector, sequenceEntry[value.TokenVector](8, (*Writer).PutToken, (*Reader).Token))
	set(value.KindDoubleVector, sequenceEntry[value.DoubleVector](8, (*Writer).PutFloat64, (*Reader).Float64))
	set(value.KindStringVector, sequenceEntry[value.StringVector](8, (*Writer).PutString, (*Reader).Text))
	set(value.KindLayerOffsetVector, sequenceEntry[value.LayerOffsetVector](16, (*Writer).putLayerOffset, (*Reader).layerOffset))

	set(value.KindSpecifier, enumEntry[value.Specifier]())
	set(value.KindPermission, enumEntry[value.Permission]())
	set(value.KindVariability, enumEntry[value.Variability]())

	set(value.KindVariantSelectionMap, scalarEntry(
		func(w *Writer, m value.VariantSelectionMap) error {
			keys := make([]string, 0, len(m))
			for key := range m {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			w.PutUint64(uint64(len(keys)))
			for _, key := range keys {
				w.PutString(key)
				w.PutString(m[key])
			}
			return nil
		},
		func(r *Reader) (value.VariantSelectionMap, error) {
			n, err := r.Count(16)
			if err != nil {
				return nil, err
			}
			m := make(value.VariantSelectionMap, n)
			for i := 0; i < n; i++ {
				key, err := r.Text()
				if err != nil {
					return nil, err
				}
				selection, err := r.Text()
				if err != nil {
					return nil, err
				}
				m[key] = selection
			}
			return m, nil
		}))

	set(value.KindTimeSamples, emptyEntry(value.TimeSamples{}))
	set(value.KindValueBlock, emptyEntry(value.ValueBlock{}))

	set(value.KindPayload, scalarEntry(noError(putPayload), getPayload))

	set(value.KindValue, scalarEntry(
		func(w *Writer, n value.Nested) error { return w.PutValue(n.Value) },
		func(r *Reader) (value.Nested, error) {
			v, err := r.Value()
			return value.Nested{Value: v}, err
		}))
	set(value.KindUnregisteredValue, scalarEntry(putUnregistered, getUnregistered))

	set(value.KindTimeCode, arrayEntry(8,
		func(w *Writer, t value.TimeCode) { w.PutFloat64(float64(t)) },
		func(r *Reader) (value.TimeCode, error) {
			f, err := r.Float64()
			return value.TimeCode(f), err
		}))
	set(value.KindPath, arrayEntry(8, (*Writer).PutPath, (*Reader).Path))

	return reg
}

// arrayEntry encodes an array-capable kind: a one-byte array flag, then
// either a single element or a u64 count and that many elements.
// elemSize is the smallest encoded element, used to validate counts.
func arrayEntry[T any](elemSize int, put func(*Writer, T), get func(*Reader) (T, error)) *entry {
	return &entry{
		encode: func(w *Writer, v value.Value) error {
			if v.IsArray() {
				items, ok := value.Get[[]T](v)
				if !ok {
					return payloadMismatch(v)
				}
				w.PutBool(true)
				w.PutUint64(uint64(len(items)))
				putAll(w, items, put)
				return nil
			}
			item, ok := value.Get[T](v)
			if !ok {
				return payloadMismatch(v)
			}
			w.PutBool(false)
			put(w, item)
			return nil
		},
		decode: func(r *Reader) (value.Value, error) {
			isArray, err := r.Bool()
			if err != nil {
				return value.Value{}, err
			}
			if !isArray {
				item, err := get(r)
				if err != nil {
					return value.Value{}, err
				}
				return value.New(item)
			}
			n, err := r.Count(elemSize)
			if err != nil {
				return value.Value{}, err
			}
			items := make([]T, n)
			if err := getAll(r, items, get); err != nil {
				return value.Value{}, err
			}
			return value.New(items)
		},
	}
}

// scalarEntry encodes a kind that never takes the array form.
func scalarEntry[T any](put func(*Writer, T) error, get func(*Reader) (T, error)) *entry {
	return &entry{
		encode: func(w *Writer, v value.Value) error {
			item, ok := value.Get[T](v)
			if !ok {
				return payloadMismatch(v)
			}
			return put(w, item)
		},
		decode: func(r *Reader) (value.Value, error) {
			item, err := get(r)
			if err != nil {
				return value.Value{}, err
			}
			return value.New(item)
		},
	}
}

// vecEntry encodes a fixed-length vector kind component by component.
func vecEntry[V any, E any](componentSize int, put func(*Writer, E), get func(*Reader) (E, error)) *entry {
	var zero V
	n := len(components[V, E](&zero))
	return arrayEntry(componentSize*n,
		func(w *Writer, v V) { putAll(w, components[V, E](&v), put) },
		func(r *Reader) (V, error) {
			var v V
			err := getAll(r, components[V, E](&v), get)
			return v, err
		})
}

// components views a vector as a slice of its element type.
func components[V any, E any](v *V) []E {
	switch p := any(v).(type) {
	case *value.Vec2d:
		return any(p[:]).([]E)
	case *value.Vec2f:
		return any(p[:]).([]E)
	case *value.Vec2h:
		return any(p[:]).([]E)
	case *value.Vec2i:
		return any(p[:]).([]E)
	case *value.Vec3d:
		return any(p[:]).([]E)
	case *value.Vec3f:
		return any(p[:]).([]E)
	case *value.Vec3h:
		return any(p[:]).([]E)
	case *value.Vec3i:
		return any(p[:]).([]E)
	case *value.Vec4d:
		return any(p[:]).([]E)
	case *value.Vec4f:
		return any(p[:]).([]E)
	case *value.Vec4h:
		return any(p[:]).([]E)
	case *value.Vec4i:
		return any(p[:]).([]E)
	}
	panic(fmt.Sprintf("codec: %T is not a vector type", v))
}

// sequenceEntry encodes a named vector kind (PathVector, DoubleVector)
// as a u64 count followed by the items, with no array flag.
func sequenceEntry[S ~[]E, E any](elemSize int, put func(*Writer, E), get func(*Reader) (E, error)) *entry {
	return scalarEntry(
		func(w *Writer, s S) error {
			w.PutUint64(uint64(len(s)))
			putAll(w, s, put)
			return nil
		},
		func(r *Reader) (S, error) {
			n, err := r.Count(elemSize)
			if err != nil {
				return nil, err
			}
			s := make(S, n)
			err = getAll(r, s, get)
			return s, err
		})
}

func enumEntry[T ~int32]() *entry {
	return scalarEntry(
		func(w *Writer, e T) error {
			w.PutInt32(int32(e))
			return nil
		},
		func(r *Reader) (T, error) {
			v, err := r.Int32()
			return T(v), err
		})
}

// emptyEntry encodes a payload-free kind as a single padding byte.
func emptyEntry[T any](zero T) *entry {
	return scalarEntry(
		func(w *Writer, _ T) error {
			w.PutUint8(0)
			return nil
		},
		func(r *Reader) (T, error) {
			_, err := r.Uint8()
			return zero, err
		})
}

// List-op header bits. A list's bit is set when the list is non-empty;
// absent lists cost nothing.
const (
	listOpIsExplicit = 1 << iota
	listOpExplicit
	listOpAdded
	listOpDeleted
	listOpOrdered
	listOpPrepended
	listOpAppended
	listOpAllBits = 1<<iota - 1
)

type listOpSection[T any] struct {
	bit   uint8
	items *[]T
}

func listOpEntry[T any](elemSize int, put func(*Writer, T) error, get func(*Reader) (T, error)) *entry {
	// Wire order of the lists, independent of their header bit order.
	sections := func(op *value.ListOp[T]) []listOpSection[T] {
		return []listOpSection[T]{
			{listOpExplicit, &op.ExplicitItems},
			{listOpAdded, &op.AddedItems},
			{listOpPrepended, &op.PrependedItems},
			{listOpAppended, &op.AppendedItems},
			{listOpDeleted, &op.DeletedItems},
			{listOpOrdered, &op.OrderedItems},
		}
	}
	return scalarEntry(
		func(w *Writer, op value.ListOp[T]) error {
			var header uint8
			if op.Explicit {
				header |= listOpIsExplicit
			}
			parts := sections(&op)
			for _, part := range parts {
				if len(*part.items) > 0 {
					header |= part.bit
				}
			}
			w.PutUint8(header)
			for _, part := range parts {
				if header&part.bit == 0 {
					continue
				}
				w.PutUint64(uint64(len(*part.items)))
				for _, item := range *part.items {
					if err := put(w, item); err != nil {
						return err
					}
				}
			}
			return nil
		},
		func(r *Reader) (value.ListOp[T], error) {
			var op value.ListOp[T]
			header, err := r.Uint8()
			if err != nil {
				return op, err
			}
			if header&^uint8(listOpAllBits) != 0 {
				return op, r.corrupt(0, fmt.Sprintf("unknown list-op header bits %#x", header))
			}
			op.Explicit = header&listOpIsExplicit != 0
			for _, part := range sections(&op) {
				if header&part.bit == 0 {
					continue
				}
				n, err := r.Count(elemSize)
				if err != nil {
					return op, err
				}
				items := make([]T, n)
				if err := getAll(r, items, get); err != nil {
					return op, err
				}
				*part.items = items
			}
			return op, nil
		})
}

func putPayload(w *Writer, p value.Payload) {
	w.PutString(p.AssetPath)
	w.PutPath(p.PrimPath)
	w.putLayerOffset(p.LayerOffset)
}

func getPayload(r *Reader) (value.Payload, error) {
	var p value.Payload
	var err error
	if p.AssetPath, err = r.Text(); err != nil {
		return p, err
	}
	if p.PrimPath, err = r.Path(); err != nil {
		return p, err
	}
	p.LayerOffset, err = r.layerOffset()
	return p, err
}

func putReference(w *Writer, ref value.Reference) error {
	w.PutString(ref.AssetPath)
	w.PutPath(ref.PrimPath)
	w.putLayerOffset(ref.LayerOffset)
	return w.PutDictionary(ref.CustomData)
}

func getReference(r *Reader) (value.Reference, error) {
	var ref value.Reference
	var err error
	if ref.AssetPath, err = r.Text(); err != nil {
		return ref, err
	}
	if ref.PrimPath, err = r.Path(); err != nil {
		return ref, err
	}
	if ref.LayerOffset, err = r.layerOffset(); err != nil {
		return ref, err
	}
	ref.CustomData, err = r.Dictionary()
	return ref, err
}

func putUnregistered(w *Writer, u value.Unregistered) error {
	return w.PutValue(u.Value)
}

func getUnregistered(r *Reader) (value.Unregistered, error) {
	v, err := r.Value()
	return value.Unregistered{Value: v}, err
}

func putAll[T any](w *Writer, items []T, put func(*Writer, T)) {
	for _, item := range items {
		put(w, item)
	}
}

func getAll[T any](r *Reader, items []T, get func(*Reader) (T, error)) error {
	for i := range items {
		item, err := get(r)
		if err != nil {
			return err
		}
		items[i] = item
	}
	return nil
}

func noError[T any](put func(*Writer, T)) func(*Writer, T) error {
	return func(w *Writer, item T) error {
		put(w, item)
		return nil
	}
}

func payloadMismatch(v value.Value) error {
	return fmt.Errorf("payload of %v value has unexpected Go type %T", v.Kind(), v.Interface())
}
