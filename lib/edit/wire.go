// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package edit

import (
	"errors"
	"fmt"

	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/value"
)

// ErrUnknownType is returned when a buffer starts with a discriminant
// outside the record table. Peers running a newer protocol may send
// such records; receivers skip them.
var ErrUnknownType = errors.New("edit: unknown record type")

// Encode returns the wire form of r.
func Encode(registry *codec.Registry, r Record) ([]byte, error) {
	w := codec.NewWriter(registry)
	if err := Write(w, r); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode parses exactly one record from data. Trailing bytes are a
// corrupt-data error.
func Decode(registry *codec.Registry, data []byte) (Record, error) {
	reader := codec.NewReader(registry, data)
	r, err := Read(reader)
	if err != nil {
		return nil, err
	}
	if err := reader.Finish(); err != nil {
		return nil, err
	}
	return r, nil
}

// Write appends the wire form of r to w: the u64 type discriminant,
// the variant's fields, then the layer identifier for every variant
// except TransactionBoundary.
func Write(w *codec.Writer, r Record) error {
	w.PutUint64(uint64(r.Type()))
	var err error
	switch e := r.(type) {
	case SetField:
		w.PutPath(e.Path)
		w.PutToken(e.Field)
		err = w.PutValue(e.Value)
		w.PutString(e.Layer)
	case SetFieldDictValueByKey:
		w.PutPath(e.Path)
		w.PutToken(e.Field)
		w.PutToken(e.KeyPath)
		err = w.PutValue(e.Value)
		w.PutString(e.Layer)
	case SetTimeSample:
		w.PutPath(e.Path)
		w.PutFloat64(e.Time)
		err = w.PutValue(e.Value)
		w.PutString(e.Layer)
	case CreateSpec:
		w.PutPath(e.Path)
		w.PutInt32(int32(e.SpecType))
		w.PutBool(e.Inert)
		w.PutString(e.Layer)
	case DeleteSpec:
		w.PutPath(e.Path)
		w.PutBool(e.Inert)
		w.PutString(e.Layer)
	case MoveSpec:
		w.PutPath(e.OldPath)
		w.PutPath(e.NewPath)
		w.PutString(e.Layer)
	case PushChild:
		w.PutPath(e.Parent)
		w.PutToken(e.Field)
		err = w.PutValue(e.Value)
		w.PutString(e.Layer)
	case PopChild:
		w.PutPath(e.Parent)
		w.PutToken(e.Field)
		err = w.PutValue(e.OldValue)
		w.PutString(e.Layer)
	case TransactionBoundary:
	default:
		return fmt.Errorf("edit: cannot encode %T", r)
	}
	if err != nil {
		return fmt.Errorf("encoding %v: %w", r.Type(), err)
	}
	return nil
}

// Read decodes one record starting at the reader's position.
func Read(r *codec.Reader) (Record, error) {
	discriminant, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	t := Type(discriminant)
	var record Record
	switch t {
	case TypeSetField:
		record, err = readSetField(r)
	case TypeSetFieldDictValueByKey:
		record, err = readSetFieldDictValueByKey(r)
	case TypeSetTimeSample:
		record, err = readSetTimeSample(r)
	case TypeCreateSpec:
		record, err = readCreateSpec(r)
	case TypeDeleteSpec:
		record, err = readDeleteSpec(r)
	case TypeMoveSpec:
		record, err = readMoveSpec(r)
	case TypePushChild:
		record, err = readPushChild(r)
	case TypePopChild:
		record, err = readPopChild(r)
	case TypeTransactionBoundary:
		record = TransactionBoundary{}
	default:
		return nil, fmt.Errorf("%w %d", ErrUnknownType, discriminant)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", t, err)
	}
	return record, nil
}

// fieldReader accumulates the first error so each variant's decoder
// reads straight through its field list.
type fieldReader struct {
	r   *codec.Reader
	err error
}

func (f *fieldReader) path() value.Path {
	if f.err != nil {
		return ""
	}
	var p value.Path
	p, f.err = f.r.Path()
	return p
}

func (f *fieldReader) token() value.Token {
	if f.err != nil {
		return ""
	}
	var t value.Token
	t, f.err = f.r.Token()
	return t
}

func (f *fieldReader) text() string {
	if f.err != nil {
		return ""
	}
	var s string
	s, f.err = f.r.Text()
	return s
}

func (f *fieldReader) value() value.Value {
	if f.err != nil {
		return value.Value{}
	}
	var v value.Value
	v, f.err = f.r.Value()
	return v
}

func (f *fieldReader) float64() float64 {
	if f.err != nil {
		return 0
	}
	var x float64
	x, f.err = f.r.Float64()
	return x
}

func (f *fieldReader) int32() int32 {
	if f.err != nil {
		return 0
	}
	var x int32
	x, f.err = f.r.Int32()
	return x
}

func (f *fieldReader) bool() bool {
	if f.err != nil {
		return false
	}
	var b bool
	b, f.err = f.r.Bool()
	return b
}

func readSetField(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := SetField{Path: f.path(), Field: f.token(), Value: f.value(), Layer: f.text()}
	return e, f.err
}

func readSetFieldDictValueByKey(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := SetFieldDictValueByKey{Path: f.path(), Field: f.token(), KeyPath: f.token(), Value: f.value(), Layer: f.text()}
	return e, f.err
}

func readSetTimeSample(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := SetTimeSample{Path: f.path(), Time: f.float64(), Value: f.value(), Layer: f.text()}
	return e, f.err
}

func readCreateSpec(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := CreateSpec{Path: f.path(), SpecType: value.SpecType(f.int32()), Inert: f.bool(), Layer: f.text()}
	return e, f.err
}

func readDeleteSpec(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := DeleteSpec{Path: f.path(), Inert: f.bool(), Layer: f.text()}
	return e, f.err
}

func readMoveSpec(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := MoveSpec{OldPath: f.path(), NewPath: f.path(), Layer: f.text()}
	return e, f.err
}

func readPushChild(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := PushChild{Parent: f.path(), Field: f.token(), Value: f.value(), Layer: f.text()}
	return e, f.err
}

func readPopChild(r *codec.Reader) (Record, error) {
	f := &fieldReader{r: r}
	e := PopChild{Parent: f.path(), Field: f.token(), OldValue: f.value(), Layer: f.text()}
	return e, f.err
}
