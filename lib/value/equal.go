// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"math"
	"reflect"
)

var valueType = reflect.TypeOf(Value{})

// Equal reports whether a and b hold the same kind, array flag, and
// structurally equal payloads. Nil and empty slices or maps compare
// equal, so a decoded value equals the value that was encoded even
// when the original held a nil list. NaN equals NaN.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() || a.array != b.array {
		return false
	}
	if a.IsEmpty() {
		return true
	}
	return deepEqual(reflect.ValueOf(a.data), reflect.ValueOf(b.data))
}

// Equal is the method form of the package-level Equal.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

func deepEqual(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}
	if x.Type() == valueType {
		return Equal(x.Interface().(Value), y.Interface().(Value))
	}
	switch x.Kind() {
	case reflect.Slice, reflect.Array:
		if x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !deepEqual(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if x.Len() != y.Len() {
			return false
		}
		iter := x.MapRange()
		for iter.Next() {
			other := y.MapIndex(iter.Key())
			if !other.IsValid() || !deepEqual(iter.Value(), other) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !deepEqual(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Float32, reflect.Float64:
		xf, yf := x.Float(), y.Float()
		return xf == yf || (math.IsNaN(xf) && math.IsNaN(yf))
	case reflect.Bool:
		return x.Bool() == y.Bool()
	case reflect.String:
		return x.String() == y.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return x.Int() == y.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return x.Uint() == y.Uint()
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() == y.IsNil()
		}
		return deepEqual(x.Elem(), y.Elem())
	}
	return false
}

func sliceLen(data any) int {
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return 1
	}
	return rv.Len()
}
