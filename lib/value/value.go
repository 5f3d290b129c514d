// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"sort"
	"strings"
)

// Value is an immutable tagged union over the kinds in the Kind table.
// The zero Value is empty: its Kind is KindVoid and it carries no data.
//
// Array values hold a Go slice of the element type ([]float32 for a
// Float array, []Vec3f for a Vec3f array). Only kinds for which
// Kind.SupportsArray is true may be arrays.
type Value struct {
	kind  Kind
	array bool
	data  any
}

// Empty is the empty value.
var Empty = Value{}

// New wraps x in a Value, returning an error if x's Go type does not
// correspond to any Kind. Passing a Value returns it unchanged.
func New(x any) (Value, error) {
	if v, ok := x.(Value); ok {
		return v, nil
	}
	if x == nil {
		return Value{}, nil
	}
	kind, array := kindOf(x)
	if kind == KindInvalid {
		return Value{}, fmt.Errorf("value: unsupported Go type %T", x)
	}
	return Value{kind: kind, array: array, data: x}, nil
}

// Of is like New but panics on unsupported types. It is intended for
// literals in code and tests.
func Of(x any) Value {
	v, err := New(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Get returns the payload of v as a T. The boolean is false when v
// does not hold a T.
func Get[T any](v Value) (T, bool) {
	t, ok := v.data.(T)
	return t, ok
}

// Kind returns the kind of v. An empty value reports KindVoid.
func (v Value) Kind() Kind {
	if v.kind == KindInvalid {
		return KindVoid
	}
	return v.kind
}

// IsArray reports whether v holds a homogeneous array.
func (v Value) IsArray() bool { return v.array }

// IsEmpty reports whether v carries no data.
func (v Value) IsEmpty() bool { return v.Kind() == KindVoid }

// Interface returns the payload of v, or nil for an empty value.
func (v Value) Interface() any { return v.data }

// Len returns the element count of an array value, and 1 for any
// non-empty scalar.
func (v Value) Len() int {
	switch {
	case v.IsEmpty():
		return 0
	case v.array:
		return sliceLen(v.data)
	default:
		return 1
	}
}

func (v Value) String() string {
	if v.IsEmpty() {
		return "<empty>"
	}
	var b strings.Builder
	b.WriteString(v.kind.String())
	if v.array {
		b.WriteString("[]")
	}
	b.WriteByte('(')
	switch d := v.data.(type) {
	case Dictionary:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: %s", k, d[k])
		}
		b.WriteByte('}')
	case string:
		fmt.Fprintf(&b, "%q", d)
	case Token, AssetPath, Path:
		fmt.Fprintf(&b, "%q", d)
	case Half:
		fmt.Fprintf(&b, "%g", d.Float32())
	case Nested:
		b.WriteString(d.Value.String())
	case Unregistered:
		b.WriteString(d.Value.String())
	default:
		fmt.Fprintf(&b, "%v", d)
	}
	b.WriteByte(')')
	return b.String()
}

// kindOf maps a Go payload type to its Kind and array flag.
func kindOf(x any) (Kind, bool) {
	switch x.(type) {
	case bool:
		return KindBool, false
	case []bool:
		return KindBool, true
	case uint8:
		return KindUChar, false
	case []uint8:
		return KindUChar, true
	case int32:
		return KindInt, false
	case []int32:
		return KindInt, true
	case uint32:
		return KindUInt, false
	case []uint32:
		return KindUInt, true
	case int64:
		return KindInt64, false
	case []int64:
		return KindInt64, true
	case uint64:
		return KindUInt64, false
	case []uint64:
		return KindUInt64, true
	case Half:
		return KindHalf, false
	case []Half:
		return KindHalf, true
	case float32:
		return KindFloat, false
	case []float32:
		return KindFloat, true
	case float64:
		return KindDouble, false
	case []float64:
		return KindDouble, true
	case string:
		return KindString, false
	case []string:
		return KindString, true
	case Token:
		return KindToken, false
	case []Token:
		return KindToken, true
	case AssetPath:
		return KindAssetPath, false
	case []AssetPath:
		return KindAssetPath, true
	case Matrix2d:
		return KindMatrix2d, false
	case []Matrix2d:
		return KindMatrix2d, true
	case Matrix3d:
		return KindMatrix3d, false
	case []Matrix3d:
		return KindMatrix3d, true
	case Matrix4d:
		return KindMatrix4d, false
	case []Matrix4d:
		return KindMatrix4d, true
	case Quatd:
		return KindQuatd, false
	case []Quatd:
		return KindQuatd, true
	case Quatf:
		return KindQuatf, false
	case []Quatf:
		return KindQuatf, true
	case Quath:
		return KindQuath, false
	case []Quath:
		return KindQuath, true
	case Vec2d:
		return KindVec2d, false
	case []Vec2d:
		return KindVec2d, true
	case Vec2f:
		return KindVec2f, false
	case []Vec2f:
		return KindVec2f, true
	case Vec2h:
		return KindVec2h, false
	case []Vec2h:
		return KindVec2h, true
	case Vec2i:
		return KindVec2i, false
	case []Vec2i:
		return KindVec2i, true
	case Vec3d:
		return KindVec3d, false
	case []Vec3d:
		return KindVec3d, true
	case Vec3f:
		return KindVec3f, false
	case []Vec3f:
		return KindVec3f, true
	case Vec3h:
		return KindVec3h, false
	case []Vec3h:
		return KindVec3h, true
	case Vec3i:
		return KindVec3i, false
	case []Vec3i:
		return KindVec3i, true
	case Vec4d:
		return KindVec4d, false
	case []Vec4d:
		return KindVec4d, true
	case Vec4f:
		return KindVec4f, false
	case []Vec4f:
		return KindVec4f, true
	case Vec4h:
		return KindVec4h, false
	case []Vec4h:
		return KindVec4h, true
	case Vec4i:
		return KindVec4i, false
	case []Vec4i:
		return KindVec4i, true
	case Dictionary:
		return KindDictionary, false
	case TokenListOp:
		return KindTokenListOp, false
	case StringListOp:
		return KindStringListOp, false
	case PathListOp:
		return KindPathListOp, false
	case ReferenceListOp:
		return KindReferenceListOp, false
	case IntListOp:
		return KindIntListOp, false
	case Int64ListOp:
		return KindInt64ListOp, false
	case UIntListOp:
		return KindUIntListOp, false
	case UInt64ListOp:
		return KindUInt64ListOp, false
	case PathVector:
		return KindPathVector, false
	case TokenVector:
		return KindTokenVector, false
	case Specifier:
		return KindSpecifier, false
	case Permission:
		return KindPermission, false
	case Variability:
		return KindVariability, false
	case VariantSelectionMap:
		return KindVariantSelectionMap, false
	case TimeSamples:
		return KindTimeSamples, false
	case Payload:
		return KindPayload, false
	case DoubleVector:
		return KindDoubleVector, false
	case LayerOffsetVector:
		return KindLayerOffsetVector, false
	case StringVector:
		return KindStringVector, false
	case ValueBlock:
		return KindValueBlock, false
	case Nested:
		return KindValue, false
	case Unregistered:
		return KindUnregisteredValue, false
	case UnregisteredListOp:
		return KindUnregisteredValueListOp, false
	case PayloadListOp:
		return KindPayloadListOp, false
	case TimeCode:
		return KindTimeCode, false
	case []TimeCode:
		return KindTimeCode, true
	case Path:
		return KindPath, false
	case []Path:
		return KindPath, true
	}
	return KindInvalid, false
}
