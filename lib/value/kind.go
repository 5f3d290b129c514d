// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "fmt"

// Kind identifies the concrete payload of a Value. The numeric values
// are wire discriminants shared by every process on the bus: they are
// protocol constants and must never be renumbered or reused.
type Kind int32

const (
	KindInvalid Kind = 0

	// Array-capable kinds.
	KindBool      Kind = 1
	KindUChar     Kind = 2
	KindInt       Kind = 3
	KindUInt      Kind = 4
	KindInt64     Kind = 5
	KindUInt64    Kind = 6
	KindHalf      Kind = 7
	KindFloat     Kind = 8
	KindDouble    Kind = 9
	KindString    Kind = 10
	KindToken     Kind = 11
	KindAssetPath Kind = 12
	KindMatrix2d  Kind = 13
	KindMatrix3d  Kind = 14
	KindMatrix4d  Kind = 15
	KindQuatd     Kind = 16
	KindQuatf     Kind = 17
	KindQuath     Kind = 18
	KindVec2d     Kind = 19
	KindVec2f     Kind = 20
	KindVec2h     Kind = 21
	KindVec2i     Kind = 22
	KindVec3d     Kind = 23
	KindVec3f     Kind = 24
	KindVec3h     Kind = 25
	KindVec3i     Kind = 26
	KindVec4d     Kind = 27
	KindVec4f     Kind = 28
	KindVec4h     Kind = 29
	KindVec4i     Kind = 30

	// Scalar-only kinds.
	KindDictionary              Kind = 31
	KindTokenListOp             Kind = 32
	KindStringListOp            Kind = 33
	KindPathListOp              Kind = 34
	KindReferenceListOp         Kind = 35
	KindIntListOp               Kind = 36
	KindInt64ListOp             Kind = 37
	KindUIntListOp              Kind = 38
	KindUInt64ListOp            Kind = 39
	KindPathVector              Kind = 40
	KindTokenVector             Kind = 41
	KindSpecifier               Kind = 42
	KindPermission              Kind = 43
	KindVariability             Kind = 44
	KindVariantSelectionMap     Kind = 45
	KindTimeSamples             Kind = 46
	KindPayload                 Kind = 47
	KindDoubleVector            Kind = 48
	KindLayerOffsetVector       Kind = 49
	KindStringVector            Kind = 50
	KindValueBlock              Kind = 51
	KindValue                   Kind = 52
	KindUnregisteredValue       Kind = 53
	KindUnregisteredValueListOp Kind = 54
	KindPayloadListOp           Kind = 55

	// Array-capable kinds added after the first revision of the table.
	KindTimeCode Kind = 56
	KindPath     Kind = 57

	// KindVoid is the empty value. It has no payload.
	KindVoid Kind = 58
)

// NumKinds is one past the largest valid discriminant.
const NumKinds = 59

var kindNames = [NumKinds]string{
	KindInvalid:                 "Invalid",
	KindBool:                    "Bool",
	KindUChar:                   "UChar",
	KindInt:                     "Int",
	KindUInt:                    "UInt",
	KindInt64:                   "Int64",
	KindUInt64:                  "UInt64",
	KindHalf:                    "Half",
	KindFloat:                   "Float",
	KindDouble:                  "Double",
	KindString:                  "String",
	KindToken:                   "Token",
	KindAssetPath:               "AssetPath",
	KindMatrix2d:                "Matrix2d",
	KindMatrix3d:                "Matrix3d",
	KindMatrix4d:                "Matrix4d",
	KindQuatd:                   "Quatd",
	KindQuatf:                   "Quatf",
	KindQuath:                   "Quath",
	KindVec2d:                   "Vec2d",
	KindVec2f:                   "Vec2f",
	KindVec2h:                   "Vec2h",
	KindVec2i:                   "Vec2i",
	KindVec3d:                   "Vec3d",
	KindVec3f:                   "Vec3f",
	KindVec3h:                   "Vec3h",
	KindVec3i:                   "Vec3i",
	KindVec4d:                   "Vec4d",
	KindVec4f:                   "Vec4f",
	KindVec4h:                   "Vec4h",
	KindVec4i:                   "Vec4i",
	KindDictionary:              "Dictionary",
	KindTokenListOp:             "TokenListOp",
	KindStringListOp:            "StringListOp",
	KindPathListOp:              "PathListOp",
	KindReferenceListOp:         "ReferenceListOp",
	KindIntListOp:               "IntListOp",
	KindInt64ListOp:             "Int64ListOp",
	KindUIntListOp:              "UIntListOp",
	KindUInt64ListOp:            "UInt64ListOp",
	KindPathVector:              "PathVector",
	KindTokenVector:             "TokenVector",
	KindSpecifier:               "Specifier",
	KindPermission:              "Permission",
	KindVariability:             "Variability",
	KindVariantSelectionMap:     "VariantSelectionMap",
	KindTimeSamples:             "TimeSamples",
	KindPayload:                 "Payload",
	KindDoubleVector:            "DoubleVector",
	KindLayerOffsetVector:       "LayerOffsetVector",
	KindStringVector:            "StringVector",
	KindValueBlock:              "ValueBlock",
	KindValue:                   "Value",
	KindUnregisteredValue:       "UnregisteredValue",
	KindUnregisteredValueListOp: "UnregisteredValueListOp",
	KindPayloadListOp:           "PayloadListOp",
	KindTimeCode:                "TimeCode",
	KindPath:                    "Path",
	KindVoid:                    "Void",
}

// Valid reports whether k names a concrete kind (Void included).
func (k Kind) Valid() bool {
	return k > KindInvalid && k < NumKinds
}

// SupportsArray reports whether values of kind k may be held as a
// homogeneous array. Array-capable payloads carry a one-byte
// array/scalar discriminant on the wire.
func (k Kind) SupportsArray() bool {
	return (k >= KindBool && k <= KindVec4i) || k == KindTimeCode || k == KindPath
}

func (k Kind) String() string {
	if k >= KindInvalid && k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int32(k))
}

// Kinds returns every valid kind in discriminant order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, NumKinds-1)
	for k := KindBool; k < NumKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
