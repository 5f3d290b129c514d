// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "github.com/x448/float16"

// Half is an IEEE 754 binary16 float.
type Half = float16.Float16

// HalfFromFloat32 converts f to the nearest half.
func HalfFromFloat32(f float32) Half { return float16.Fromfloat32(f) }

// Token is an interned short string: field names, type names, child
// names.
type Token string

// AssetPath is an unresolved reference to an external asset.
type AssetPath string

// TimeCode is a time value that participates in layer-offset retiming.
type TimeCode float64

type (
	Vec2d [2]float64
	Vec2f [2]float32
	Vec2h [2]Half
	Vec2i [2]int32
	Vec3d [3]float64
	Vec3f [3]float32
	Vec3h [3]Half
	Vec3i [3]int32
	Vec4d [4]float64
	Vec4f [4]float32
	Vec4h [4]Half
	Vec4i [4]int32
)

// Quaternions store the imaginary part first, matching their wire order.
type Quatd struct {
	Imaginary [3]float64
	Real      float64
}

type Quatf struct {
	Imaginary [3]float32
	Real      float32
}

type Quath struct {
	Imaginary [3]Half
	Real      Half
}

// Matrices are row-major.
type (
	Matrix2d [2][2]float64
	Matrix3d [3][3]float64
	Matrix4d [4][4]float64
)

// Dictionary maps string keys to nested values.
type Dictionary map[string]Value

// VariantSelectionMap maps variant-set names to selected variants.
type VariantSelectionMap map[string]string

type (
	PathVector        []Path
	TokenVector       []Token
	DoubleVector      []float64
	StringVector      []string
	LayerOffsetVector []LayerOffset
)

// LayerOffset is a time offset and scale applied to a referenced layer.
type LayerOffset struct {
	Offset float64
	Scale  float64
}

// IdentityOffset is the layer offset that leaves time unchanged.
var IdentityOffset = LayerOffset{Offset: 0, Scale: 1}

// Reference points at a prim in another layer.
type Reference struct {
	AssetPath   string
	PrimPath    Path
	LayerOffset LayerOffset
	CustomData  Dictionary
}

// Payload is a deferred-load reference. It carries no custom data.
type Payload struct {
	AssetPath   string
	PrimPath    Path
	LayerOffset LayerOffset
}

// ListOp is an edit to an ordered list: either an explicit replacement
// or a combination of added, prepended, appended, deleted and reordered
// items.
type ListOp[T any] struct {
	Explicit       bool
	ExplicitItems  []T
	AddedItems     []T
	PrependedItems []T
	AppendedItems  []T
	DeletedItems   []T
	OrderedItems   []T
}

type (
	TokenListOp        = ListOp[Token]
	StringListOp       = ListOp[string]
	PathListOp         = ListOp[Path]
	ReferenceListOp    = ListOp[Reference]
	IntListOp          = ListOp[int32]
	Int64ListOp        = ListOp[int64]
	UIntListOp         = ListOp[uint32]
	UInt64ListOp       = ListOp[uint64]
	PayloadListOp      = ListOp[Payload]
	UnregisteredListOp = ListOp[Unregistered]
)

// Specifier says how a prim spec contributes to composition.
type Specifier int32

const (
	SpecifierDef Specifier = iota
	SpecifierOver
	SpecifierClass
)

// Permission restricts which layers may override a spec.
type Permission int32

const (
	PermissionPublic Permission = iota
	PermissionPrivate
)

// Variability says whether an attribute may vary over time.
type Variability int32

const (
	VariabilityVarying Variability = iota
	VariabilityUniform
)

// SpecType classifies a spec within a layer. It travels inside
// CreateSpec edit records as a 32-bit integer.
type SpecType int32

const (
	SpecTypeUnknown SpecType = iota
	SpecTypeAttribute
	SpecTypeConnection
	SpecTypeExpression
	SpecTypeMapper
	SpecTypeMapperArg
	SpecTypePrim
	SpecTypePseudoRoot
	SpecTypeRelationship
	SpecTypeRelationshipTarget
	SpecTypeVariant
	SpecTypeVariantSet
)

var specTypeNames = [...]string{
	"Unknown", "Attribute", "Connection", "Expression", "Mapper", "MapperArg",
	"Prim", "PseudoRoot", "Relationship", "RelationshipTarget", "Variant", "VariantSet",
}

func (s SpecType) String() string {
	if s >= 0 && int(s) < len(specTypeNames) {
		return specTypeNames[s]
	}
	return "SpecType(?)"
}

// TimeSamples marks a field whose content lives in the time-sample
// table rather than inline. It has no payload.
type TimeSamples struct{}

// ValueBlock explicitly erases an opinion from weaker layers.
type ValueBlock struct{}

// Nested wraps a value inside another value (kind Value).
type Nested struct {
	Value Value
}

// Unregistered holds a field value whose schema is unknown to the
// writer. The wrapped value is a string, a Dictionary, or an
// UnregisteredListOp.
type Unregistered struct {
	Value Value
}
