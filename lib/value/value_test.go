// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"math"
	"testing"
)

func TestKindTable(t *testing.T) {
	if got := len(Kinds()); got != 58 {
		t.Fatalf("Kinds() returned %d kinds, want 58", got)
	}
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Errorf("%v reported invalid", k)
		}
		if k.String() == "" {
			t.Errorf("kind %d has no name", int32(k))
		}
	}
	if KindInvalid.Valid() || Kind(NumKinds).Valid() {
		t.Error("out-of-range kinds reported valid")
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Errorf("Kind(99).String() = %q", got)
	}
}

func TestSupportsArray(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindBool, true},
		{KindVec4i, true},
		{KindMatrix4d, true},
		{KindDictionary, false},
		{KindTokenListOp, false},
		{KindValueBlock, false},
		{KindTimeCode, true},
		{KindPath, true},
		{KindVoid, false},
	}
	for _, test := range tests {
		if got := test.kind.SupportsArray(); got != test.want {
			t.Errorf("%v.SupportsArray() = %v, want %v", test.kind, got, test.want)
		}
	}
}

func TestNewMapsGoTypes(t *testing.T) {
	tests := []struct {
		name  string
		input any
		kind  Kind
		array bool
	}{
		{"bool", true, KindBool, false},
		{"uchar", uint8(7), KindUChar, false},
		{"int", int32(-3), KindInt, false},
		{"float array", []float32{1, 2}, KindFloat, true},
		{"double", 5.5, KindDouble, false},
		{"double vector", DoubleVector{1, 2}, KindDoubleVector, false},
		{"double array", []float64{1, 2}, KindDouble, true},
		{"token", Token("default"), KindToken, false},
		{"token vector", TokenVector{"a"}, KindTokenVector, false},
		{"half", HalfFromFloat32(1.5), KindHalf, false},
		{"quath", Quath{}, KindQuath, false},
		{"matrix3d array", []Matrix3d{{}}, KindMatrix3d, true},
		{"dictionary", Dictionary{}, KindDictionary, false},
		{"path list op", PathListOp{}, KindPathListOp, false},
		{"payload list op", PayloadListOp{}, KindPayloadListOp, false},
		{"unregistered list op", UnregisteredListOp{}, KindUnregisteredValueListOp, false},
		{"specifier", SpecifierOver, KindSpecifier, false},
		{"nested", Nested{Value: Of(int32(1))}, KindValue, false},
		{"value block", ValueBlock{}, KindValueBlock, false},
		{"time code array", []TimeCode{1, 2}, KindTimeCode, true},
		{"path", Path("/a"), KindPath, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := New(test.input)
			if err != nil {
				t.Fatalf("New(%T): %v", test.input, err)
			}
			if v.Kind() != test.kind || v.IsArray() != test.array {
				t.Errorf("New(%T) = %v array=%v, want %v array=%v",
					test.input, v.Kind(), v.IsArray(), test.kind, test.array)
			}
		})
	}
}

func TestNewRejectsUnsupported(t *testing.T) {
	if _, err := New(42); err == nil {
		t.Fatal("New(int) succeeded, want error")
	}
	if _, err := New(map[string]int{}); err == nil {
		t.Fatal("New(map[string]int) succeeded, want error")
	}
}

func TestEmptyValue(t *testing.T) {
	var v Value
	if !v.IsEmpty() || v.Kind() != KindVoid || v.Len() != 0 {
		t.Fatalf("zero Value: kind=%v empty=%v len=%d", v.Kind(), v.IsEmpty(), v.Len())
	}
	n, err := New(nil)
	if err != nil || !n.IsEmpty() {
		t.Fatalf("New(nil) = %v, %v", n, err)
	}
	if !Equal(v, Empty) {
		t.Fatal("zero Value not equal to Empty")
	}
}

func TestGet(t *testing.T) {
	v := Of(float32(5))
	f, ok := Get[float32](v)
	if !ok || f != 5 {
		t.Fatalf("Get[float32] = %v, %v", f, ok)
	}
	if _, ok := Get[float64](v); ok {
		t.Fatal("Get[float64] succeeded on a Float value")
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same scalar", Of(int32(3)), Of(int32(3)), true},
		{"different scalar", Of(int32(3)), Of(int32(4)), false},
		{"different kind same bits", Of(int32(3)), Of(uint32(3)), false},
		{"scalar vs array", Of(float32(1)), Of([]float32{1}), false},
		{"nil vs empty list", Of(TokenListOp{AddedItems: nil}), Of(TokenListOp{AddedItems: []Token{}}), true},
		{"nan", Of(math.NaN()), Of(math.NaN()), true},
		{
			"nested dictionary",
			Of(Dictionary{"a": Of(Dictionary{"b": Of("x")})}),
			Of(Dictionary{"a": Of(Dictionary{"b": Of("x")})}),
			true,
		},
		{
			"nested dictionary differs",
			Of(Dictionary{"a": Of(Dictionary{"b": Of("x")})}),
			Of(Dictionary{"a": Of(Dictionary{"b": Of("y")})}),
			false,
		},
		{
			"reference custom data nil vs empty",
			Of(Reference{AssetPath: "a.usd", PrimPath: "/p", LayerOffset: IdentityOffset}),
			Of(Reference{AssetPath: "a.usd", PrimPath: "/p", LayerOffset: IdentityOffset, CustomData: Dictionary{}}),
			true,
		},
		{"empty values", Value{}, Value{}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Equal(test.a, test.b); got != test.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Value{}, "<empty>"},
		{Of(float32(5)), "Float(5)"},
		{Of(Token("default")), `Token("default")`},
		{Of([]int32{1, 2}), "Int[]([1 2])"},
		{Of(Dictionary{"b": Of(true), "a": Of("x")}), `Dictionary({"a": String("x"), "b": Bool(true)})`},
	}
	for _, test := range tests {
		if got := test.value.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestPathParent(t *testing.T) {
	tests := []struct {
		path Path
		want Path
	}{
		{"/World/Cube.size", "/World/Cube"},
		{"/World/Cube", "/World"},
		{"/World", "/"},
		{"/", ""},
		{"", ""},
	}
	for _, test := range tests {
		if got := test.path.Parent(); got != test.want {
			t.Errorf("Path(%q).Parent() = %q, want %q", test.path, got, test.want)
		}
	}
}

func TestPathName(t *testing.T) {
	if got := Path("/World/Cube.size").Name(); got != "size" {
		t.Errorf("Name() = %q, want size", got)
	}
	if got := Path("/World/Cube").Name(); got != "Cube" {
		t.Errorf("Name() = %q, want Cube", got)
	}
	if !Path("/a.b").IsProperty() || Path("/a/b").IsProperty() {
		t.Error("IsProperty misclassified")
	}
}

func TestPathHasPrefix(t *testing.T) {
	tests := []struct {
		path, prefix Path
		want         bool
	}{
		{"/a/b", "/a", true},
		{"/a.x", "/a", true},
		{"/a", "/a", true},
		{"/ab", "/a", false},
		{"/a", "/", true},
		{"/b/a", "/a", false},
	}
	for _, test := range tests {
		if got := test.path.HasPrefix(test.prefix); got != test.want {
			t.Errorf("Path(%q).HasPrefix(%q) = %v, want %v", test.path, test.prefix, got, test.want)
		}
	}
}

func TestPathReplacePrefix(t *testing.T) {
	got, ok := Path("/a/b.c").ReplacePrefix("/a", "/z")
	if !ok || got != "/z/b.c" {
		t.Fatalf("ReplacePrefix = %q, %v", got, ok)
	}
	if _, ok := Path("/ab").ReplacePrefix("/a", "/z"); ok {
		t.Fatal("ReplacePrefix matched a sibling with a shared string prefix")
	}
	if _, ok := Path("/a").ReplacePrefix("/", "/z"); ok {
		t.Fatal("ReplacePrefix replaced the root")
	}
	if got := RootPath.AppendChild("World").AppendChild("Cube").AppendProperty("size"); got != "/World/Cube.size" {
		t.Fatalf("Append* built %q", got)
	}
}
