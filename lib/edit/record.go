// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package edit

import (
	"fmt"

	"github.com/opendcc/liveshare/lib/value"
)

// Type is the wire discriminant of a record variant. Values are
// protocol constants.
type Type uint64

const (
	TypeSetField Type = iota
	TypeSetFieldDictValueByKey
	TypeSetTimeSample
	TypeCreateSpec
	TypeDeleteSpec
	TypeMoveSpec
	TypePushChild
	TypePopChild
	TypeTransactionBoundary

	numTypes
)

var typeNames = [numTypes]string{
	"SetField",
	"SetFieldDictValueByKey",
	"SetTimeSample",
	"CreateSpec",
	"DeleteSpec",
	"MoveSpec",
	"PushChild",
	"PopChild",
	"TransactionBoundary",
}

func (t Type) String() string {
	if t < numTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint64(t))
}

// Target is the layer surface a record applies itself to. Each method
// performs one primitive mutation.
type Target interface {
	SetField(path value.Path, field value.Token, v value.Value) error
	SetFieldDictValueByKey(path value.Path, field, keyPath value.Token, v value.Value) error
	SetTimeSample(path value.Path, time float64, v value.Value) error
	CreateSpec(path value.Path, specType value.SpecType, inert bool) error
	DeleteSpec(path value.Path, inert bool) error
	MoveSpec(oldPath, newPath value.Path) error
	PushChild(parent value.Path, field value.Token, child value.Value) error
	PopChild(parent value.Path, field value.Token, child value.Value) error
}

// Record is one edit. The set of implementations is closed: only the
// variants in this package satisfy it.
type Record interface {
	// Type returns the wire discriminant.
	Type() Type
	// Apply re-issues the mutation against target. Applying a
	// TransactionBoundary does nothing.
	Apply(target Target) error

	sealed()
}

// SetField sets a field on the spec at Path. An empty Value erases the
// field.
type SetField struct {
	Layer string
	Path  value.Path
	Field value.Token
	Value value.Value
}

// SetFieldDictValueByKey sets one entry inside a dictionary-valued
// field. KeyPath is colon-separated for nested dictionaries. An empty
// Value erases the entry.
type SetFieldDictValueByKey struct {
	Layer   string
	Path    value.Path
	Field   value.Token
	KeyPath value.Token
	Value   value.Value
}

// SetTimeSample sets the value of an attribute at Time. An empty Value
// erases the sample.
type SetTimeSample struct {
	Layer string
	Path  value.Path
	Time  float64
	Value value.Value
}

// CreateSpec creates an empty spec at Path.
type CreateSpec struct {
	Layer    string
	Path     value.Path
	SpecType value.SpecType
	Inert    bool
}

// DeleteSpec removes the spec at Path and everything beneath it.
type DeleteSpec struct {
	Layer string
	Path  value.Path
	Inert bool
}

// MoveSpec re-roots the spec at OldPath, and everything beneath it, at
// NewPath.
type MoveSpec struct {
	Layer   string
	OldPath value.Path
	NewPath value.Path
}

// PushChild appends Value (a Token or a Path) to the child list held in
// Field of the spec at Parent.
type PushChild struct {
	Layer  string
	Parent value.Path
	Field  value.Token
	Value  value.Value
}

// PopChild removes the last entry, OldValue, from the child list held
// in Field of the spec at Parent.
type PopChild struct {
	Layer    string
	Parent   value.Path
	Field    value.Token
	OldValue value.Value
}

// TransactionBoundary closes a batch of edits.
type TransactionBoundary struct{}

func (SetField) Type() Type               { return TypeSetField }
func (SetFieldDictValueByKey) Type() Type { return TypeSetFieldDictValueByKey }
func (SetTimeSample) Type() Type          { return TypeSetTimeSample }
func (CreateSpec) Type() Type             { return TypeCreateSpec }
func (DeleteSpec) Type() Type             { return TypeDeleteSpec }
func (MoveSpec) Type() Type               { return TypeMoveSpec }
func (PushChild) Type() Type              { return TypePushChild }
func (PopChild) Type() Type               { return TypePopChild }
func (TransactionBoundary) Type() Type    { return TypeTransactionBoundary }

func (SetField) sealed()               {}
func (SetFieldDictValueByKey) sealed() {}
func (SetTimeSample) sealed()          {}
func (CreateSpec) sealed()             {}
func (DeleteSpec) sealed()             {}
func (MoveSpec) sealed()               {}
func (PushChild) sealed()              {}
func (PopChild) sealed()               {}
func (TransactionBoundary) sealed()    {}

func (e SetField) Apply(target Target) error {
	return target.SetField(e.Path, e.Field, e.Value)
}

func (e SetFieldDictValueByKey) Apply(target Target) error {
	return target.SetFieldDictValueByKey(e.Path, e.Field, e.KeyPath, e.Value)
}

func (e SetTimeSample) Apply(target Target) error {
	return target.SetTimeSample(e.Path, e.Time, e.Value)
}

func (e CreateSpec) Apply(target Target) error {
	return target.CreateSpec(e.Path, e.SpecType, e.Inert)
}

func (e DeleteSpec) Apply(target Target) error {
	return target.DeleteSpec(e.Path, e.Inert)
}

func (e MoveSpec) Apply(target Target) error {
	return target.MoveSpec(e.OldPath, e.NewPath)
}

func (e PushChild) Apply(target Target) error {
	return target.PushChild(e.Parent, e.Field, e.Value)
}

func (e PopChild) Apply(target Target) error {
	return target.PopChild(e.Parent, e.Field, e.OldValue)
}

func (TransactionBoundary) Apply(Target) error { return nil }

// LayerOf returns the identifier of the layer r targets. The boolean is
// false for a TransactionBoundary.
func LayerOf(r Record) (string, bool) {
	switch e := r.(type) {
	case SetField:
		return e.Layer, true
	case SetFieldDictValueByKey:
		return e.Layer, true
	case SetTimeSample:
		return e.Layer, true
	case CreateSpec:
		return e.Layer, true
	case DeleteSpec:
		return e.Layer, true
	case MoveSpec:
		return e.Layer, true
	case PushChild:
		return e.Layer, true
	case PopChild:
		return e.Layer, true
	}
	return "", false
}

// Equal reports whether a and b are the same variant with structurally
// equal fields, layer included.
func Equal(a, b Record) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case SetField:
		y, ok := b.(SetField)
		return ok && x.Layer == y.Layer && x.Path == y.Path && x.Field == y.Field &&
			value.Equal(x.Value, y.Value)
	case SetFieldDictValueByKey:
		y, ok := b.(SetFieldDictValueByKey)
		return ok && x.Layer == y.Layer && x.Path == y.Path && x.Field == y.Field &&
			x.KeyPath == y.KeyPath && value.Equal(x.Value, y.Value)
	case SetTimeSample:
		y, ok := b.(SetTimeSample)
		return ok && x.Layer == y.Layer && x.Path == y.Path && x.Time == y.Time &&
			value.Equal(x.Value, y.Value)
	case CreateSpec:
		y, ok := b.(CreateSpec)
		return ok && x == y
	case DeleteSpec:
		y, ok := b.(DeleteSpec)
		return ok && x == y
	case MoveSpec:
		y, ok := b.(MoveSpec)
		return ok && x == y
	case PushChild:
		y, ok := b.(PushChild)
		return ok && x.Layer == y.Layer && x.Parent == y.Parent && x.Field == y.Field &&
			value.Equal(x.Value, y.Value)
	case PopChild:
		y, ok := b.(PopChild)
		return ok && x.Layer == y.Layer && x.Parent == y.Parent && x.Field == y.Field &&
			value.Equal(x.OldValue, y.OldValue)
	case TransactionBoundary:
		_, ok := b.(TransactionBoundary)
		return ok
	}
	return false
}

// Describe renders r as a single line for logs and the tail tool.
func Describe(r Record) string {
	switch e := r.(type) {
	case SetField:
		return fmt.Sprintf("%s %s %s.%s = %v", e.Type(), e.Layer, e.Path, e.Field, e.Value)
	case SetFieldDictValueByKey:
		return fmt.Sprintf("%s %s %s.%s[%s] = %v", e.Type(), e.Layer, e.Path, e.Field, e.KeyPath, e.Value)
	case SetTimeSample:
		return fmt.Sprintf("%s %s %s @%g = %v", e.Type(), e.Layer, e.Path, e.Time, e.Value)
	case CreateSpec:
		return fmt.Sprintf("%s %s %s %v inert=%t", e.Type(), e.Layer, e.Path, e.SpecType, e.Inert)
	case DeleteSpec:
		return fmt.Sprintf("%s %s %s inert=%t", e.Type(), e.Layer, e.Path, e.Inert)
	case MoveSpec:
		return fmt.Sprintf("%s %s %s -> %s", e.Type(), e.Layer, e.OldPath, e.NewPath)
	case PushChild:
		return fmt.Sprintf("%s %s %s.%s += %v", e.Type(), e.Layer, e.Parent, e.Field, e.Value)
	case PopChild:
		return fmt.Sprintf("%s %s %s.%s -= %v", e.Type(), e.Layer, e.Parent, e.Field, e.OldValue)
	case TransactionBoundary:
		return e.Type().String()
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("%T", r)
}
