// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/opendcc/liveshare/lib/edit"
	"github.com/opendcc/liveshare/lib/value"
)

var (
	// ErrSpecNotFound is returned when a mutation names a path with no
	// spec.
	ErrSpecNotFound = errors.New("layer: no spec at path")

	// ErrSpecExists is returned by CreateSpec and MoveSpec when the
	// destination is already occupied.
	ErrSpecExists = errors.New("layer: spec already exists")

	// ErrInvalidPath is returned for relative paths and for mutations
	// that would remove or replace the pseudo-root.
	ErrInvalidPath = errors.New("layer: invalid path")

	// ErrFieldType is returned when a mutation expects a field to hold
	// a different kind of value (a dictionary, a child list).
	ErrFieldType = errors.New("layer: field holds an incompatible value")

	// ErrChildMismatch is returned by PopChild when the last child is
	// not the expected one.
	ErrChildMismatch = errors.New("layer: popped child does not match")
)

// Child-list fields. Their content is a TokenVector (prim, property,
// variant names) or a PathVector (targets, connections), maintained by
// PushChild and PopChild.
const (
	FieldPrimChildren       value.Token = "primChildren"
	FieldPropertyChildren   value.Token = "properties"
	FieldVariantSetChildren value.Token = "variantSetChildren"
	FieldVariantChildren    value.Token = "variantChildren"
	FieldTargetChildren     value.Token = "targetChildren"
	FieldConnectionChildren value.Token = "connectionChildren"
)

// IsChildField reports whether field holds a child list.
func IsChildField(field value.Token) bool {
	switch field {
	case FieldPrimChildren, FieldPropertyChildren, FieldVariantSetChildren,
		FieldVariantChildren, FieldTargetChildren, FieldConnectionChildren:
		return true
	}
	return false
}

type spec struct {
	specType value.SpecType
	fields   map[value.Token]value.Value
	samples  map[float64]value.Value
}

func (s *spec) clone() *spec {
	out := &spec{specType: s.specType}
	if len(s.fields) > 0 {
		out.fields = make(map[value.Token]value.Value, len(s.fields))
		for k, v := range s.fields {
			out.fields[k] = v
		}
	}
	if len(s.samples) > 0 {
		out.samples = make(map[float64]value.Value, len(s.samples))
		for k, v := range s.samples {
			out.samples[k] = v
		}
	}
	return out
}

// Layer is an in-memory hierarchical document: specs addressed by
// path, each with a spec type, named fields, and time samples. Every
// layer has a pseudo-root spec at "/".
//
// A Layer is not safe for concurrent use. Layers held by a Registry
// are mutated only from the goroutine that owns the registry.
type Layer struct {
	id        string
	anonymous bool
	registry  *Registry
	specs     map[value.Path]*spec
	dirty     bool
}

// New returns an empty standalone layer. Mutations on a standalone
// layer are not reported to any interceptor.
func New(id string) *Layer {
	return &Layer{
		id:        id,
		anonymous: strings.HasPrefix(id, AnonymousPrefix),
		specs:     map[value.Path]*spec{value.RootPath: {specType: value.SpecTypePseudoRoot}},
	}
}

// Identifier returns the layer's id, the key peers use to address it.
func (l *Layer) Identifier() string { return l.id }

// IsAnonymous reports whether the layer exists only in this process.
func (l *Layer) IsAnonymous() bool { return l.anonymous }

// IsDirty reports whether the layer was modified since it was opened
// or last marked clean.
func (l *Layer) IsDirty() bool { return l.dirty }

// MarkClean clears the dirty flag.
func (l *Layer) MarkClean() { l.dirty = false }

// HasSpec reports whether a spec exists at path.
func (l *Layer) HasSpec(path value.Path) bool {
	_, ok := l.specs[path]
	return ok
}

// SpecType returns the type of the spec at path, or SpecTypeUnknown.
func (l *Layer) SpecType(path value.Path) value.SpecType {
	if s, ok := l.specs[path]; ok {
		return s.specType
	}
	return value.SpecTypeUnknown
}

// Field returns the value of field on the spec at path.
func (l *Layer) Field(path value.Path, field value.Token) (value.Value, bool) {
	s, ok := l.specs[path]
	if !ok {
		return value.Value{}, false
	}
	v, ok := s.fields[field]
	return v, ok
}

// Fields returns the names of the fields set on the spec at path, in
// sorted order.
func (l *Layer) Fields(path value.Path) []value.Token {
	s, ok := l.specs[path]
	if !ok {
		return nil
	}
	names := make([]value.Token, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TimeSample returns the sample of the attribute at path at time.
func (l *Layer) TimeSample(path value.Path, time float64) (value.Value, bool) {
	s, ok := l.specs[path]
	if !ok {
		return value.Value{}, false
	}
	v, ok := s.samples[time]
	return v, ok
}

// SampleTimes returns the sample times of the attribute at path in
// ascending order.
func (l *Layer) SampleTimes(path value.Path) []float64 {
	s, ok := l.specs[path]
	if !ok {
		return nil
	}
	times := make([]float64, 0, len(s.samples))
	for t := range s.samples {
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// Paths returns every spec path in sorted order. Parents sort before
// their descendants.
func (l *Layer) Paths() []value.Path {
	paths := make([]value.Path, 0, len(l.specs))
	for p := range l.specs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (l *Layer) lookup(path value.Path) (*spec, error) {
	s, ok := l.specs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrSpecNotFound, path, l.id)
	}
	return s, nil
}

// changed marks the layer dirty and reports r to the owning registry.
func (l *Layer) changed(r edit.Record) {
	l.dirty = true
	if l.registry != nil {
		l.registry.didChange(l, r)
	}
}

// SetField sets field on the spec at path. An empty value erases the
// field.
func (l *Layer) SetField(path value.Path, field value.Token, v value.Value) error {
	s, err := l.lookup(path)
	if err != nil {
		return err
	}
	if v.IsEmpty() {
		delete(s.fields, field)
	} else {
		if s.fields == nil {
			s.fields = make(map[value.Token]value.Value)
		}
		s.fields[field] = v
	}
	l.changed(edit.SetField{Layer: l.id, Path: path, Field: field, Value: v})
	return nil
}

// SetFieldDictValueByKey sets one entry inside the dictionary held by
// field. keyPath is colon-separated; intermediate dictionaries are
// created as needed. An empty value erases the entry. Dictionaries are
// copied on write because values may be shared with records already
// handed to interceptors.
func (l *Layer) SetFieldDictValueByKey(path value.Path, field, keyPath value.Token, v value.Value) error {
	s, err := l.lookup(path)
	if err != nil {
		return err
	}
	if keyPath == "" {
		return fmt.Errorf("%w: empty dictionary key path on %s.%s", ErrInvalidPath, path, field)
	}
	var current value.Dictionary
	if existing, ok := s.fields[field]; ok {
		d, ok := value.Get[value.Dictionary](existing)
		if !ok {
			return fmt.Errorf("%w: %s.%s is %v, want Dictionary", ErrFieldType, path, field, existing.Kind())
		}
		current = d
	}
	updated, err := setDictionaryKey(current, strings.Split(string(keyPath), ":"), v)
	if err != nil {
		return fmt.Errorf("%s.%s[%s]: %w", path, field, keyPath, err)
	}
	if len(updated) == 0 {
		delete(s.fields, field)
	} else {
		if s.fields == nil {
			s.fields = make(map[value.Token]value.Value)
		}
		s.fields[field] = value.Of(updated)
	}
	l.changed(edit.SetFieldDictValueByKey{Layer: l.id, Path: path, Field: field, KeyPath: keyPath, Value: v})
	return nil
}

func setDictionaryKey(d value.Dictionary, keys []string, v value.Value) (value.Dictionary, error) {
	out := make(value.Dictionary, len(d)+1)
	for k, existing := range d {
		out[k] = existing
	}
	key := keys[0]
	if len(keys) == 1 {
		if v.IsEmpty() {
			delete(out, key)
		} else {
			out[key] = v
		}
		return out, nil
	}
	var inner value.Dictionary
	if existing, ok := out[key]; ok {
		nested, ok := value.Get[value.Dictionary](existing)
		if !ok {
			return nil, fmt.Errorf("%w: key %q holds %v", ErrFieldType, key, existing.Kind())
		}
		inner = nested
	}
	updated, err := setDictionaryKey(inner, keys[1:], v)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		delete(out, key)
	} else {
		out[key] = value.Of(updated)
	}
	return out, nil
}

// SetTimeSample sets the sample of the attribute at path at time. An
// empty value erases the sample.
func (l *Layer) SetTimeSample(path value.Path, time float64, v value.Value) error {
	s, err := l.lookup(path)
	if err != nil {
		return err
	}
	if v.IsEmpty() {
		delete(s.samples, time)
	} else {
		if s.samples == nil {
			s.samples = make(map[float64]value.Value)
		}
		s.samples[time] = v
	}
	l.changed(edit.SetTimeSample{Layer: l.id, Path: path, Time: time, Value: v})
	return nil
}

// CreateSpec creates an empty spec of specType at path. The parent
// spec is not required to exist; callers create specs top-down.
func (l *Layer) CreateSpec(path value.Path, specType value.SpecType, inert bool) error {
	if !path.IsAbsolute() || path.IsRoot() {
		return fmt.Errorf("%w: cannot create spec at %q", ErrInvalidPath, path)
	}
	if _, exists := l.specs[path]; exists {
		return fmt.Errorf("%w: %s in %s", ErrSpecExists, path, l.id)
	}
	l.specs[path] = &spec{specType: specType}
	l.changed(edit.CreateSpec{Layer: l.id, Path: path, SpecType: specType, Inert: inert})
	return nil
}

// DeleteSpec removes the spec at path and every spec beneath it.
func (l *Layer) DeleteSpec(path value.Path, inert bool) error {
	if path.IsRoot() {
		return fmt.Errorf("%w: cannot delete the pseudo-root", ErrInvalidPath)
	}
	if _, err := l.lookup(path); err != nil {
		return err
	}
	for p := range l.specs {
		if p.HasPrefix(path) {
			delete(l.specs, p)
		}
	}
	l.changed(edit.DeleteSpec{Layer: l.id, Path: path, Inert: inert})
	return nil
}

// MoveSpec moves the spec at oldPath, and every spec beneath it, to
// newPath.
func (l *Layer) MoveSpec(oldPath, newPath value.Path) error {
	if oldPath.IsRoot() || !newPath.IsAbsolute() || newPath.IsRoot() {
		return fmt.Errorf("%w: cannot move %q to %q", ErrInvalidPath, oldPath, newPath)
	}
	if _, err := l.lookup(oldPath); err != nil {
		return err
	}
	if newPath.HasPrefix(oldPath) {
		return fmt.Errorf("%w: cannot move %s beneath itself", ErrInvalidPath, oldPath)
	}
	if _, exists := l.specs[newPath]; exists {
		return fmt.Errorf("%w: %s in %s", ErrSpecExists, newPath, l.id)
	}
	moved := make(map[value.Path]*spec)
	for p, s := range l.specs {
		if rerooted, ok := p.ReplacePrefix(oldPath, newPath); ok {
			moved[rerooted] = s
			delete(l.specs, p)
		}
	}
	for p, s := range moved {
		l.specs[p] = s
	}
	l.changed(edit.MoveSpec{Layer: l.id, OldPath: oldPath, NewPath: newPath})
	return nil
}

// PushChild appends child (a Token or a Path) to the child list held
// by field on the spec at parent.
func (l *Layer) PushChild(parent value.Path, field value.Token, child value.Value) error {
	s, err := l.lookup(parent)
	if err != nil {
		return err
	}
	existing := s.fields[field]
	var updated value.Value
	switch c := child.Interface().(type) {
	case value.Token:
		list, ok := value.Get[value.TokenVector](existing)
		if !ok && !existing.IsEmpty() {
			return fmt.Errorf("%w: %s.%s is %v, want TokenVector", ErrFieldType, parent, field, existing.Kind())
		}
		updated = value.Of(append(slices.Clone(list), c))
	case value.Path:
		list, ok := value.Get[value.PathVector](existing)
		if !ok && !existing.IsEmpty() {
			return fmt.Errorf("%w: %s.%s is %v, want PathVector", ErrFieldType, parent, field, existing.Kind())
		}
		updated = value.Of(append(slices.Clone(list), c))
	default:
		return fmt.Errorf("%w: child of %s.%s must be a Token or Path, got %v", ErrFieldType, parent, field, child.Kind())
	}
	if s.fields == nil {
		s.fields = make(map[value.Token]value.Value)
	}
	s.fields[field] = updated
	l.changed(edit.PushChild{Layer: l.id, Parent: parent, Field: field, Value: child})
	return nil
}

// PopChild removes the last entry of the child list held by field on
// the spec at parent. The removed entry must equal child.
func (l *Layer) PopChild(parent value.Path, field value.Token, child value.Value) error {
	s, err := l.lookup(parent)
	if err != nil {
		return err
	}
	existing, ok := s.fields[field]
	if !ok {
		return fmt.Errorf("%w: %s.%s has no children", ErrChildMismatch, parent, field)
	}
	var last, remaining value.Value
	var count int
	switch list := existing.Interface().(type) {
	case value.TokenVector:
		count = len(list)
		if count > 0 {
			last = value.Of(list[count-1])
			remaining = value.Of(slices.Clone(list[:count-1]))
		}
	case value.PathVector:
		count = len(list)
		if count > 0 {
			last = value.Of(list[count-1])
			remaining = value.Of(slices.Clone(list[:count-1]))
		}
	default:
		return fmt.Errorf("%w: %s.%s is %v, want a child list", ErrFieldType, parent, field, existing.Kind())
	}
	if count == 0 {
		return fmt.Errorf("%w: %s.%s has no children", ErrChildMismatch, parent, field)
	}
	if !value.Equal(last, child) {
		return fmt.Errorf("%w: last child of %s.%s is %v, not %v", ErrChildMismatch, parent, field, last, child)
	}
	if count == 1 {
		delete(s.fields, field)
	} else {
		s.fields[field] = remaining
	}
	l.changed(edit.PopChild{Layer: l.id, Parent: parent, Field: field, OldValue: child})
	return nil
}

// Enumerate walks the layer's content as the sequence of records that
// rebuilds it on an empty layer: CreateSpec for every spec (parents
// first), SetField for every field, PushChild for every child-list
// entry, and SetTimeSample for every sample. Enumeration stops at the
// first error returned by fn.
func (l *Layer) Enumerate(fn func(edit.Record) error) error {
	for _, path := range l.Paths() {
		s := l.specs[path]
		if !path.IsRoot() {
			if err := fn(edit.CreateSpec{Layer: l.id, Path: path, SpecType: s.specType}); err != nil {
				return err
			}
		}
		for _, field := range l.Fields(path) {
			v := s.fields[field]
			if IsChildField(field) {
				if err := enumerateChildren(l.id, path, field, v, fn); err != nil {
					return err
				}
				continue
			}
			if err := fn(edit.SetField{Layer: l.id, Path: path, Field: field, Value: v}); err != nil {
				return err
			}
		}
		for _, t := range l.SampleTimes(path) {
			if err := fn(edit.SetTimeSample{Layer: l.id, Path: path, Time: t, Value: s.samples[t]}); err != nil {
				return err
			}
		}
	}
	return nil
}

func enumerateChildren(id string, parent value.Path, field value.Token, list value.Value, fn func(edit.Record) error) error {
	push := func(child value.Value) error {
		return fn(edit.PushChild{Layer: id, Parent: parent, Field: field, Value: child})
	}
	switch items := list.Interface().(type) {
	case value.TokenVector:
		for _, item := range items {
			if err := push(value.Of(item)); err != nil {
				return err
			}
		}
		return nil
	case value.PathVector:
		for _, item := range items {
			if err := push(value.Of(item)); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(edit.SetField{Layer: id, Path: parent, Field: field, Value: list})
}

// TransferContent replaces the entire content of l with a copy of the
// content of src and marks l dirty. The layer's identity is unchanged.
// Interceptors see no records; change listeners receive one notice.
func (l *Layer) TransferContent(src *Layer) {
	specs := make(map[value.Path]*spec, len(src.specs))
	for p, s := range src.specs {
		specs[p] = s.clone()
	}
	l.specs = specs
	l.dirty = true
	if l.registry != nil {
		l.registry.didChange(l, nil)
	}
}

// ContentEqual reports whether l and other hold the same specs,
// fields, and samples. Identity and dirty state are ignored.
func (l *Layer) ContentEqual(other *Layer) bool {
	if len(l.specs) != len(other.specs) {
		return false
	}
	for p, s := range l.specs {
		o, ok := other.specs[p]
		if !ok || s.specType != o.specType || len(s.fields) != len(o.fields) || len(s.samples) != len(o.samples) {
			return false
		}
		for name, v := range s.fields {
			ov, ok := o.fields[name]
			if !ok || !value.Equal(v, ov) {
				return false
			}
		}
		for t, v := range s.samples {
			ov, ok := o.samples[t]
			if !ok || !value.Equal(v, ov) {
				return false
			}
		}
	}
	return true
}
