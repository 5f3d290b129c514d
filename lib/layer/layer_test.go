// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/edit"
	"github.com/opendcc/liveshare/lib/value"
)

// buildScene populates l with a small prim hierarchy.
func buildScene(t *testing.T, l *Layer) {
	t.Helper()
	steps := []func() error{
		func() error { return l.CreateSpec("/World", value.SpecTypePrim, false) },
		func() error { return l.PushChild("/", FieldPrimChildren, value.Of(value.Token("World"))) },
		func() error { return l.SetField("/World", "specifier", value.Of(value.SpecifierDef)) },
		func() error { return l.CreateSpec("/World/Cube", value.SpecTypePrim, false) },
		func() error { return l.PushChild("/World", FieldPrimChildren, value.Of(value.Token("Cube"))) },
		func() error { return l.CreateSpec("/World/Cube.size", value.SpecTypeAttribute, false) },
		func() error { return l.PushChild("/World/Cube", FieldPropertyChildren, value.Of(value.Token("size"))) },
		func() error { return l.SetField("/World/Cube.size", "default", value.Of(2.0)) },
		func() error { return l.SetTimeSample("/World/Cube.size", 1, value.Of(1.0)) },
		func() error { return l.SetTimeSample("/World/Cube.size", 24, value.Of(4.0)) },
		func() error {
			return l.SetFieldDictValueByKey("/World/Cube", "customData", "render:visible", value.Of(true))
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestNewLayerHasPseudoRoot(t *testing.T) {
	l := New("scene.usda")
	if !l.HasSpec(value.RootPath) || l.SpecType(value.RootPath) != value.SpecTypePseudoRoot {
		t.Fatal("new layer has no pseudo-root")
	}
	if l.IsDirty() || l.IsAnonymous() {
		t.Fatalf("dirty=%v anonymous=%v", l.IsDirty(), l.IsAnonymous())
	}
	if !New("anon:1").IsAnonymous() {
		t.Fatal("anon: layer not reported anonymous")
	}
}

func TestMutations(t *testing.T) {
	l := New("scene.usda")
	buildScene(t, l)

	if !l.IsDirty() {
		t.Error("layer not dirty after mutations")
	}
	v, ok := l.Field("/World/Cube.size", "default")
	if !ok || !value.Equal(v, value.Of(2.0)) {
		t.Errorf("size default = %v, %v", v, ok)
	}
	if got := l.SampleTimes("/World/Cube.size"); len(got) != 2 || got[0] != 1 || got[1] != 24 {
		t.Errorf("sample times = %v", got)
	}
	children, _ := l.Field("/", FieldPrimChildren)
	if !value.Equal(children, value.Of(value.TokenVector{"World"})) {
		t.Errorf("root children = %v", children)
	}
	customData, _ := l.Field("/World/Cube", "customData")
	want := value.Of(value.Dictionary{"render": value.Of(value.Dictionary{"visible": value.Of(true)})})
	if !value.Equal(customData, want) {
		t.Errorf("customData = %v, want %v", customData, want)
	}
}

func TestSetFieldEmptyErases(t *testing.T) {
	l := New("x")
	buildScene(t, l)
	if err := l.SetField("/World/Cube.size", "default", value.Value{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Field("/World/Cube.size", "default"); ok {
		t.Fatal("field still present after erase")
	}
	if err := l.SetTimeSample("/World/Cube.size", 1, value.Value{}); err != nil {
		t.Fatal(err)
	}
	if got := l.SampleTimes("/World/Cube.size"); len(got) != 1 {
		t.Fatalf("sample times after erase = %v", got)
	}
}

func TestSetFieldDictValueByKey(t *testing.T) {
	l := New("x")
	if err := l.CreateSpec("/p", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	if err := l.SetFieldDictValueByKey("/p", "customData", "a:b", value.Of(int32(1))); err != nil {
		t.Fatal(err)
	}
	before, _ := l.Field("/p", "customData")
	if err := l.SetFieldDictValueByKey("/p", "customData", "a:c", value.Of(int32(2))); err != nil {
		t.Fatal(err)
	}
	// Copy on write: the earlier value is unchanged.
	if !value.Equal(before, value.Of(value.Dictionary{"a": value.Of(value.Dictionary{"b": value.Of(int32(1))})})) {
		t.Fatalf("earlier dictionary mutated: %v", before)
	}
	if err := l.SetFieldDictValueByKey("/p", "customData", "a:b", value.Value{}); err != nil {
		t.Fatal(err)
	}
	if err := l.SetFieldDictValueByKey("/p", "customData", "a:c", value.Value{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Field("/p", "customData"); ok {
		t.Fatal("empty dictionary field not erased")
	}

	if err := l.SetField("/p", "kind", value.Of(value.Token("component"))); err != nil {
		t.Fatal(err)
	}
	err := l.SetFieldDictValueByKey("/p", "kind", "x", value.Of(true))
	if !errors.Is(err, ErrFieldType) {
		t.Fatalf("err = %v, want ErrFieldType", err)
	}
}

func TestSpecErrors(t *testing.T) {
	l := New("x")
	if err := l.SetField("/missing", "f", value.Of(true)); !errors.Is(err, ErrSpecNotFound) {
		t.Errorf("SetField on missing spec: %v", err)
	}
	if err := l.CreateSpec("relative", value.SpecTypePrim, false); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("CreateSpec relative: %v", err)
	}
	if err := l.CreateSpec("/a", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	if err := l.CreateSpec("/a", value.SpecTypePrim, false); !errors.Is(err, ErrSpecExists) {
		t.Errorf("CreateSpec twice: %v", err)
	}
	if err := l.DeleteSpec("/", false); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("DeleteSpec root: %v", err)
	}
	if err := l.MoveSpec("/a", "/a/b"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("MoveSpec beneath itself: %v", err)
	}
	if err := l.PushChild("/a", FieldPrimChildren, value.Of(int32(1))); !errors.Is(err, ErrFieldType) {
		t.Errorf("PushChild int: %v", err)
	}
	if err := l.PopChild("/a", FieldPrimChildren, value.Of(value.Token("x"))); !errors.Is(err, ErrChildMismatch) {
		t.Errorf("PopChild empty: %v", err)
	}
}

func TestDeleteSpecRemovesDescendants(t *testing.T) {
	l := New("x")
	buildScene(t, l)
	if err := l.DeleteSpec("/World/Cube", false); err != nil {
		t.Fatal(err)
	}
	for _, p := range []value.Path{"/World/Cube", "/World/Cube.size"} {
		if l.HasSpec(p) {
			t.Errorf("%s survived deletion", p)
		}
	}
	if !l.HasSpec("/World") {
		t.Error("parent deleted")
	}
}

func TestMoveSpecReroots(t *testing.T) {
	l := New("x")
	buildScene(t, l)
	if err := l.MoveSpec("/World/Cube", "/World/Box"); err != nil {
		t.Fatal(err)
	}
	if l.HasSpec("/World/Cube") || l.HasSpec("/World/Cube.size") {
		t.Fatal("old paths remain")
	}
	v, ok := l.Field("/World/Box.size", "default")
	if !ok || !value.Equal(v, value.Of(2.0)) {
		t.Fatalf("moved attribute default = %v, %v", v, ok)
	}
}

func TestPushPopChild(t *testing.T) {
	l := New("x")
	if err := l.CreateSpec("/rel", value.SpecTypeRelationship, false); err != nil {
		t.Fatal(err)
	}
	for _, target := range []value.Path{"/a", "/b"} {
		if err := l.PushChild("/rel", FieldTargetChildren, value.Of(target)); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.PopChild("/rel", FieldTargetChildren, value.Of(value.Path("/a"))); !errors.Is(err, ErrChildMismatch) {
		t.Fatalf("popping a non-last child: %v", err)
	}
	if err := l.PopChild("/rel", FieldTargetChildren, value.Of(value.Path("/b"))); err != nil {
		t.Fatal(err)
	}
	v, _ := l.Field("/rel", FieldTargetChildren)
	if !value.Equal(v, value.Of(value.PathVector{"/a"})) {
		t.Fatalf("targets = %v", v)
	}
	if err := l.PopChild("/rel", FieldTargetChildren, value.Of(value.Path("/a"))); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Field("/rel", FieldTargetChildren); ok {
		t.Fatal("empty child list not removed")
	}
}

func TestEnumerateRebuildsContent(t *testing.T) {
	original := New("x")
	buildScene(t, original)

	rebuilt := New("y")
	var records []edit.Record
	err := original.Enumerate(func(r edit.Record) error {
		records = append(records, r)
		return r.Apply(rebuilt)
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if !rebuilt.ContentEqual(original) {
		t.Fatal("content rebuilt from Enumerate differs")
	}
	for _, r := range records {
		if layer, ok := edit.LayerOf(r); !ok || layer != "x" {
			t.Fatalf("record %s targets %q", edit.Describe(r), layer)
		}
		if _, isSetField := r.(edit.SetField); isSetField && IsChildField(r.(edit.SetField).Field) {
			t.Fatalf("child list enumerated as SetField: %s", edit.Describe(r))
		}
	}
}

func TestEnumerateStopsOnError(t *testing.T) {
	l := New("x")
	buildScene(t, l)
	stop := errors.New("stop")
	calls := 0
	err := l.Enumerate(func(edit.Record) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestTransferContent(t *testing.T) {
	src := New("src")
	buildScene(t, src)
	dst := New("dst")
	if err := dst.CreateSpec("/Old", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	dst.MarkClean()

	dst.TransferContent(src)
	if !dst.ContentEqual(src) {
		t.Fatal("content differs after transfer")
	}
	if dst.Identifier() != "dst" || !dst.IsDirty() {
		t.Fatalf("identity=%q dirty=%v", dst.Identifier(), dst.IsDirty())
	}
	// The copy is independent of the source.
	if err := src.SetField("/World", "specifier", value.Of(value.SpecifierOver)); err != nil {
		t.Fatal(err)
	}
	v, _ := dst.Field("/World", "specifier")
	if !value.Equal(v, value.Of(value.SpecifierDef)) {
		t.Fatal("transferred content aliases the source")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	original := New("scene.usda")
	buildScene(t, original)

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			var buffer bytes.Buffer
			if err := original.WriteSnapshot(&buffer, codec.Standard(), tag); err != nil {
				t.Fatalf("WriteSnapshot: %v", err)
			}
			loaded, err := ReadSnapshot(&buffer, codec.Standard(), "copy")
			if err != nil {
				t.Fatalf("ReadSnapshot: %v", err)
			}
			if !loaded.ContentEqual(original) {
				t.Fatal("snapshot content differs")
			}
			if loaded.IsDirty() {
				t.Fatal("freshly loaded layer is dirty")
			}
		})
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("LSNP"), []byte("not a snapshot at all")} {
		if _, err := ReadSnapshot(bytes.NewReader(data), codec.Standard(), "x"); !errors.Is(err, ErrBadSnapshot) {
			t.Errorf("ReadSnapshot(%q) err = %v, want ErrBadSnapshot", data, err)
		}
	}

	var buffer bytes.Buffer
	l := New("x")
	buildScene(t, l)
	if err := l.WriteSnapshot(&buffer, codec.Standard(), CompressionNone); err != nil {
		t.Fatal(err)
	}
	truncated := buffer.Bytes()[:buffer.Len()-3]
	if _, err := ReadSnapshot(bytes.NewReader(truncated), codec.Standard(), "x"); !errors.Is(err, ErrBadSnapshot) {
		t.Errorf("truncated snapshot err = %v", err)
	}
}

func TestExportAndLoadFile(t *testing.T) {
	l := New("scene.usda")
	buildScene(t, l)
	path := filepath.Join(t.TempDir(), "nested", "scene.lsnap")
	if err := l.ExportFile(path, codec.Standard(), CompressionZstd); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	loaded, err := LoadFile(path, codec.Standard(), "scene.usda")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !loaded.ContentEqual(l) {
		t.Fatal("loaded content differs")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing"), codec.Standard(), "x"); err == nil {
		t.Fatal("LoadFile on a missing file succeeded")
	}
}

func TestParseCompressionTag(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseCompressionTag(name)
		if err != nil || tag.String() != name {
			t.Errorf("ParseCompressionTag(%q) = %v, %v", name, tag, err)
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil || !strings.Contains(err.Error(), "gzip") {
		t.Errorf("ParseCompressionTag(gzip) err = %v", err)
	}
}
