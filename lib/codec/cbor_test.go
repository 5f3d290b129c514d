// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// sampleEnvelope has the shape of a routed protocol envelope: a route
// id and an opaque body.
type sampleEnvelope struct {
	Route uint64 `cbor:"route"`
	Body  []byte `cbor:"body,omitempty"`
	Note  string `cbor:"note,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleEnvelope{Route: 42, Body: []byte{1, 0, 0, 0}, Note: "catch-up"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleEnvelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Route != original.Route || decoded.Note != original.Note || !bytes.Equal(decoded.Body, original.Body) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	message := map[string]any{"route": 7, "body": []byte("x"), "note": "y"}

	first, err := Marshal(message)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Marshal(message)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withBody := sampleEnvelope{Route: 1, Body: []byte("payload")}
	withoutBody := sampleEnvelope{Route: 1}

	dataWith, err := Marshal(withBody)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutBody)
	if err != nil {
		t.Fatal(err)
	}
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var message sampleEnvelope
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &message); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestAnyTargetDecodesStringKeyedMap(t *testing.T) {
	data, err := Marshal(map[string]any{"route": 5})
	if err != nil {
		t.Fatal(err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleEnvelope{Route: 9, Note: "status"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"route"`) || !strings.Contains(notation, `"status"`) {
		t.Errorf("notation %q missing expected fields", notation)
	}
}

func BenchmarkMarshalEnvelope(b *testing.B) {
	envelope := sampleEnvelope{Route: 42, Body: make([]byte, 256)}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Marshal(envelope)
	}
}
