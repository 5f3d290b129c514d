// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/edit"
)

// Snapshot file layout:
//
//	magic   [4]byte  "LSNP"
//	version uint8    1
//	tag     uint8    CompressionTag of the body
//	size    uint64   uncompressed body size, little-endian
//	body    []byte   the layer's Enumerate records, each in edit wire
//	                 form, concatenated
//
// The body uses the edit-log encoding, so snapshots share its
// same-architecture restriction.
var snapshotMagic = [4]byte{'L', 'S', 'N', 'P'}

const (
	snapshotVersion    = 1
	snapshotHeaderSize = 4 + 1 + 1 + 8

	// maxSnapshotSize bounds the allocation made from a header's size
	// field.
	maxSnapshotSize = 1 << 30
)

// ErrBadSnapshot is returned for files that are not layer snapshots or
// whose header is inconsistent with the body.
var ErrBadSnapshot = errors.New("layer: malformed snapshot")

// WriteSnapshot writes the content of l to w. Incompressible bodies are
// stored uncompressed regardless of tag.
func (l *Layer) WriteSnapshot(w io.Writer, registry *codec.Registry, tag CompressionTag) error {
	body := codec.NewWriter(registry)
	err := l.Enumerate(func(r edit.Record) error {
		return edit.Write(body, r)
	})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", l.id, err)
	}

	payload, err := compress(body.Bytes(), tag)
	if errors.Is(err, errIncompressible) {
		payload, tag, err = body.Bytes(), CompressionNone, nil
	}
	if err != nil {
		return fmt.Errorf("compressing %s: %w", l.id, err)
	}

	var header [snapshotHeaderSize]byte
	copy(header[:4], snapshotMagic[:])
	header[4] = snapshotVersion
	header[5] = byte(tag)
	binary.LittleEndian.PutUint64(header[6:], uint64(body.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadSnapshot decodes a snapshot into a new standalone layer with the
// given id.
func ReadSnapshot(r io.Reader, registry *codec.Registry, id string) (*Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < snapshotHeaderSize || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: missing header", ErrBadSnapshot)
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, data[4])
	}
	tag := CompressionTag(data[5])
	size := binary.LittleEndian.Uint64(data[6:snapshotHeaderSize])
	if size > maxSnapshotSize {
		return nil, fmt.Errorf("%w: body size %d exceeds limit", ErrBadSnapshot, size)
	}
	body, err := decompress(data[snapshotHeaderSize:], tag, int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	l := New(id)
	reader := codec.NewReader(registry, body)
	for reader.Remaining() > 0 {
		record, err := edit.Read(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
		}
		if err := record.Apply(l); err != nil {
			return nil, fmt.Errorf("%w: applying %s: %w", ErrBadSnapshot, edit.Describe(record), err)
		}
	}
	l.dirty = false
	return l, nil
}

// ExportFile writes a snapshot of l to path, replacing any existing
// file atomically.
func (l *Layer) ExportFile(path string, registry *codec.Registry, tag CompressionTag) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := l.WriteSnapshot(tmp, registry, tag); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile reads the snapshot at path into a new standalone layer.
func LoadFile(path string, registry *codec.Registry, id string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := ReadSnapshot(f, registry, id)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return l, nil
}
