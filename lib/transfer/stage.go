// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/opendcc/liveshare/lib/codec"
	"github.com/opendcc/liveshare/lib/layer"
)

// snapshotDir is the subdirectory holding staged snapshots.
const snapshotDir = "layers"

// SnapshotName returns the file name a layer's snapshot is staged
// under: the first 16 bytes of the BLAKE3 hash of its identifier, hex
// encoded. Identifiers are arbitrary strings (often file paths) and are
// not usable as file names directly.
func SnapshotName(id string) string {
	sum := blake3.Sum256([]byte(id))
	return hex.EncodeToString(sum[:16]) + ".lsnap"
}

// Stage exports every dirty, non-anonymous layer in layers into dir and
// updates the manifest. Entries already in the manifest for layers not
// re-exported are kept, so a layer staged once stays available after it
// is marked clean. The updated manifest is returned.
//
// Stage reads the layers' content and must run on the goroutine that
// owns them.
func Stage(dir string, layers []*layer.Layer, registry *codec.Registry, tag layer.CompressionTag) (Manifest, error) {
	if err := os.MkdirAll(filepath.Join(dir, snapshotDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating transfer directory: %w", err)
	}

	manifest, err := ReadManifest(dir)
	if errors.Is(err, fs.ErrNotExist) {
		manifest, err = Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}

	for _, l := range layers {
		if l.IsAnonymous() || !l.IsDirty() {
			continue
		}
		relative := snapshotDir + "/" + SnapshotName(l.Identifier())
		if err := l.ExportFile(filepath.Join(dir, filepath.FromSlash(relative)), registry, tag); err != nil {
			return nil, fmt.Errorf("staging %s: %w", l.Identifier(), err)
		}
		manifest[l.Identifier()] = relative
	}

	if err := WriteManifest(dir, manifest); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	return manifest, nil
}

// Entry is one layer loaded from a transfer directory.
type Entry struct {
	ID    string
	Layer *layer.Layer
}

// SkippedEntry records a manifest entry Load could not use.
type SkippedEntry struct {
	ID  string
	Err error
}

// Load reads the manifest in dir and loads every entry into a
// standalone layer. Entries that cannot be resolved or loaded are
// reported in skipped and do not stop the others. A missing or
// unparseable manifest is returned as err.
//
// Load touches only the transfer directory and is safe to call off the
// owning goroutine; the returned layers belong to no registry.
func Load(dir string, registry *codec.Registry) (entries []Entry, skipped []SkippedEntry, err error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range sortedKeys(manifest) {
		file, err := Resolve(dir, manifest[id])
		if err != nil {
			skipped = append(skipped, SkippedEntry{ID: id, Err: err})
			continue
		}
		l, err := layer.LoadFile(file, registry, id)
		if err != nil {
			skipped = append(skipped, SkippedEntry{ID: id, Err: err})
			continue
		}
		entries = append(entries, Entry{ID: id, Layer: l})
	}
	return entries, skipped, nil
}
