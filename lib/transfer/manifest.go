// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
)

// ManifestName is the manifest's file name inside a transfer directory.
const ManifestName = "layer_transfer_content.json"

// ErrEscapesDirectory is returned by Resolve for manifest entries that
// point outside the transfer directory.
var ErrEscapesDirectory = errors.New("transfer: path escapes transfer directory")

// Manifest maps a layer identifier to the slash-separated path of its
// snapshot, relative to the transfer directory.
type Manifest map[string]string

// ParseManifest strips JSONC comments and trailing commas from data,
// then unmarshals the result.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if manifest == nil {
		manifest = Manifest{}
	}
	return manifest, nil
}

// ReadManifest reads the manifest in dir.
func ReadManifest(dir string) (Manifest, error) {
	file := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return manifest, nil
}

// WriteManifest replaces the manifest in dir atomically.
func WriteManifest(dir string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, ManifestName))
}

// Resolve joins a manifest entry onto dir. A leading slash is stripped,
// so "/layers/a.lsnap" and "layers/a.lsnap" resolve identically.
func Resolve(dir, relative string) (string, error) {
	cleaned := path.Clean(strings.TrimLeft(relative, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrEscapesDirectory, relative)
	}
	return filepath.Join(dir, filepath.FromSlash(cleaned)), nil
}

func sortedKeys(manifest Manifest) []string {
	keys := make([]string, 0, len(manifest))
	for key := range manifest {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
