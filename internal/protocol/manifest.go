// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package protocol defines the parsed protocol manifest and its content
// fingerprint.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ManifestAsset is one media asset declared by a manifest's asset manifest.
type ManifestAsset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

// Manifest is the parsed protocol document extracted from a submitted bundle.
// The raw bytes are retained for fingerprinting and storage.
type Manifest struct {
	SchemaVersion string                   `json:"schemaVersion"`
	Name          string                   `json:"name,omitempty"`
	Description   string                   `json:"description,omitempty"`
	AssetManifest map[string]ManifestAsset `json:"assetManifest,omitempty"`
	Stages        []json.RawMessage        `json:"stages,omitempty"`

	raw []byte
}

type manifestAlias Manifest

type manifestWire struct {
	manifestAlias
	SchemaVersion json.RawMessage `json:"schemaVersion"`
}

// Parse decodes manifest JSON. The declared schema version may be a JSON
// string or number; both are normalized to a string.
func Parse(data []byte) (*Manifest, error) {
	var wire manifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := Manifest(wire.manifestAlias)
	m.raw = data

	version, err := decodeSchemaVersion(wire.SchemaVersion)
	if err != nil {
		return nil, err
	}
	m.SchemaVersion = version

	return &m, nil
}

func decodeSchemaVersion(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("manifest is missing schemaVersion")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("unexpected schemaVersion value %s", string(raw))
}

// Raw returns the manifest bytes as submitted.
func (m *Manifest) Raw() []byte {
	return m.raw
}

// Assets returns the declared assets in a stable order.
func (m *Manifest) Assets() []ManifestAsset {
	if len(m.AssetManifest) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m.AssetManifest))
	for k := range m.AssetManifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assets := make([]ManifestAsset, 0, len(keys))
	for _, k := range keys {
		a := m.AssetManifest[k]
		if a.ID == "" {
			a.ID = k
		}
		assets = append(assets, a)
	}
	return assets
}

// FormatVersionList renders a supported-version set for user-facing messages,
// e.g. "1.0.0, 2.0.0 and 3.0.0".
func FormatVersionList(versions []string) string {
	switch len(versions) {
	case 0:
		return ""
	case 1:
		return versions[0]
	default:
		return strings.Join(versions[:len(versions)-1], ", ") + " and " + versions[len(versions)-1]
	}
}
