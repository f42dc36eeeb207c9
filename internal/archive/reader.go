// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package archive reads submitted protocol bundles: zip archives carrying a
// protocol.json manifest and the media assets it declares.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/protovault/protovault/internal/protocol"
)

const (
	manifestName = "protocol.json"
	assetsPrefix = "assets/"
)

// AssetBlob is one asset extracted from a bundle, ready for upload.
type AssetBlob struct {
	AssetID string
	Name    string
	Type    string
	Data    []byte
}

// Archive is an opened protocol bundle.
type Archive struct {
	files map[string]*zip.File
}

// Opener opens submitted bundle bytes. It exists so tests can substitute a
// fake returning canned archives.
type Opener interface {
	Open(data []byte) (*Archive, error)
}

// ZipOpener opens real zip bundles.
type ZipOpener struct{}

func (ZipOpener) Open(data []byte) (*Archive, error) {
	return Open(data)
}

// Open parses bundle bytes as a zip archive.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[path.Clean(f.Name)] = f
	}

	return &Archive{files: files}, nil
}

// Manifest extracts and parses the protocol.json document.
func (a *Archive) Manifest() (*protocol.Manifest, error) {
	data, err := a.read(manifestName)
	if err != nil {
		return nil, fmt.Errorf("bundle has no readable %s: %w", manifestName, err)
	}
	return protocol.Parse(data)
}

// ReadAsset returns the bytes of one embedded asset by its declared source.
func (a *Archive) ReadAsset(source string) ([]byte, error) {
	return a.read(assetsPrefix + path.Clean(source))
}

// Assets extracts every asset the manifest declares. A declared asset missing
// from the bundle is an error; the manifest-to-storage linkage would otherwise
// be incomplete.
func (a *Archive) Assets(m *protocol.Manifest) ([]AssetBlob, error) {
	declared := m.Assets()
	if len(declared) == 0 {
		return nil, nil
	}

	blobs := make([]AssetBlob, 0, len(declared))
	for _, asset := range declared {
		data, err := a.ReadAsset(asset.Source)
		if err != nil {
			return nil, fmt.Errorf("declared asset %q (%s): %w", asset.ID, asset.Source, err)
		}
		blobs = append(blobs, AssetBlob{
			AssetID: asset.ID,
			Name:    asset.Name,
			Type:    asset.Type,
			Data:    data,
		})
	}

	return blobs, nil
}

func (a *Archive) read(name string) ([]byte, error) {
	f, ok := a.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("entry %q not found", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %q: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %q: %w", name, err)
	}
	return data, nil
}
