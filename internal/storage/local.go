// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package storage persists uploaded asset blobs on the local filesystem.
// Each asset lives under a fresh key directory so names never collide.
package storage

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidPath is returned when a requested asset path escapes the store.
var ErrInvalidPath = errors.New("invalid asset path")

// AssetMeta describes one stored asset.
type AssetMeta struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Store writes and serves asset blobs under dataDir/assets.
type Store struct {
	assetsDir string
}

// NewStore prepares the assets directory under dataDir.
func NewStore(dataDir string) (*Store, error) {
	assetsDir := filepath.Join(dataDir, "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	return &Store{assetsDir: assetsDir}, nil
}

// SaveAsset persists a blob under a fresh storage key and returns its
// metadata, including the public URL it will be served from.
func (s *Store) SaveAsset(name string, r io.Reader) (*AssetMeta, error) {
	key := uuid.NewString()

	dir := filepath.Join(s.assetsDir, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}

	name = filepath.Base(name)
	dst := filepath.Join(dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create asset file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write asset file: %w", err)
	}

	return &AssetMeta{
		Key:  key,
		Name: name,
		URL:  AssetURL(key, name),
		Size: size,
	}, nil
}

// Open returns a reader for a stored asset. The joined path is checked
// against the store root to block traversal.
func (s *Store) Open(key, filename string) (*os.File, error) {
	p := filepath.Join(s.assetsDir, key, filename)
	if !strings.HasPrefix(filepath.Clean(p), s.assetsDir+string(filepath.Separator)) {
		return nil, ErrInvalidPath
	}
	return os.Open(p)
}

// DeleteAssets removes the blobs for the given storage keys. Missing keys are
// ignored; a failed removal is logged but does not abort the rest.
func (s *Store) DeleteAssets(keys []string) {
	for _, key := range keys {
		if key == "" || strings.ContainsAny(key, "/\\") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.assetsDir, key)); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to remove stored asset")
		}
	}
}

// AssetURL builds the public URL an asset is served from.
func AssetURL(key, name string) string {
	return "/api/assets/" + key + "/" + url.PathEscape(name)
}

// ContentTypeFor maps an asset filename to a response content type.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
