// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/protovault/protovault/internal/database"
)

// Protocol represents one durably imported protocol record.
type Protocol struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Hash          string          `json:"hash"`
	SchemaVersion string          `json:"schemaVersion"`
	Manifest      json.RawMessage `json:"manifest,omitempty"`
	ImportedAt    time.Time       `json:"importedAt"`
	AssetCount    int             `json:"assetCount"`
}

// NewProtocolAsset is an asset uploaded during an import, carrying both its
// manifest identity and its storage metadata.
type NewProtocolAsset struct {
	AssetID string `json:"assetId"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	URL     string `json:"url"`
	Size    int64  `json:"size"`
}

// ProtocolImport is everything needed to persist one validated protocol as a
// single record: the manifest, the freshly uploaded assets, and references to
// assets that already existed in storage.
type ProtocolImport struct {
	Name             string
	Hash             string
	SchemaVersion    string
	Manifest         json.RawMessage
	NewAssets        []NewProtocolAsset
	ExistingAssetIDs []string
}

// ProtocolStore persists protocol records and their asset linkage.
type ProtocolStore struct {
	db *database.DB
}

func NewProtocolStore(db *database.DB) *ProtocolStore {
	return &ProtocolStore{db: db}
}

// ProtocolExists reports whether a record with the given content fingerprint
// is already stored.
func (s *ProtocolStore) ProtocolExists(ctx context.Context, hash string) (bool, error) {
	var count int
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(1) FROM protocols WHERE hash = ?", hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query protocol by hash: %w", err)
	}
	return count > 0, nil
}

// NewAssetIDs returns the subset of candidate asset IDs that are NOT already
// in storage, i.e. the ones that need uploading. Callers rely on this
// direction of the contract.
func (s *ProtocolStore) NewAssetIDs(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(assetIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(assetIDs))
	for i, id := range assetIDs {
		args[i] = id
	}

	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT asset_id FROM assets WHERE asset_id IN ("+placeholders+")", args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query existing assets: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(assetIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing assets: %w", err)
	}

	var missing []string
	for _, id := range assetIDs {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// WriteProtocol persists the record, its new assets, and all asset linkage in
// one transaction. Nothing is written if any part fails.
func (s *ProtocolStore) WriteProtocol(ctx context.Context, rec *ProtocolImport) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO protocols (name, hash, schema_version, manifest) VALUES (?, ?, ?, ?)",
		rec.Name, rec.Hash, rec.SchemaVersion, string(rec.Manifest),
	)
	if err != nil {
		return fmt.Errorf("insert protocol: %w", err)
	}

	protocolID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resolve protocol id: %w", err)
	}

	for _, a := range rec.NewAssets {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO assets (asset_id, key, name, type, url, size) VALUES (?, ?, ?, ?, ?, ?)",
			a.AssetID, a.Key, a.Name, a.Type, a.URL, a.Size,
		); err != nil {
			return fmt.Errorf("insert asset %s: %w", a.AssetID, err)
		}
	}

	linked := make([]string, 0, len(rec.NewAssets)+len(rec.ExistingAssetIDs))
	for _, a := range rec.NewAssets {
		linked = append(linked, a.AssetID)
	}
	linked = append(linked, rec.ExistingAssetIDs...)

	for _, assetID := range linked {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO protocol_assets (protocol_id, asset_id) VALUES (?, ?)",
			protocolID, assetID,
		); err != nil {
			return fmt.Errorf("link asset %s: %w", assetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import transaction: %w", err)
	}
	return nil
}

// GetByHash fetches a record by content fingerprint.
func (s *ProtocolStore) GetByHash(ctx context.Context, hash string) (*Protocol, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT id, name, hash, schema_version, manifest, imported_at FROM protocols WHERE hash = ?", hash,
	)
	return scanProtocol(row)
}

// List returns all stored records, newest first, without manifest bodies.
func (s *ProtocolStore) List(ctx context.Context) ([]Protocol, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT p.id, p.name, p.hash, p.schema_version, p.imported_at, COUNT(pa.asset_id)
		FROM protocols p
		LEFT JOIN protocol_assets pa ON pa.protocol_id = p.id
		GROUP BY p.id
		ORDER BY p.imported_at DESC, p.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	var protocols []Protocol
	for rows.Next() {
		var p Protocol
		if err := rows.Scan(&p.ID, &p.Name, &p.Hash, &p.SchemaVersion, &p.ImportedAt, &p.AssetCount); err != nil {
			return nil, fmt.Errorf("scan protocol: %w", err)
		}
		protocols = append(protocols, p)
	}
	return protocols, rows.Err()
}

// Delete removes a record and any assets no longer referenced by other
// records, returning the storage keys of the removed assets so the caller can
// delete their blobs.
func (s *ProtocolStore) Delete(ctx context.Context, id int64) ([]string, error) {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM protocols WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("delete protocol: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}

	// ON DELETE CASCADE has removed the linkage rows; anything unreferenced
	// now is safe to drop.
	rows, err := tx.QueryContext(ctx, `
		SELECT a.asset_id, a.key FROM assets a
		LEFT JOIN protocol_assets pa ON pa.asset_id = a.asset_id
		WHERE pa.asset_id IS NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("query orphaned assets: %w", err)
	}

	var orphanIDs []string
	var orphanKeys []string
	for rows.Next() {
		var assetID, key string
		if err := rows.Scan(&assetID, &key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan orphaned asset: %w", err)
		}
		orphanIDs = append(orphanIDs, assetID)
		orphanKeys = append(orphanKeys, key)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for _, assetID := range orphanIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE asset_id = ?", assetID); err != nil {
			return nil, fmt.Errorf("delete orphaned asset %s: %w", assetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete transaction: %w", err)
	}
	return orphanKeys, nil
}

func scanProtocol(row *sql.Row) (*Protocol, error) {
	var p Protocol
	var manifest string
	if err := row.Scan(&p.ID, &p.Name, &p.Hash, &p.SchemaVersion, &manifest, &p.ImportedAt); err != nil {
		return nil, err
	}
	p.Manifest = json.RawMessage(manifest)
	return &p, nil
}
