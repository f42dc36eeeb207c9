// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package validation checks protocol manifests for structural problems before
// they are imported. The Validator interface keeps the rules swappable; the
// import pipeline treats it as an opaque collaborator.
package validation

import (
	"context"
	"fmt"

	"github.com/protovault/protovault/internal/protocol"
)

// Error is one itemized validation finding.
type Error struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the verdict for a manifest.
type Result struct {
	IsValid      bool    `json:"isValid"`
	SchemaErrors []Error `json:"schemaErrors"`
	LogicErrors  []Error `json:"logicErrors"`
}

// Errors returns all findings, schema first.
func (r *Result) Errors() []Error {
	out := make([]Error, 0, len(r.SchemaErrors)+len(r.LogicErrors))
	out = append(out, r.SchemaErrors...)
	out = append(out, r.LogicErrors...)
	return out
}

// Validator renders a validity verdict for a manifest.
type Validator interface {
	Validate(ctx context.Context, m *protocol.Manifest) (*Result, error)
}

// Structural validates the parts of a manifest the importer depends on:
// declared assets must be complete and unambiguous.
type Structural struct{}

func (Structural) Validate(_ context.Context, m *protocol.Manifest) (*Result, error) {
	res := &Result{
		SchemaErrors: []Error{},
		LogicErrors:  []Error{},
	}

	if m.SchemaVersion == "" {
		res.SchemaErrors = append(res.SchemaErrors, Error{
			Path:    "schemaVersion",
			Message: "schemaVersion is required",
		})
	}

	seenIDs := make(map[string]string, len(m.AssetManifest))
	for key, asset := range m.AssetManifest {
		path := fmt.Sprintf("assetManifest.%s", key)

		if asset.Source == "" {
			res.SchemaErrors = append(res.SchemaErrors, Error{
				Path:    path + ".source",
				Message: "asset has no source file",
			})
		}
		if asset.Type == "" {
			res.SchemaErrors = append(res.SchemaErrors, Error{
				Path:    path + ".type",
				Message: "asset has no type",
			})
		}
		if asset.Name == "" {
			res.SchemaErrors = append(res.SchemaErrors, Error{
				Path:    path + ".name",
				Message: "asset has no name",
			})
		}

		id := asset.ID
		if id == "" {
			id = key
		}
		if prev, dup := seenIDs[id]; dup {
			res.LogicErrors = append(res.LogicErrors, Error{
				Path:    path,
				Message: fmt.Sprintf("asset id %q duplicates %s", id, prev),
			})
		}
		seenIDs[id] = path

		if asset.ID != "" && asset.ID != key {
			res.LogicErrors = append(res.LogicErrors, Error{
				Path:    path + ".id",
				Message: fmt.Sprintf("asset id %q does not match its manifest key", asset.ID),
			})
		}
	}

	res.IsValid = len(res.SchemaErrors) == 0 && len(res.LogicErrors) == 0
	return res, nil
}
