// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/storage"
)

// maxAssetMemory caps how much of a multipart upload is buffered in memory
// before spilling to disk.
const maxAssetMemory = 64 << 20

type AssetsHandler struct {
	store          *storage.Store
	sessionManager *scs.SessionManager
}

func NewAssetsHandler(store *storage.Store, sessionManager *scs.SessionManager) *AssetsHandler {
	return &AssetsHandler{
		store:          store,
		sessionManager: sessionManager,
	}
}

// Upload persists a batch of asset files and returns their storage metadata.
// The import pipeline posts extracted bundle assets here; the response order
// is not guaranteed, so callers match entries by name.
func (h *AssetsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.sessionManager.GetBool(r.Context(), "authenticated") {
		RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxAssetMemory); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		RespondError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	saved := make([]*storage.AssetMeta, 0, len(headers))
	savedKeys := make([]string, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.store.DeleteAssets(savedKeys)
			RespondError(w, http.StatusBadRequest, "Could not read uploaded file")
			return
		}

		meta, err := h.store.SaveAsset(fh.Filename, f)
		f.Close()
		if err != nil {
			log.Error().Err(err).Str("name", fh.Filename).Msg("Failed to store asset")
			h.store.DeleteAssets(savedKeys)
			RespondError(w, http.StatusInternalServerError, "Failed to store asset")
			return
		}

		saved = append(saved, meta)
		savedKeys = append(savedKeys, meta.Key)
	}

	log.Debug().Int("count", len(saved)).Msg("Stored uploaded assets")
	RespondJSON(w, http.StatusOK, saved)
}

// Serve streams a stored asset. Assets are immutable once written, so the
// response carries a long-lived cache header.
func (h *AssetsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key, ok := ParseStringParam(w, r, "key", "Asset key")
	if !ok {
		return
	}
	filename, ok := ParseStringParam(w, r, "filename", "Asset filename")
	if !ok {
		return
	}
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}

	f, err := h.store.Open(key, filename)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			RespondError(w, http.StatusBadRequest, "Invalid asset path")
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			RespondError(w, http.StatusNotFound, "Asset not found")
			return
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to open asset")
		RespondError(w, http.StatusInternalServerError, "Failed to open asset")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", storage.ContentTypeFor(filename))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, f); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Asset stream interrupted")
	}
}
