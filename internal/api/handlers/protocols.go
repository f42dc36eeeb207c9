// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/models"
	"github.com/protovault/protovault/internal/storage"
)

type ProtocolsHandler struct {
	protocols *models.ProtocolStore
	assets    *storage.Store
}

func NewProtocolsHandler(protocols *models.ProtocolStore, assets *storage.Store) *ProtocolsHandler {
	return &ProtocolsHandler{
		protocols: protocols,
		assets:    assets,
	}
}

// List returns all imported protocols, newest first.
func (h *ProtocolsHandler) List(w http.ResponseWriter, r *http.Request) {
	protocols, err := h.protocols.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list protocols")
		RespondError(w, http.StatusInternalServerError, "Failed to list protocols")
		return
	}

	if protocols == nil {
		protocols = []models.Protocol{}
	}
	RespondJSON(w, http.StatusOK, protocols)
}

// Delete removes a protocol record and the stored blobs of any assets no
// other protocol still references.
func (h *ProtocolsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseInt64Param(w, r, "protocolID", "protocol ID")
	if !ok {
		return
	}

	orphanKeys, err := h.protocols.Delete(r.Context(), id)
	if err != nil {
		if RespondNotFoundIfNoRows(w, err, "Protocol not found") {
			return
		}
		log.Error().Err(err).Int64("protocolID", id).Msg("Failed to delete protocol")
		RespondError(w, http.StatusInternalServerError, "Failed to delete protocol")
		return
	}

	if len(orphanKeys) > 0 {
		h.assets.DeleteAssets(orphanKeys)
		log.Info().
			Int64("protocolID", id).
			Int("orphanedAssets", len(orphanKeys)).
			Msg("Deleted protocol and orphaned assets")
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Protocol deleted successfully",
	})
}
