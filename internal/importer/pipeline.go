// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/archive"
	"github.com/protovault/protovault/internal/models"
)

// runJob executes the stage sequence for one admitted job. Every failure is
// caught here and converted into a failed status with a classified kind; the
// job never remains stuck in an intermediate status. A cancelled job's
// status updates find no state entry and are discarded, which also stops the
// sequence early between stages.
func (s *Scheduler) runJob(ctx context.Context, file ImportFile) {
	jobID := file.Name

	defer func() {
		if r := recover(); r != nil {
			s.fail(jobID, classify(fmt.Errorf("panic during import: %v", r)))
		}
	}()

	if err := s.importProtocol(ctx, jobID, file); err != nil {
		s.fail(jobID, classify(err))
		return
	}

	s.state.Update(jobID, func(j *Job) {
		j.Status = StatusComplete
		j.Progress = nil
	})
	log.Info().Str("jobID", jobID).Msg("Protocol import complete")
}

func (s *Scheduler) importProtocol(ctx context.Context, jobID string, file ImportFile) error {
	// Extract: open the bundle and parse its manifest.
	if !s.setStatus(jobID, StatusExtracting) {
		return nil
	}

	ar, err := s.deps.Opener.Open(file.Data)
	if err != nil {
		return malformedArchiveError(err)
	}
	manifest, err := ar.Manifest()
	if err != nil {
		return malformedArchiveError(err)
	}

	// Schema compatibility, then full validation. A version mismatch fails
	// before the validator is ever consulted.
	if !s.setStatus(jobID, StatusValidating) {
		return nil
	}

	if !s.supportsVersion(manifest.SchemaVersion) {
		return unsupportedSchemaError(manifest.SchemaVersion, s.cfg.SupportedSchemaVersions)
	}

	result, err := s.deps.Validator.Validate(ctx, manifest)
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	if !result.IsValid {
		return validationFailedError(result)
	}

	// Duplicate submission check against persisted records.
	if !s.setStatus(jobID, StatusCheckingDuplicates) {
		return nil
	}

	fingerprint, err := manifest.Fingerprint()
	if err != nil {
		return err
	}
	exists, err := s.deps.Dedup.ProtocolExists(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("check for existing protocol: %w", err)
	}
	if exists {
		return duplicateProtocolError(fingerprint)
	}

	// Asset resolution: extract declared assets and partition them into
	// existing (link only) and new (upload).
	blobs, err := ar.Assets(manifest)
	if err != nil {
		return malformedArchiveError(err)
	}

	newBlobs, existingIDs, err := s.partitionAssets(ctx, blobs)
	if err != nil {
		return err
	}

	var newAssets []models.NewProtocolAsset
	if len(newBlobs) > 0 {
		newAssets, err = s.uploadAssets(ctx, jobID, newBlobs)
		if err != nil {
			return err
		}
		if newAssets == nil {
			// job was cancelled mid-upload
			return nil
		}
	}

	// Commit everything as one record.
	if !s.setStatus(jobID, StatusWritingRecord) {
		return nil
	}

	rec := &models.ProtocolImport{
		Name:             file.Name,
		Hash:             fingerprint,
		SchemaVersion:    manifest.SchemaVersion,
		Manifest:         manifest.Raw(),
		NewAssets:        newAssets,
		ExistingAssetIDs: existingIDs,
	}
	if err := s.deps.Writer.WriteProtocol(ctx, rec); err != nil {
		return persistenceError(err)
	}

	return nil
}

// partitionAssets splits the extracted blobs into the set that must be
// uploaded and the ids already in storage. The two sets always partition the
// manifest's declared assets: no overlap, no omission.
func (s *Scheduler) partitionAssets(ctx context.Context, blobs []archive.AssetBlob) ([]archive.AssetBlob, []string, error) {
	if len(blobs) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(blobs))
	for _, b := range blobs {
		ids = append(ids, b.AssetID)
	}

	newIDs, err := s.deps.Dedup.NewAssetIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("check for existing assets: %w", err)
	}

	needsUpload := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		needsUpload[id] = struct{}{}
	}

	var newBlobs []archive.AssetBlob
	var existingIDs []string
	for _, b := range blobs {
		if _, ok := needsUpload[b.AssetID]; ok {
			newBlobs = append(newBlobs, b)
		} else {
			existingIDs = append(existingIDs, b.AssetID)
		}
	}
	return newBlobs, existingIDs, nil
}

// uploadAssets transfers the new blobs as one batch, mirroring byte progress
// into the job's progress field, then merges the returned storage metadata
// onto the descriptors by declared name. A nil, nil return means the job
// disappeared from the state store while uploading.
func (s *Scheduler) uploadAssets(ctx context.Context, jobID string, newBlobs []archive.AssetBlob) ([]models.NewProtocolAsset, error) {
	zero := 0
	if !s.state.Update(jobID, func(j *Job) {
		j.Status = StatusUploadingAssets
		j.Progress = &zero
	}) {
		return nil, nil
	}

	progressCh, resultCh := s.deps.Uploader.Upload(ctx, newBlobs)

	for progressCh != nil {
		select {
		case <-ctx.Done():
			progressCh = nil
		case p, ok := <-progressCh:
			if !ok {
				progressCh = nil
				break
			}
			percent := p
			s.state.Update(jobID, func(j *Job) {
				j.Progress = &percent
			})
		}
	}

	res := <-resultCh
	if res.Err != nil {
		return nil, assetUploadError(res.Err)
	}

	byName := make(map[string]int, len(res.Assets))
	for i, a := range res.Assets {
		byName[a.Name] = i
	}

	merged := make([]models.NewProtocolAsset, 0, len(newBlobs))
	for _, b := range newBlobs {
		idx, ok := byName[b.Name]
		if !ok {
			return nil, assetUploadError(fmt.Errorf("upload response has no entry for asset %q", b.Name))
		}
		up := res.Assets[idx]
		merged = append(merged, models.NewProtocolAsset{
			AssetID: b.AssetID,
			Key:     up.Key,
			Name:    b.Name,
			Type:    b.Type,
			URL:     up.URL,
			Size:    up.Size,
		})
	}

	if _, tracked := s.state.Get(jobID); !tracked {
		return nil, nil
	}
	return merged, nil
}

func (s *Scheduler) supportsVersion(version string) bool {
	for _, v := range s.cfg.SupportedSchemaVersions {
		if v == version {
			return true
		}
	}
	return false
}

// setStatus advances the job; false means the job is gone (cancelled) and
// the stage sequence should stop quietly.
func (s *Scheduler) setStatus(jobID string, status Status) bool {
	return s.state.Update(jobID, func(j *Job) {
		j.Status = status
	})
}

func (s *Scheduler) fail(jobID string, ie *ImportError) {
	updated := s.state.Update(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Progress = nil
		j.Error = ie.jobError()
	})
	if updated {
		log.Error().Err(ie).Str("jobID", jobID).Str("kind", string(ie.Kind)).Msg("Protocol import failed")
	}
}
