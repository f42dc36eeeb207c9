// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package uploader

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/protovault/protovault/internal/archive"
	"github.com/protovault/protovault/internal/storage"
)

// Local writes asset batches straight into the instance's own blob store,
// skipping the HTTP round trip. Used when no external upload endpoint is
// configured. Progress semantics match Client: floor percentages, monotonic,
// channel closed when the batch ends.
type Local struct {
	store *storage.Store
}

func NewLocal(store *storage.Store) *Local {
	return &Local{store: store}
}

func (l *Local) Upload(ctx context.Context, files []archive.AssetBlob) (<-chan int, <-chan Result) {
	progressCh := make(chan int, 16)
	resultCh := make(chan Result, 1)

	go func() {
		defer close(progressCh)

		assets, err := l.save(ctx, files, progressCh)
		resultCh <- Result{Assets: assets, Err: err}
	}()

	return progressCh, resultCh
}

func (l *Local) save(ctx context.Context, files []archive.AssetBlob, progressCh chan<- int) ([]UploadedAsset, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to upload")
	}

	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}

	var sent int64
	last := 0
	saved := make([]string, 0, len(files))
	assets := make([]UploadedAsset, 0, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			l.store.DeleteAssets(saved)
			return nil, err
		}

		meta, err := l.store.SaveAsset(f.Name, bytes.NewReader(f.Data))
		if err != nil {
			l.store.DeleteAssets(saved)
			return nil, errors.Wrapf(err, "store asset %q", f.Name)
		}

		saved = append(saved, meta.Key)
		assets = append(assets, UploadedAsset{
			Key:  meta.Key,
			Name: meta.Name,
			URL:  meta.URL,
			Size: meta.Size,
		})

		sent += int64(len(f.Data))
		if total > 0 {
			percent := int(sent * 100 / total)
			if percent > last {
				last = percent
				select {
				case progressCh <- percent:
				default:
				}
			}
		}
	}

	return assets, nil
}
