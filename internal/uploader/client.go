// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package uploader transfers extracted asset blobs to the asset upload
// endpoint as one multipart batch, reporting byte-level progress.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/archive"
)

// FieldName is the multipart form field the upload endpoint reads files from.
const FieldName = "files"

// UploadedAsset is the storage metadata the endpoint returns per file.
type UploadedAsset struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Result is the terminal outcome of one upload batch.
type Result struct {
	Assets []UploadedAsset
	Err    error
}

// Client uploads asset batches over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the X-API-Key header sent with uploads.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 0},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends all files as a single multipart request. The first channel
// yields percentage progress (floor(sent/total*100), monotonically
// non-decreasing) and is closed when the transfer ends; the second yields
// exactly one Result. Cancel ctx to abort the request.
func (c *Client) Upload(ctx context.Context, files []archive.AssetBlob) (<-chan int, <-chan Result) {
	progressCh := make(chan int, 16)
	resultCh := make(chan Result, 1)

	go func() {
		defer close(progressCh)

		assets, err := c.upload(ctx, files, progressCh)
		resultCh <- Result{Assets: assets, Err: err}
	}()

	return progressCh, resultCh
}

func (c *Client) upload(ctx context.Context, files []archive.AssetBlob, progressCh chan<- int) ([]UploadedAsset, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to upload")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(FieldName, f.Name)
		if err != nil {
			return nil, errors.Wrap(err, "build multipart body")
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, errors.Wrap(err, "build multipart body")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "build multipart body")
	}

	total := int64(body.Len())
	reader := &progressReader{
		r:     bytes.NewReader(body.Bytes()),
		total: total,
		emit: func(percent int) {
			select {
			case progressCh <- percent:
			default:
				// slow consumer; a later emit will carry a larger value
			}
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = total
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "upload request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var assets []UploadedAsset
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, errors.Wrap(err, "decode upload response")
	}

	log.Debug().
		Int("files", len(files)).
		Int64("bytes", total).
		Dur("elapsed", time.Since(start)).
		Msg("Asset batch uploaded")

	return assets, nil
}

// progressReader reports cumulative read progress as integer percentages.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	last  int
	emit  func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.sent += int64(n)
		percent := int(p.sent * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent > p.last {
			p.last = percent
			p.emit(percent)
		}
	}
	return n, err
}
