// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package importer runs submitted protocol bundles through the import
// pipeline: extract, validate, deduplicate, upload assets, write the record.
// A bounded worker pool admits jobs; per-job status lives in the StateStore.
package importer

import "time"

// now is swappable in tests.
var now = time.Now

// Status is the lifecycle of an import job.
type Status string

// Status values only ever advance in the order below, or jump straight to
// StatusFailed; they never regress.
const (
	StatusQueued             Status = "queued"
	StatusExtracting         Status = "extracting"
	StatusValidating         Status = "validating"
	StatusCheckingDuplicates Status = "checking-duplicates"
	StatusUploadingAssets    Status = "uploading-assets"
	StatusWritingRecord      Status = "writing-record"
	StatusComplete           Status = "complete"
	StatusFailed             Status = "failed"
)

var statusOrder = map[Status]int{
	StatusQueued:             0,
	StatusExtracting:         1,
	StatusValidating:         2,
	StatusCheckingDuplicates: 3,
	StatusUploadingAssets:    4,
	StatusWritingRecord:      5,
	StatusComplete:           6,
	StatusFailed:             7,
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// ordinal supports the forward-only transition check; StatusFailed is
// reachable from every non-terminal status.
func (s Status) ordinal() int {
	return statusOrder[s]
}

// JobError is the user-facing failure attached to a failed job.
type JobError struct {
	Kind        ErrorKind `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Raw         string    `json:"raw,omitempty"`
}

// Job is one submitted file's import attempt. The scheduler is the only
// mutator; observers receive copies.
type Job struct {
	ID       string    `json:"id"`
	Status   Status    `json:"status"`
	Progress *int      `json:"progress,omitempty"`
	Error    *JobError `json:"error,omitempty"`
	QueuedAt time.Time `json:"queuedAt"`
}

// ImportFile is a submitted bundle: the uploaded archive bytes plus the file
// name its job id derives from.
type ImportFile struct {
	Name string
	Data []byte
}
