// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/importer"
)

// maxBundleMemory caps how much of a multipart upload is buffered in memory
// before spilling to disk.
const maxBundleMemory = 32 << 20

type ImportsHandler struct {
	scheduler *importer.Scheduler
}

func NewImportsHandler(scheduler *importer.Scheduler) *ImportsHandler {
	return &ImportsHandler{scheduler: scheduler}
}

// Submit accepts one or more protocol bundles as multipart form files and
// queues them for import. The response lists the accepted job ids; outcomes
// are observed via the jobs listing or the event stream.
func (h *ImportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBundleMemory); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		RespondError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	files := make([]importer.ImportFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Could not read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Could not read uploaded file")
			return
		}

		name := sanitizeBundleName(fh.Filename)
		if name == "" {
			RespondError(w, http.StatusBadRequest, "Uploaded file has no name")
			return
		}

		files = append(files, importer.ImportFile{Name: name, Data: data})
	}

	h.scheduler.Submit(files)
	log.Info().Int("count", len(files)).Msg("Accepted protocol bundles for import")

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.Name)
	}
	RespondJSON(w, http.StatusAccepted, map[string]any{
		"jobs": ids,
	})
}

// ListJobs returns all tracked import jobs in submission order.
func (h *ImportsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.scheduler.Jobs())
}

// CancelJob removes one import job. Cancelling an unknown job is a no-op.
func (h *ImportsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseStringParam(w, r, "jobID", "Job ID")
	if !ok {
		return
	}

	if decoded, err := url.PathUnescape(jobID); err == nil {
		jobID = decoded
	}

	h.scheduler.Cancel(jobID)
	RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Import job cancelled",
	})
}

// CancelAll removes every tracked import job.
func (h *ImportsHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	h.scheduler.CancelAll()
	RespondJSON(w, http.StatusOK, map[string]string{
		"message": "All import jobs cancelled",
	})
}

// sanitizeBundleName strips any client-supplied path components; the bare file
// name doubles as the job id.
func sanitizeBundleName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
