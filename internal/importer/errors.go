// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"encoding/json"
	"fmt"

	"github.com/protovault/protovault/internal/protocol"
	"github.com/protovault/protovault/internal/validation"
)

// ErrorKind classifies why an import job failed. Every kind is terminal.
type ErrorKind string

const (
	ErrMalformedArchive     ErrorKind = "malformed-archive"
	ErrUnsupportedSchema    ErrorKind = "unsupported-schema-version"
	ErrValidationFailed     ErrorKind = "validation-failed"
	ErrDuplicateProtocol    ErrorKind = "duplicate-protocol"
	ErrAssetUploadFailed    ErrorKind = "asset-upload-failed"
	ErrPersistenceFailed    ErrorKind = "persistence-failed"
	ErrUnknownImportFailure ErrorKind = "unknown"
)

// ImportError carries a classified failure through the pipeline. The wrapped
// error is preserved as the raw diagnostic shown alongside the user-facing
// summary.
type ImportError struct {
	Kind        ErrorKind
	Title       string
	Description string
	Err         error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// jobError converts an ImportError into its user-facing form.
func (e *ImportError) jobError() *JobError {
	raw := ""
	if e.Err != nil {
		raw = e.Err.Error()
	}
	return &JobError{
		Kind:        e.Kind,
		Title:       e.Title,
		Description: e.Description,
		Raw:         raw,
	}
}

func malformedArchiveError(err error) *ImportError {
	return &ImportError{
		Kind:        ErrMalformedArchive,
		Title:       "Error importing protocol",
		Description: "The uploaded file could not be read as a protocol bundle.",
		Err:         err,
	}
}

func unsupportedSchemaError(version string, supported []string) *ImportError {
	return &ImportError{
		Kind:  ErrUnsupportedSchema,
		Title: "Protocol version not supported",
		Description: fmt.Sprintf(
			"The protocol you uploaded is not compatible with this instance. Protocols using schema version %s are supported; this one declares %s.",
			protocol.FormatVersionList(supported), version),
		Err: fmt.Errorf("schema version %s not in supported set", version),
	}
}

func validationFailedError(result *validation.Result) *ImportError {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(fmt.Sprintf("marshal validation result: %v", err))
	}
	return &ImportError{
		Kind:        ErrValidationFailed,
		Title:       "The protocol is invalid!",
		Description: describeValidationErrors(result),
		Err:         fmt.Errorf("protocol validation failed: %s", raw),
	}
}

func describeValidationErrors(result *validation.Result) string {
	errs := result.Errors()
	if len(errs) == 0 {
		return "The protocol you uploaded is invalid."
	}
	out := "The protocol you uploaded is invalid:"
	for _, e := range errs {
		out += fmt.Sprintf("\n- %s (%s)", e.Message, e.Path)
	}
	return out
}

func duplicateProtocolError(fingerprint string) *ImportError {
	return &ImportError{
		Kind:        ErrDuplicateProtocol,
		Title:       "Protocol already exists",
		Description: "The protocol you attempted to import already exists. Delete the existing protocol first before attempting to import it again.",
		Err:         fmt.Errorf("protocol with fingerprint %s already stored", fingerprint),
	}
}

func assetUploadError(err error) *ImportError {
	return &ImportError{
		Kind:        ErrAssetUploadFailed,
		Title:       "Asset upload failed",
		Description: "One or more assets in the protocol could not be uploaded.",
		Err:         err,
	}
}

func persistenceError(err error) *ImportError {
	detail := "The protocol could not be written to the database."
	if err != nil {
		detail = err.Error()
	}
	return &ImportError{
		Kind:        ErrPersistenceFailed,
		Title:       "Database error during protocol import",
		Description: detail,
		Err:         err,
	}
}

// classify wraps any error that is not already an *ImportError as an unknown
// import failure so the job always reaches a terminal status.
func classify(err error) *ImportError {
	if ie, ok := err.(*ImportError); ok {
		return ie
	}
	return &ImportError{
		Kind:        ErrUnknownImportFailure,
		Title:       "Error importing protocol",
		Description: "There was an unknown error while importing your protocol. The information below might help to debug the issue.",
		Err:         err,
	}
}
