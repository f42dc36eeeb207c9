// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protovault/protovault/internal/archive"
	"github.com/protovault/protovault/internal/models"
	"github.com/protovault/protovault/internal/protocol"
	"github.com/protovault/protovault/internal/uploader"
	"github.com/protovault/protovault/internal/validation"
)

const testManifest = `{
	"schemaVersion": "1.0.0",
	"name": "Friendship Study",
	"stages": []
}`

func manifestWithAssets(ids ...string) string {
	entries := ""
	for i, id := range ids {
		if i > 0 {
			entries += ","
		}
		entries += fmt.Sprintf(
			`%q: {"id": %q, "name": "%s.png", "type": "image", "source": "%s.png"}`,
			id, id, id, id)
	}
	return fmt.Sprintf(`{
		"schemaVersion": "1.0.0",
		"name": "Friendship Study",
		"assetManifest": {%s},
		"stages": []
	}`, entries)
}

func buildBundle(t *testing.T, manifest string, assets map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("protocol.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)

	for name, data := range assets {
		w, err := zw.Create("assets/" + name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fakeDedup struct {
	mu              sync.Mutex
	fingerprints    map[string]bool
	storedAssets    map[string]bool
	existsCalls     int
	newAssetIDCalls int
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{
		fingerprints: make(map[string]bool),
		storedAssets: make(map[string]bool),
	}
}

func (d *fakeDedup) ProtocolExists(_ context.Context, fingerprint string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.existsCalls++
	return d.fingerprints[fingerprint], nil
}

func (d *fakeDedup) NewAssetIDs(_ context.Context, assetIDs []string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newAssetIDCalls++
	var out []string
	for _, id := range assetIDs {
		if !d.storedAssets[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeUploader struct {
	mu        sync.Mutex
	calls     int
	batches   [][]string
	progress  []int
	dropNames map[string]bool
	err       error
}

func (u *fakeUploader) Upload(_ context.Context, files []archive.AssetBlob) (<-chan int, <-chan uploader.Result) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	u.mu.Lock()
	u.calls++
	u.batches = append(u.batches, names)
	u.mu.Unlock()

	progressCh := make(chan int, len(u.progress)+1)
	resultCh := make(chan uploader.Result, 1)

	for _, p := range u.progress {
		progressCh <- p
	}
	close(progressCh)

	if u.err != nil {
		resultCh <- uploader.Result{Err: u.err}
		return progressCh, resultCh
	}

	var uploaded []uploader.UploadedAsset
	for _, f := range files {
		if u.dropNames[f.Name] {
			continue
		}
		uploaded = append(uploaded, uploader.UploadedAsset{
			Key:  "key-" + f.Name,
			Name: f.Name,
			URL:  "/api/assets/key-" + f.Name + "/" + f.Name,
			Size: int64(len(f.Data)),
		})
	}
	resultCh <- uploader.Result{Assets: uploaded}
	return progressCh, resultCh
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type fakeWriter struct {
	mu      sync.Mutex
	records []*models.ProtocolImport
	err     error
}

func (w *fakeWriter) WriteProtocol(_ context.Context, rec *models.ProtocolImport) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, rec)
	return nil
}

func (w *fakeWriter) written() []*models.ProtocolImport {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*models.ProtocolImport, len(w.records))
	copy(out, w.records)
	return out
}

// countingValidator delegates to a real validator while counting calls.
type countingValidator struct {
	mu    sync.Mutex
	calls int
	inner validation.Validator
}

func (v *countingValidator) Validate(ctx context.Context, m *protocol.Manifest) (*validation.Result, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.inner.Validate(ctx, m)
}

func (v *countingValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// blockingValidator parks every Validate call until release is closed,
// recording the peak number of concurrent callers.
type blockingValidator struct {
	mu      sync.Mutex
	current int
	peak    int
	started chan struct{}
	release chan struct{}
}

func newBlockingValidator() *blockingValidator {
	return &blockingValidator{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (v *blockingValidator) Validate(ctx context.Context, m *protocol.Manifest) (*validation.Result, error) {
	v.mu.Lock()
	v.current++
	if v.current > v.peak {
		v.peak = v.current
	}
	v.mu.Unlock()

	v.started <- struct{}{}
	<-v.release

	v.mu.Lock()
	v.current--
	v.mu.Unlock()
	return &validation.Result{IsValid: true}, nil
}

func (v *blockingValidator) peakConcurrency() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.peak
}

type panicValidator struct{}

func (panicValidator) Validate(context.Context, *protocol.Manifest) (*validation.Result, error) {
	panic("validator exploded")
}

type schedulerHarness struct {
	scheduler *Scheduler
	dedup     *fakeDedup
	uploader  *fakeUploader
	writer    *fakeWriter
}

func newHarness(t *testing.T, cfg Config, validator validation.Validator) *schedulerHarness {
	t.Helper()

	if validator == nil {
		validator = validation.Structural{}
	}
	if len(cfg.SupportedSchemaVersions) == 0 {
		cfg.SupportedSchemaVersions = []string{"1.0.0", "2.0.0"}
	}

	h := &schedulerHarness{
		dedup:    newFakeDedup(),
		uploader: &fakeUploader{progress: []int{25, 50, 100}},
		writer:   &fakeWriter{},
	}
	h.scheduler = NewScheduler(cfg, Deps{
		Opener:    archive.ZipOpener{},
		Validator: validator,
		Dedup:     h.dedup,
		Uploader:  h.uploader,
		Writer:    h.writer,
	})
	h.scheduler.Start(context.Background())
	t.Cleanup(h.scheduler.Stop)
	return h
}

func waitTerminal(t *testing.T, s *Scheduler, jobID string) Job {
	t.Helper()

	var job Job
	require.Eventually(t, func() bool {
		j, ok := s.state.Get(jobID)
		if !ok {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 3*time.Second, 5*time.Millisecond, "job %s never reached a terminal status", jobID)
	return job
}

func TestScheduler_ImportWithoutAssetsCompletes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	events, cancel := h.scheduler.Subscribe(256)
	defer cancel()

	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	assert.Equal(t, StatusComplete, job.Status)
	assert.Nil(t, job.Error)
	assert.Nil(t, job.Progress)

	// asset-free imports skip the upload stage entirely
	assert.Zero(t, h.uploader.callCount())
	deadline := time.After(time.Second)
	for {
		var ev Event
		select {
		case ev = <-events:
		case <-deadline:
			t.Fatal("never observed the complete event")
		}
		require.NotNil(t, ev.Job)
		assert.NotEqual(t, StatusUploadingAssets, ev.Job.Status)
		if ev.Job.Status == StatusComplete {
			return
		}
	}
}

func TestScheduler_RecordsWrittenWithManifestFields(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})
	waitTerminal(t, h.scheduler, "study.netcanvas")

	records := h.writer.written()
	require.Len(t, records, 1)
	assert.Equal(t, "study.netcanvas", records[0].Name)
	assert.Equal(t, "1.0.0", records[0].SchemaVersion)
	assert.NotEmpty(t, records[0].Hash)
	assert.JSONEq(t, testManifest, string(records[0].Manifest))
}

func TestScheduler_MalformedArchiveFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.scheduler.Submit([]ImportFile{{Name: "garbage.netcanvas", Data: []byte("not a zip")}})

	job := waitTerminal(t, h.scheduler, "garbage.netcanvas")
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrMalformedArchive, job.Error.Kind)
	assert.Empty(t, h.writer.written())
}

func TestScheduler_UnsupportedSchemaVersionFailsBeforeValidation(t *testing.T) {
	t.Parallel()

	validator := &countingValidator{inner: validation.Structural{}}
	h := newHarness(t, Config{SupportedSchemaVersions: []string{"1.0.0", "2.0.0"}}, validator)

	manifest := `{"schemaVersion": "3.0.0", "name": "Too New", "stages": []}`
	h.scheduler.Submit([]ImportFile{{Name: "toonew.netcanvas", Data: buildBundle(t, manifest, nil)}})

	job := waitTerminal(t, h.scheduler, "toonew.netcanvas")
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrUnsupportedSchema, job.Error.Kind)
	assert.Contains(t, job.Error.Description, "3.0.0")
	assert.Contains(t, job.Error.Description, "1.0.0 and 2.0.0")

	assert.Zero(t, validator.callCount(), "validator must not run for an unsupported version")
	assert.Empty(t, h.writer.written())
}

func TestScheduler_InvalidProtocolFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)

	// asset with no source, type or name fails structural validation
	manifest := `{
		"schemaVersion": "1.0.0",
		"assetManifest": {"a1": {"id": "a1"}},
		"stages": []
	}`
	h.scheduler.Submit([]ImportFile{{Name: "invalid.netcanvas", Data: buildBundle(t, manifest, nil)}})

	job := waitTerminal(t, h.scheduler, "invalid.netcanvas")
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrValidationFailed, job.Error.Kind)
	assert.Contains(t, job.Error.Description, "assetManifest.a1")
	assert.Empty(t, h.writer.written())
	assert.Zero(t, h.dedup.existsCalls, "invalid protocols never reach the duplicate check")
}

func TestScheduler_DuplicateProtocolFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	bundle := buildBundle(t, testManifest, nil)

	h.scheduler.Submit([]ImportFile{{Name: "first.netcanvas", Data: bundle}})
	first := waitTerminal(t, h.scheduler, "first.netcanvas")
	require.Equal(t, StatusComplete, first.Status)

	// mark the fingerprint as persisted, as the real store would
	records := h.writer.written()
	require.Len(t, records, 1)
	h.dedup.mu.Lock()
	h.dedup.fingerprints[records[0].Hash] = true
	h.dedup.mu.Unlock()

	h.scheduler.Submit([]ImportFile{{Name: "second.netcanvas", Data: bundle}})
	second := waitTerminal(t, h.scheduler, "second.netcanvas")

	assert.Equal(t, StatusFailed, second.Status)
	require.NotNil(t, second.Error)
	assert.Equal(t, ErrDuplicateProtocol, second.Error.Kind)
	assert.Contains(t, second.Error.Description, "Delete the existing protocol")
	assert.Len(t, h.writer.written(), 1, "the duplicate must not be written")
}

func TestScheduler_PartitionsAssetsByStorageState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.dedup.storedAssets["a2"] = true

	assets := map[string][]byte{
		"a1.png": []byte("one"),
		"a2.png": []byte("two"),
		"a3.png": []byte("three"),
	}
	bundle := buildBundle(t, manifestWithAssets("a1", "a2", "a3"), assets)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	require.Equal(t, StatusComplete, job.Status)

	require.Equal(t, 1, h.uploader.callCount())
	assert.ElementsMatch(t, []string{"a1.png", "a3.png"}, h.uploader.batches[0],
		"only assets absent from storage are uploaded")

	records := h.writer.written()
	require.Len(t, records, 1)
	assert.Equal(t, []string{"a2"}, records[0].ExistingAssetIDs)

	uploadedIDs := make([]string, 0, len(records[0].NewAssets))
	for _, a := range records[0].NewAssets {
		uploadedIDs = append(uploadedIDs, a.AssetID)
		assert.NotEmpty(t, a.Key)
		assert.NotEmpty(t, a.URL)
	}
	assert.ElementsMatch(t, []string{"a1", "a3"}, uploadedIDs)
}

func TestScheduler_AllAssetsExistingSkipsUpload(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.dedup.storedAssets["a1"] = true
	h.dedup.storedAssets["a2"] = true

	assets := map[string][]byte{
		"a1.png": []byte("one"),
		"a2.png": []byte("two"),
	}
	bundle := buildBundle(t, manifestWithAssets("a1", "a2"), assets)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	require.Equal(t, StatusComplete, job.Status)
	assert.Zero(t, h.uploader.callCount())

	records := h.writer.written()
	require.Len(t, records, 1)
	assert.ElementsMatch(t, []string{"a1", "a2"}, records[0].ExistingAssetIDs)
	assert.Empty(t, records[0].NewAssets)
}

func TestScheduler_IncompleteUploadResponseFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.uploader.dropNames = map[string]bool{"a2.png": true}

	assets := map[string][]byte{
		"a1.png": []byte("one"),
		"a2.png": []byte("two"),
		"a3.png": []byte("three"),
	}
	bundle := buildBundle(t, manifestWithAssets("a1", "a2", "a3"), assets)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrAssetUploadFailed, job.Error.Kind)
	assert.Empty(t, h.writer.written(), "partial uploads must never produce a record")
}

func TestScheduler_UploadErrorFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.uploader.err = fmt.Errorf("upload endpoint returned status 500")

	bundle := buildBundle(t, manifestWithAssets("a1"), map[string][]byte{"a1.png": []byte("one")})
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrAssetUploadFailed, job.Error.Kind)
	assert.Contains(t, job.Error.Raw, "status 500")
	assert.Empty(t, h.writer.written())
}

func TestScheduler_PersistenceErrorSurfacesBackendDetail(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.writer.err = fmt.Errorf("UNIQUE constraint failed: protocols.hash")

	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrPersistenceFailed, job.Error.Kind)
	assert.Contains(t, job.Error.Description, "UNIQUE constraint failed")
}

func TestScheduler_DuplicateSubmissionIsSkipped(t *testing.T) {
	t.Parallel()

	validator := newBlockingValidator()
	h := newHarness(t, Config{}, validator)

	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{
		{Name: "study.netcanvas", Data: bundle},
		{Name: "study.netcanvas", Data: bundle},
	})

	<-validator.started
	assert.Len(t, h.scheduler.Jobs(), 1, "a colliding job id must not be queued twice")
	close(validator.release)

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	assert.Equal(t, StatusComplete, job.Status)
	assert.Len(t, h.writer.written(), 1)
}

func TestScheduler_ConcurrencyIsBounded(t *testing.T) {
	t.Parallel()

	validator := newBlockingValidator()
	h := newHarness(t, Config{Concurrency: 2}, validator)

	bundle := buildBundle(t, testManifest, nil)
	files := make([]ImportFile, 0, 5)
	for i := 0; i < 5; i++ {
		files = append(files, ImportFile{Name: fmt.Sprintf("study-%d.netcanvas", i), Data: bundle})
	}
	h.scheduler.Submit(files)

	// two jobs reach the validator and park there
	<-validator.started
	<-validator.started

	select {
	case <-validator.started:
		t.Fatal("a third job ran while two slots were occupied")
	case <-time.After(100 * time.Millisecond):
	}

	close(validator.release)
	for _, f := range files {
		waitTerminal(t, h.scheduler, f.Name)
	}

	assert.Equal(t, 2, validator.peakConcurrency())
	// duplicate fingerprints are expected here; only completion matters
	for _, job := range h.scheduler.Jobs() {
		assert.True(t, job.Status.Terminal())
	}
}

func TestScheduler_CancelDiscardsQueuedJob(t *testing.T) {
	t.Parallel()

	validator := newBlockingValidator()
	h := newHarness(t, Config{Concurrency: 1}, validator)

	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{
		{Name: "running.netcanvas", Data: bundle},
		{Name: "queued.netcanvas", Data: bundle},
	})

	<-validator.started
	h.scheduler.Cancel("queued.netcanvas")
	close(validator.release)

	job := waitTerminal(t, h.scheduler, "running.netcanvas")
	assert.Equal(t, StatusComplete, job.Status)

	_, ok := h.scheduler.state.Get("queued.netcanvas")
	assert.False(t, ok, "cancelled job must stay gone")
	assert.Len(t, h.writer.written(), 1, "only the surviving job writes a record")
}

func TestScheduler_CancelRunningJobDiscardsLateUpdates(t *testing.T) {
	t.Parallel()

	validator := newBlockingValidator()
	h := newHarness(t, Config{Concurrency: 2}, validator)

	bundle := buildBundle(t, testManifest, nil)
	other := buildBundle(t, `{"schemaVersion": "2.0.0", "name": "Other", "stages": []}`, nil)
	h.scheduler.Submit([]ImportFile{
		{Name: "doomed.netcanvas", Data: bundle},
		{Name: "survivor.netcanvas", Data: other},
	})

	<-validator.started
	<-validator.started
	h.scheduler.Cancel("doomed.netcanvas")
	close(validator.release)

	job := waitTerminal(t, h.scheduler, "survivor.netcanvas")
	assert.Equal(t, StatusComplete, job.Status)

	// the cancelled job finishes its stage but never reappears
	require.Eventually(t, func() bool {
		return len(h.writer.written()) == 1
	}, 3*time.Second, 5*time.Millisecond)
	_, ok := h.scheduler.state.Get("doomed.netcanvas")
	assert.False(t, ok)

	records := h.writer.written()
	require.Len(t, records, 1)
	assert.Equal(t, "survivor.netcanvas", records[0].Name)
}

func TestScheduler_CancelAllClearsEverything(t *testing.T) {
	t.Parallel()

	validator := newBlockingValidator()
	h := newHarness(t, Config{Concurrency: 1}, validator)

	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{
		{Name: "a.netcanvas", Data: bundle},
		{Name: "b.netcanvas", Data: bundle},
		{Name: "c.netcanvas", Data: bundle},
	})

	<-validator.started
	h.scheduler.CancelAll()
	close(validator.release)

	assert.Empty(t, h.scheduler.Jobs())
	require.Eventually(t, func() bool {
		h.scheduler.pendingMu.Lock()
		defer h.scheduler.pendingMu.Unlock()
		return len(h.scheduler.pending) == 0
	}, 3*time.Second, 5*time.Millisecond)
	assert.Empty(t, h.writer.written())
}

func TestScheduler_ProgressIsReportedDuringUpload(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	h.uploader.progress = []int{10, 40, 70, 100}

	events, cancel := h.scheduler.Subscribe(256)
	defer cancel()

	bundle := buildBundle(t, manifestWithAssets("a1"), map[string][]byte{"a1.png": []byte("one")})
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	require.Equal(t, StatusComplete, job.Status)
	assert.Nil(t, job.Progress, "progress is cleared on completion")

	var seen []int
	deadline := time.After(time.Second)
drain:
	for {
		select {
		case ev := <-events:
			if ev.Job == nil {
				continue
			}
			if ev.Job.Status == StatusUploadingAssets && ev.Job.Progress != nil {
				seen = append(seen, *ev.Job.Progress)
			}
			if ev.Job.Status.Terminal() {
				break drain
			}
		case <-deadline:
			t.Fatal("never observed the terminal event")
		}
	}

	require.NotEmpty(t, seen)
	assert.Equal(t, 0, seen[0], "upload stage starts at zero percent")
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress must be monotonic")
	}
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestScheduler_StatusesAdvanceInOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, nil)
	events, cancel := h.scheduler.Subscribe(256)
	defer cancel()

	bundle := buildBundle(t, manifestWithAssets("a1"), map[string][]byte{"a1.png": []byte("one")})
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})
	waitTerminal(t, h.scheduler, "study.netcanvas")

	var statuses []Status
	deadline := time.After(time.Second)
	for {
		var ev Event
		select {
		case ev = <-events:
		case <-deadline:
			t.Fatal("never observed the terminal event")
		}
		require.NotNil(t, ev.Job)
		if len(statuses) == 0 || statuses[len(statuses)-1] != ev.Job.Status {
			statuses = append(statuses, ev.Job.Status)
		}
		if ev.Job.Status.Terminal() {
			break
		}
	}

	assert.Equal(t, []Status{
		StatusQueued,
		StatusExtracting,
		StatusValidating,
		StatusCheckingDuplicates,
		StatusUploadingAssets,
		StatusWritingRecord,
		StatusComplete,
	}, statuses)
}

func TestScheduler_PanicBecomesUnknownFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, panicValidator{})

	bundle := buildBundle(t, testManifest, nil)
	h.scheduler.Submit([]ImportFile{{Name: "study.netcanvas", Data: bundle}})

	job := waitTerminal(t, h.scheduler, "study.netcanvas")
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrUnknownImportFailure, job.Error.Kind)
	assert.Contains(t, job.Error.Raw, "panic during import")
}
