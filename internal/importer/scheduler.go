// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/archive"
	"github.com/protovault/protovault/internal/models"
	"github.com/protovault/protovault/internal/uploader"
	"github.com/protovault/protovault/internal/validation"
)

// DedupChecker answers the two storage questions the pipeline asks: has this
// manifest fingerprint been imported before, and which of these asset ids are
// NOT yet in storage. NewAssetIDs returns the ids that need uploading, not
// the ones already present.
type DedupChecker interface {
	ProtocolExists(ctx context.Context, fingerprint string) (bool, error)
	NewAssetIDs(ctx context.Context, assetIDs []string) ([]string, error)
}

// RecordWriter persists one validated protocol plus its asset linkage as a
// single durable record.
type RecordWriter interface {
	WriteProtocol(ctx context.Context, rec *models.ProtocolImport) error
}

// Uploader transfers one batch of new assets, yielding progress percentages
// on the first channel and exactly one result on the second.
type Uploader interface {
	Upload(ctx context.Context, files []archive.AssetBlob) (<-chan int, <-chan uploader.Result)
}

// Config controls the scheduler.
type Config struct {
	// Concurrency is the admission limit: how many jobs run at once.
	Concurrency int

	// SupportedSchemaVersions is the process-wide set of accepted manifest
	// versions, read once at startup.
	SupportedSchemaVersions []string

	// QueueDepth bounds how many accepted jobs can wait for a slot.
	QueueDepth int
}

// Deps are the pipeline's injected collaborators, substitutable in tests.
type Deps struct {
	Opener    archive.Opener
	Validator validation.Validator
	Dedup     DedupChecker
	Uploader  Uploader
	Writer    RecordWriter
}

// Scheduler owns the bounded run queue and drives each submitted bundle
// through the import pipeline. Callers observe outcomes solely through the
// state store; Submit, Cancel and CancelAll never return errors.
type Scheduler struct {
	cfg   Config
	deps  Deps
	state *StateStore

	pendingMu sync.Mutex
	pending   map[string]ImportFile

	queue  chan string
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewScheduler(cfg Config, deps Deps) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1024
	}

	return &Scheduler{
		cfg:     cfg,
		deps:    deps,
		state:   NewStateStore(),
		pending: make(map[string]ImportFile),
		queue:   make(chan string, cfg.QueueDepth),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	log.Info().
		Int("concurrency", s.cfg.Concurrency).
		Strs("supportedSchemaVersions", s.cfg.SupportedSchemaVersions).
		Msg("Import scheduler started")
}

// Stop terminates the workers and waits for in-flight jobs to finish their
// current stage sequence.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		log.Info().Msg("Import scheduler stopped")
	})
}

// Submit accepts files for import. A file whose derived job id collides with
// a currently tracked job is skipped with a warning; duplicate names are
// never merged or queued twice.
func (s *Scheduler) Submit(files []ImportFile) {
	for _, file := range files {
		if _, exists := s.state.Get(file.Name); exists {
			log.Warn().Str("jobID", file.Name).Msg("Skipping duplicate import job")
			continue
		}

		job := Job{ID: file.Name, Status: StatusQueued, QueuedAt: now()}
		if !s.state.Add(job) {
			log.Warn().Str("jobID", file.Name).Msg("Skipping duplicate import job")
			continue
		}

		s.pendingMu.Lock()
		s.pending[file.Name] = file
		s.pendingMu.Unlock()

		select {
		case s.queue <- file.Name:
		default:
			log.Error().Str("jobID", file.Name).Msg("Import queue full; rejecting job")
			s.discardPending(file.Name)
			s.state.Remove(file.Name)
		}
	}
}

// Cancel removes a job. Queued jobs never start; running jobs continue their
// current stage but every later status update finds no entry and is
// discarded.
func (s *Scheduler) Cancel(jobID string) {
	s.discardPending(jobID)
	if s.state.Remove(jobID) {
		log.Debug().Str("jobID", jobID).Msg("Cancelled import job")
	}
}

// CancelAll drops all pending jobs and clears the state store. Running jobs
// are not force-terminated; their completion updates are discarded.
func (s *Scheduler) CancelAll() {
	s.pendingMu.Lock()
	s.pending = make(map[string]ImportFile)
	s.pendingMu.Unlock()

	s.state.Clear()
	log.Debug().Msg("Cancelled all import jobs")
}

// Jobs returns a snapshot of all tracked jobs in submission order.
func (s *Scheduler) Jobs() []Job {
	return s.state.Snapshot()
}

// Subscribe exposes the state store's event stream.
func (s *Scheduler) Subscribe(buffer int) (<-chan Event, func()) {
	return s.state.Subscribe(buffer)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case jobID := <-s.queue:
			file, ok := s.takePending(jobID)
			if !ok {
				// cancelled while queued
				continue
			}
			if _, tracked := s.state.Get(jobID); !tracked {
				continue
			}
			log.Debug().Int("workerID", id).Str("jobID", jobID).Msg("Import job admitted")
			s.runJob(s.ctx, file)
		}
	}
}

func (s *Scheduler) takePending(jobID string) (ImportFile, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	file, ok := s.pending[jobID]
	if ok {
		delete(s.pending, jobID)
	}
	return file, ok
}

func (s *Scheduler) discardPending(jobID string) {
	s.pendingMu.Lock()
	delete(s.pending, jobID)
	s.pendingMu.Unlock()
}
