// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType tags a state-store notification.
type EventType string

const (
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
	EventCleared EventType = "cleared"
)

// Event is one observable state transition. Job is a snapshot copy for
// EventUpdated and EventRemoved, nil for EventCleared.
type Event struct {
	Type EventType `json:"type"`
	Job  *Job      `json:"job,omitempty"`
}

// StateStore is the in-memory table of jobs keyed by id, the single source
// of truth observers render from. A job's own stages mutate it sequentially;
// cross-job mutations target disjoint keys, so a plain mutex suffices.
type StateStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func NewStateStore() *StateStore {
	return &StateStore{
		jobs: make(map[string]*Job),
		subs: make(map[int]chan Event),
	}
}

// Add registers a new job. It returns false without mutating anything when a
// job with the same id is already tracked.
func (s *StateStore) Add(job Job) bool {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return false
	}
	j := job
	s.jobs[job.ID] = &j
	s.order = append(s.order, job.ID)
	snapshot := j
	s.mu.Unlock()

	s.notify(Event{Type: EventUpdated, Job: &snapshot})
	return true
}

// Update applies fn to the tracked job and notifies observers. Updates for
// ids that are no longer tracked are discarded; a removed job is never
// resurrected by a late stage completion.
//
// A terminal job is never advanced further, and a status can only move
// forward (or jump to failed); stale transitions are dropped.
func (s *StateStore) Update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("jobID", id).Msg("Discarding update for untracked import job")
		return false
	}
	if job.Status.Terminal() {
		s.mu.Unlock()
		return false
	}

	prev := job.Status
	fn(job)
	if job.Status != StatusFailed && job.Status.ordinal() < prev.ordinal() {
		// forward-only: refuse regressions
		job.Status = prev
	}

	snapshot := *job
	s.mu.Unlock()

	s.notify(Event{Type: EventUpdated, Job: &snapshot})
	return true
}

// Remove drops a job from the table regardless of its run status.
func (s *StateStore) Remove(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.jobs, id)
	for i, jid := range s.order {
		if jid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	snapshot := *job
	s.mu.Unlock()

	s.notify(Event{Type: EventRemoved, Job: &snapshot})
	return true
}

// Clear drops every tracked job.
func (s *StateStore) Clear() {
	s.mu.Lock()
	s.jobs = make(map[string]*Job)
	s.order = nil
	s.mu.Unlock()

	s.notify(Event{Type: EventCleared})
}

// Get returns a snapshot of one job.
func (s *StateStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Snapshot returns copies of all tracked jobs in submission order.
func (s *StateStore) Snapshot() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		if job, ok := s.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// Subscribe registers an observer. Events are delivered best-effort: a
// subscriber that falls behind misses intermediate transitions rather than
// blocking the pipeline. The returned func cancels the subscription.
func (s *StateStore) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *StateStore) notify(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
