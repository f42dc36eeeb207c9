// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sse streams import job transitions to connected clients over
// server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmaxmax/go-sse"

	"github.com/protovault/protovault/internal/importer"
)

const (
	streamEventUpdate    = "update"
	streamEventRemoved   = "removed"
	streamEventCleared   = "cleared"
	streamEventHeartbeat = "heartbeat"

	heartbeatInterval = 15 * time.Second
	eventBuffer       = 256
)

// StreamPayload is the message envelope sent to the frontend.
type StreamPayload struct {
	Type      string         `json:"type"`
	Job       *importer.Job  `json:"job,omitempty"`
	Jobs      []importer.Job `json:"jobs,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StreamManager owns the SSE server and forwards import state transitions to
// every connected subscriber.
type StreamManager struct {
	server    *sse.Server
	scheduler *importer.Scheduler
	closing   atomic.Bool
}

// NewStreamManager constructs a manager with a configured SSE server.
func NewStreamManager(scheduler *importer.Scheduler) *StreamManager {
	replayer, err := sse.NewFiniteReplayer(16, true)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create SSE replayer; reconnecting clients may miss events")
		replayer = nil
	}

	return &StreamManager{
		server: &sse.Server{
			Provider: &sse.Joe{Replayer: replayer},
		},
		scheduler: scheduler,
	}
}

// Run forwards scheduler events and heartbeats until ctx is cancelled. It
// blocks and is meant to run in its own goroutine.
func (m *StreamManager) Run(ctx context.Context) {
	events, cancel := m.scheduler.Subscribe(eventBuffer)
	defer cancel()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.publishEvent(ev)
		case <-ticker.C:
			m.publish(&StreamPayload{
				Type:      streamEventHeartbeat,
				Timestamp: time.Now(),
			})
		}
	}
}

func (m *StreamManager) publishEvent(ev importer.Event) {
	payload := &StreamPayload{Timestamp: time.Now()}

	switch ev.Type {
	case importer.EventUpdated:
		payload.Type = streamEventUpdate
		payload.Job = ev.Job
	case importer.EventRemoved:
		payload.Type = streamEventRemoved
		payload.Job = ev.Job
	case importer.EventCleared:
		payload.Type = streamEventCleared
	default:
		return
	}

	m.publish(payload)
}

func (m *StreamManager) publish(payload *StreamPayload) {
	if m.closing.Load() {
		return
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE payload")
		return
	}

	message := &sse.Message{Type: sse.Type(payload.Type)}
	message.AppendData(string(encoded))

	if err := m.server.Publish(message); err != nil && !errors.Is(err, sse.ErrProviderClosed) {
		log.Error().Err(err).Msg("Failed to publish SSE message")
	}
}

// Serve implements the HTTP handler for the event stream. The first message
// carries a snapshot of all tracked jobs so clients can render immediately.
func (m *StreamManager) Serve(w http.ResponseWriter, r *http.Request) {
	if m.closing.Load() {
		http.Error(w, "stream shutting down", http.StatusServiceUnavailable)
		return
	}

	m.publish(&StreamPayload{
		Type:      streamEventUpdate,
		Jobs:      m.scheduler.Jobs(),
		Timestamp: time.Now(),
	})

	// SSE connections are long-lived; disable the write deadline inherited
	// from the main HTTP server so streams aren't terminated by the global
	// WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// ServeHTTP blocks until the client disconnects.
	m.server.ServeHTTP(w, r)
}

// Shutdown stops accepting subscribers and closes the event provider.
func (m *StreamManager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if !m.closing.CompareAndSwap(false, true) {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := m.server.Shutdown(ctx); err != nil &&
		!errors.Is(err, sse.ErrProviderClosed) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
