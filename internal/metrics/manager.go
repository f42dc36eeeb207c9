// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes import pipeline observability through a dedicated
// Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/importer"
)

type Manager struct {
	registry        *prometheus.Registry
	importCollector *ImportCollector
	recorder        *Recorder
}

func NewManager(scheduler *importer.Scheduler) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	importCollector := NewImportCollector(scheduler)
	registry.MustRegister(importCollector)

	recorder := NewRecorder(scheduler)
	registry.MustRegister(recorder.jobsTotal, recorder.jobDuration)

	log.Info().Msg("Metrics manager initialized with import collector")

	return &Manager{
		registry:        registry,
		importCollector: importCollector,
		recorder:        recorder,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Recorder returns the event-driven recorder; its Run loop must be started
// for outcome counters to advance.
func (m *Manager) Recorder() *Recorder {
	return m.recorder
}
