// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/protovault/protovault/internal/importer"
)

// ImportCollector reports the live shape of the import queue on every scrape.
type ImportCollector struct {
	scheduler *importer.Scheduler

	jobsByStatus *prometheus.Desc
}

func NewImportCollector(scheduler *importer.Scheduler) *ImportCollector {
	return &ImportCollector{
		scheduler: scheduler,
		jobsByStatus: prometheus.NewDesc(
			"protovault_import_jobs",
			"Number of tracked import jobs by status",
			[]string{"status"},
			nil,
		),
	}
}

func (c *ImportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsByStatus
}

func (c *ImportCollector) Collect(ch chan<- prometheus.Metric) {
	counts := make(map[importer.Status]int)
	for _, job := range c.scheduler.Jobs() {
		counts[job.Status]++
	}

	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.jobsByStatus,
			prometheus.GaugeValue,
			float64(n),
			string(status),
		)
	}
}

// Recorder consumes scheduler events and records terminal outcomes.
type Recorder struct {
	scheduler *importer.Scheduler

	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

func NewRecorder(scheduler *importer.Scheduler) *Recorder {
	return &Recorder{
		scheduler: scheduler,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protovault_import_jobs_total",
			Help: "Completed import jobs by outcome and failure kind",
		}, []string{"status", "kind"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "protovault_import_job_duration_seconds",
			Help:    "Time from submission to a terminal status",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// Run observes scheduler events until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	events, cancel := r.scheduler.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.observe(ev)
		}
	}
}

func (r *Recorder) observe(ev importer.Event) {
	if ev.Type != importer.EventUpdated || ev.Job == nil || !ev.Job.Status.Terminal() {
		return
	}

	kind := ""
	if ev.Job.Error != nil {
		kind = string(ev.Job.Error.Kind)
	}
	r.jobsTotal.WithLabelValues(string(ev.Job.Status), kind).Inc()

	if !ev.Job.QueuedAt.IsZero() {
		r.jobDuration.Observe(time.Since(ev.Job.QueuedAt).Seconds())
	}
}
