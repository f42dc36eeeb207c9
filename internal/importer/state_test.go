// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_AddRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	store := NewStateStore()

	require.True(t, store.Add(Job{ID: "a.netcanvas", Status: StatusQueued}))
	require.False(t, store.Add(Job{ID: "a.netcanvas", Status: StatusQueued}))

	assert.Len(t, store.Snapshot(), 1)
}

func TestStateStore_UpdateUntrackedIsDiscarded(t *testing.T) {
	t.Parallel()

	store := NewStateStore()

	called := false
	require.False(t, store.Update("ghost", func(j *Job) { called = true }))
	assert.False(t, called)

	_, ok := store.Get("ghost")
	assert.False(t, ok, "discarded update must not create a job")
}

func TestStateStore_RemovedJobIsNeverResurrected(t *testing.T) {
	t.Parallel()

	store := NewStateStore()
	require.True(t, store.Add(Job{ID: "a.netcanvas", Status: StatusExtracting}))
	require.True(t, store.Remove("a.netcanvas"))

	require.False(t, store.Update("a.netcanvas", func(j *Job) {
		j.Status = StatusComplete
	}))

	_, ok := store.Get("a.netcanvas")
	assert.False(t, ok)
	assert.Empty(t, store.Snapshot())
}

func TestStateStore_TerminalJobIsImmutable(t *testing.T) {
	t.Parallel()

	store := NewStateStore()
	require.True(t, store.Add(Job{ID: "a.netcanvas", Status: StatusComplete}))

	require.False(t, store.Update("a.netcanvas", func(j *Job) {
		j.Status = StatusExtracting
	}))

	job, ok := store.Get("a.netcanvas")
	require.True(t, ok)
	assert.Equal(t, StatusComplete, job.Status)
}

func TestStateStore_StatusNeverRegresses(t *testing.T) {
	t.Parallel()

	store := NewStateStore()
	require.True(t, store.Add(Job{ID: "a.netcanvas", Status: StatusUploadingAssets}))

	require.True(t, store.Update("a.netcanvas", func(j *Job) {
		j.Status = StatusValidating
	}))

	job, ok := store.Get("a.netcanvas")
	require.True(t, ok)
	assert.Equal(t, StatusUploadingAssets, job.Status, "stale transition must be dropped")

	require.True(t, store.Update("a.netcanvas", func(j *Job) {
		j.Status = StatusFailed
	}))
	job, _ = store.Get("a.netcanvas")
	assert.Equal(t, StatusFailed, job.Status, "failed is reachable from any status")
}

func TestStateStore_SnapshotPreservesSubmissionOrder(t *testing.T) {
	t.Parallel()

	store := NewStateStore()
	for _, id := range []string{"c", "a", "b"} {
		require.True(t, store.Add(Job{ID: id, Status: StatusQueued}))
	}

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "c", snapshot[0].ID)
	assert.Equal(t, "a", snapshot[1].ID)
	assert.Equal(t, "b", snapshot[2].ID)
}

func TestStateStore_SubscribeDeliversTransitions(t *testing.T) {
	t.Parallel()

	store := NewStateStore()
	events, cancel := store.Subscribe(16)
	defer cancel()

	require.True(t, store.Add(Job{ID: "a.netcanvas", Status: StatusQueued}))
	require.True(t, store.Update("a.netcanvas", func(j *Job) {
		j.Status = StatusExtracting
	}))
	require.True(t, store.Remove("a.netcanvas"))
	store.Clear()

	expect := []struct {
		typ    EventType
		status Status
	}{
		{EventUpdated, StatusQueued},
		{EventUpdated, StatusExtracting},
		{EventRemoved, StatusExtracting},
		{EventCleared, ""},
	}

	for _, want := range expect {
		select {
		case ev := <-events:
			assert.Equal(t, want.typ, ev.Type)
			if want.typ == EventCleared {
				assert.Nil(t, ev.Job)
			} else {
				require.NotNil(t, ev.Job)
				assert.Equal(t, want.status, ev.Job.Status)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", want.typ)
		}
	}
}

func TestStateStore_CancelledSubscriptionStopsDelivery(t *testing.T) {
	t.Parallel()

	store := NewStateStore()
	events, cancel := store.Subscribe(4)
	cancel()

	_, open := <-events
	assert.False(t, open, "cancelled subscription channel must be closed")

	// a second cancel is a no-op
	cancel()

	require.True(t, store.Add(Job{ID: "a.netcanvas", Status: StatusQueued}))
}
