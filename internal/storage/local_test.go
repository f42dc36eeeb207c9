// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpenAsset(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	meta, err := store.SaveAsset("cat.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.NotEmpty(t, meta.Key)
	assert.Equal(t, "cat.png", meta.Name)
	assert.Equal(t, int64(9), meta.Size)
	assert.Equal(t, "/api/assets/"+meta.Key+"/cat.png", meta.URL)

	f, err := store.Open(meta.Key, meta.Name)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestOpen_BlocksPathTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("..", "../protovault.db")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestDeleteAssets(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	meta, err := store.SaveAsset("tone.mp3", strings.NewReader("mp3"))
	require.NoError(t, err)

	store.DeleteAssets([]string{meta.Key, "missing-key"})

	_, err = store.Open(meta.Key, meta.Name)
	require.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", ContentTypeFor("cat.PNG"))
	assert.Equal(t, "audio/mpeg", ContentTypeFor("tone.mp3"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("blob.bin"))
}
