// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protovault/protovault/internal/storage"
)

func newAssetsTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	sessionManager := scs.New()
	handler := NewAssetsHandler(store, sessionManager)

	r := chi.NewRouter()
	r.Use(sessionManager.LoadAndSave)
	r.Post("/test-login", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Put(r.Context(), "authenticated", true)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/api/assets/upload", handler.Upload)
	r.Get("/api/assets/{key}/{filename}", handler.Serve)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}
}

func login(t *testing.T, ts *httptest.Server, client *http.Client) {
	t.Helper()

	resp, err := client.Post(ts.URL+"/test-login", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAssetUpload_RequiresSession(t *testing.T) {
	t.Parallel()

	ts, client := newAssetsTestServer(t)

	body, contentType := multipartBody(t, map[string][]byte{"a.png": []byte("data")})
	resp, err := client.Post(ts.URL+"/api/assets/upload", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAssetUpload_RejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	ts, client := newAssetsTestServer(t)
	login(t, ts, client)

	body, contentType := multipartBody(t, nil)
	resp, err := client.Post(ts.URL+"/api/assets/upload", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssetUploadAndServeRoundtrip(t *testing.T) {
	t.Parallel()

	ts, client := newAssetsTestServer(t)
	login(t, ts, client)

	body, contentType := multipartBody(t, map[string][]byte{
		"photo.png": []byte("png bytes"),
		"clip.mp4":  []byte("mp4 bytes"),
	})
	resp, err := client.Post(ts.URL+"/api/assets/upload", contentType, body)
	require.NoError(t, err)

	var uploaded []storage.AssetMeta
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, uploaded, 2)

	byName := make(map[string]storage.AssetMeta, len(uploaded))
	for _, meta := range uploaded {
		require.NotEmpty(t, meta.Key)
		byName[meta.Name] = meta
	}
	require.Contains(t, byName, "photo.png")

	// each uploaded asset is served back from its URL
	resp, err = client.Get(ts.URL + byName["photo.png"].URL)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png bytes", string(data))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")
}

func TestAssetServe_UnknownAssetIs404(t *testing.T) {
	t.Parallel()

	ts, client := newAssetsTestServer(t)

	resp, err := client.Get(ts.URL + "/api/assets/no-such-key/missing.png")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
