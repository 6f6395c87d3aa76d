// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techmedaddy/dashd/internal/backend"
	"github.com/techmedaddy/dashd/internal/config"
	"github.com/techmedaddy/dashd/internal/dashboard"
	"github.com/techmedaddy/dashd/internal/push"
	"github.com/techmedaddy/dashd/internal/views"
)

func newTestServer(t *testing.T, baseURL string) *Server {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	content := "host = \"localhost\"\n"
	if baseURL != "" {
		content += "baseUrl = \"" + baseURL + "\"\n"
	}
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := config.New(configPath)
	require.NoError(t, err)

	client, err := backend.NewClient("http://localhost:5000", &backend.MemoryTokenStore{}, "dashd/test")
	require.NoError(t, err)

	store := dashboard.NewStore()
	store.Replace([]backend.TorrentSummary{{ID: "t1", Name: "alpha", Progress: 50}}, nil)

	return NewServer(&Dependencies{
		Config:   cfg,
		Version:  "test",
		Client:   client,
		Store:    store,
		Ring:     dashboard.NewSpeedRing(60),
		Feed:     dashboard.NewFeed(10),
		Session:  push.NewSession("ws://localhost:5000/events", nil, push.NewBus(), push.Options{}),
		Searcher: views.NewRankedSearcher(),
	})
}

func TestHandlerRoutes(t *testing.T) {
	handler := newTestServer(t, "").Handler()

	tests := []struct {
		name     string
		method   string
		path     string
		expected int
	}{
		{name: "health", method: http.MethodGet, path: "/health", expected: http.StatusOK},
		{name: "liveness", method: http.MethodGet, path: "/healthz/liveness", expected: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/healthz/readiness", expected: http.StatusOK},
		{name: "torrent_list", method: http.MethodGet, path: "/api/torrents", expected: http.StatusOK},
		{name: "torrent_get", method: http.MethodGet, path: "/api/torrents/t1", expected: http.StatusOK},
		{name: "stats", method: http.MethodGet, path: "/api/stats", expected: http.StatusOK},
		{name: "speed", method: http.MethodGet, path: "/api/stats/speed", expected: http.StatusOK},
		{name: "notifications", method: http.MethodGet, path: "/api/notifications", expected: http.StatusOK},
		{name: "connection", method: http.MethodGet, path: "/api/connection", expected: http.StatusOK},
		{name: "unknown", method: http.MethodGet, path: "/api/nope", expected: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestHandlerBaseURL(t *testing.T) {
	handler := newTestServer(t, "/dash/").Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dash/api/torrents", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "baseUrl")
}

func TestConnectionEndpointShape(t *testing.T) {
	handler := newTestServer(t, "").Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/connection", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PushConnected     bool `json:"pushConnected"`
		PushEverConnected bool `json:"pushEverConnected"`
		EngineOffline     bool `json:"engineOffline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.PushConnected)
	assert.False(t, resp.PushEverConnected)
	assert.False(t, resp.EngineOffline)
}
