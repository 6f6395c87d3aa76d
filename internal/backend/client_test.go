// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, &MemoryTokenStore{}, "dashd/test")
	require.NoError(t, err)
	return client, srv
}

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "plain_host", input: "localhost:5000", expected: "http://localhost:5000"},
		{name: "trailing_slash", input: "http://engine.local/", expected: "http://engine.local"},
		{name: "https_with_path", input: "https://engine.local/api/", expected: "https://engine.local/api"},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := parseBaseURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u.String())
		})
	}
}

func TestPushURL(t *testing.T) {
	client, err := NewClient("https://engine.local", nil, "dashd/test")
	require.NoError(t, err)
	assert.Equal(t, "wss://engine.local/events", client.PushURL())

	client, err = NewClient("http://engine.local:5000", nil, "dashd/test")
	require.NoError(t, err)
	assert.Equal(t, "ws://engine.local:5000/events", client.PushURL())
}

func TestPathPrefixedEngineURL(t *testing.T) {
	paths := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Version: "1.3.0"})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/engine", &MemoryTokenStore{}, "dashd/test")
	require.NoError(t, err)

	_, err = client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/engine/api/health", <-paths)

	_, err = client.GetTorrent(context.Background(), "abc/1")
	require.NoError(t, err)
	assert.Equal(t, "/engine/api/torrents/abc%2F1", <-paths)

	assert.Equal(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/engine/events", client.PushURL())
}

func TestLoginStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.Login(context.Background(), "alice", "hunter2"))
	assert.Equal(t, "tok-123", client.Token())

	persisted, err := client.tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", persisted)
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/torrents", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"torrents": []TorrentSummary{}})
	})

	client, _ := newTestClient(t, mux)
	client.setToken("tok-abc")

	_, err := client.ListTorrents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestUnauthorizedClearsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/torrents", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, _ := newTestClient(t, mux)
	client.setToken("stale")

	_, err := client.ListTorrents(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, client.Token())

	persisted, loadErr := client.tokens.Load()
	require.NoError(t, loadErr)
	assert.Empty(t, persisted)
}

func TestGetRetriesOnServerError(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(SystemStats{Torrents: 7})
	})

	client, _ := newTestClient(t, mux)
	stats, err := client.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Torrents)
	assert.Equal(t, 3, attempts)
}

func TestGetDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/torrents/missing", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "torrent not found"})
	})

	client, _ := newTestClient(t, mux)
	_, err := client.GetTorrent(context.Background(), "missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "torrent not found")
	assert.Equal(t, 1, attempts)
}

func TestAddMagnetRejectsEmpty(t *testing.T) {
	client, err := NewClient("http://localhost:5000", nil, "dashd/test")
	require.NoError(t, err)

	_, err = client.AddMagnet(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMagnet)
}

func TestAddTorrentFilesIndependentOutcomes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/torrents", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("torrent")
		require.NoError(t, err)
		defer file.Close()

		if header.Filename == "bad.torrent" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid bencode"})
			return
		}
		json.NewEncoder(w).Encode(TorrentSummary{ID: "id-" + header.Filename, Name: header.Filename})
	})

	client, _ := newTestClient(t, mux)
	results := client.AddTorrentFiles(context.Background(), []Upload{
		{Name: "good.torrent", Data: strings.NewReader("d4:infoe")},
		{Name: "bad.torrent", Data: strings.NewReader("garbage")},
		{Name: "other.torrent", Data: strings.NewReader("d4:infoe")},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.Equal(t, "id-good.torrent", results[0].ID)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Err, "invalid bencode")
	assert.True(t, results[2].OK)
}

func TestDeleteTorrentWithFiles(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/torrents/abc", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.DeleteTorrent(context.Background(), "abc", true))
	assert.Equal(t, "deleteFiles=true", gotQuery)

	require.NoError(t, client.DeleteTorrent(context.Background(), "abc", false))
	assert.Empty(t, gotQuery)
}

func TestRefreshCapabilities(t *testing.T) {
	tests := []struct {
		name            string
		version         string
		wantSearch      bool
		wantHistory     bool
		wantSelection   bool
	}{
		{name: "ancient", version: "1.0.0"},
		{name: "search_only", version: "1.1.5", wantSearch: true},
		{name: "current", version: "1.3.0", wantSearch: true, wantHistory: true, wantSelection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Version: tt.version})
			})

			client, _ := newTestClient(t, mux)
			require.NoError(t, client.RefreshCapabilities(context.Background()))

			assert.Equal(t, tt.version, client.EngineVersion())
			assert.Equal(t, tt.wantSearch, client.SupportsSearch())
			assert.Equal(t, tt.wantHistory, client.SupportsSpeedHistory())
			assert.Equal(t, tt.wantSelection, client.SupportsFileSelection())
		})
	}
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/token"
	store := NewFileTokenStore(path)

	// Missing file reads as logged-out, not an error.
	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("tok-xyz"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
