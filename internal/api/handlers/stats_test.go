// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techmedaddy/dashd/internal/backend"
	"github.com/techmedaddy/dashd/internal/dashboard"
)

func TestGetStatsAggregates(t *testing.T) {
	store := seededStore()
	ring := dashboard.NewSpeedRing(60)
	h := NewStatsHandler(store, ring)

	r := chi.NewRouter()
	r.Route("/api/stats", h.Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats         backend.SystemStats `json:"stats"`
		ByStatus      map[string]int      `json:"byStatus"`
		DownloadSpeed int64               `json:"downloadSpeed"`
		Stale         bool                `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Stats.Torrents)
	assert.Equal(t, 1, resp.ByStatus["downloading"])
	assert.Equal(t, 1, resp.ByStatus["seeding"])
	assert.EqualValues(t, 512, resp.DownloadSpeed)
	assert.False(t, resp.Stale)
}

func TestGetSpeedHistory(t *testing.T) {
	ring := dashboard.NewSpeedRing(60)
	ring.Push(backend.SpeedSample{Timestamp: 1, DownloadSpeed: 10})
	ring.Push(backend.SpeedSample{Timestamp: 2, DownloadSpeed: 20})

	h := NewStatsHandler(dashboard.NewStore(), ring)
	r := chi.NewRouter()
	r.Route("/api/stats", h.Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/speed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Samples []backend.SpeedSample `json:"samples"`
		Window  int                   `json:"window"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Samples, 2)
	assert.EqualValues(t, 1, resp.Samples[0].Timestamp)
	assert.Equal(t, 2, resp.Window)
}

func TestNotificationsEndpoints(t *testing.T) {
	feed := dashboard.NewFeed(10)
	feed.Add(dashboard.NotifyAdded, "t1", "Added alpha")
	feed.Add(dashboard.NotifyCompleted, "t1", "Completed alpha")

	h := NewNotificationsHandler(feed)
	r := chi.NewRouter()
	r.Route("/api/notifications", h.Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Notifications []dashboard.Notification `json:"notifications"`
		Unread        int                      `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 2)
	assert.Equal(t, 2, resp.Unread)

	first := resp.Notifications[0]
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/"+strconv.Itoa(first.ID)+"/read", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, feed.UnreadCount())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/read", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, feed.UnreadCount())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notifications", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, feed.List())
}
