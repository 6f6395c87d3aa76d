// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/techmedaddy/dashd/internal/dashboard"
)

type StatsHandler struct {
	store *dashboard.Store
	ring  *dashboard.SpeedRing
}

func NewStatsHandler(store *dashboard.Store, ring *dashboard.SpeedRing) *StatsHandler {
	return &StatsHandler{
		store: store,
		ring:  ring,
	}
}

func (h *StatsHandler) Routes(r chi.Router) {
	r.Get("/", h.GetStats)
	r.Get("/speed", h.GetSpeedHistory)
}

// GetStats serves the engine-wide aggregates from the last poll, with
// derived per-status counts for the dashboard header.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	byStatus := make(map[string]int)
	var totalDown, totalUp int64
	for _, t := range snap.Torrents {
		byStatus[string(t.Status)]++
		totalDown += t.DownloadSpeed
		totalUp += t.UploadSpeed
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"stats":         snap.Stats,
		"hasStats":      snap.HasStats,
		"byStatus":      byStatus,
		"downloadSpeed": totalDown,
		"uploadSpeed":   totalUp,
		"lastUpdated":   snap.LastUpdated,
		"stale":         snap.IsOffline(),
	})
}

// GetSpeedHistory serves the bandwidth window for the live graph, oldest
// sample first.
func (h *StatsHandler) GetSpeedHistory(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"samples": h.ring.Samples(),
		"window":  h.ring.Len(),
	})
}
