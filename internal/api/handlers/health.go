// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/techmedaddy/dashd/internal/dashboard"
)

// connectionState reports the push channel, used by both the health and
// connection endpoints.
type connectionState interface {
	Connected() bool
	EverConnected() bool
}

type HealthHandler struct {
	version string
	store   *dashboard.Store
	push    connectionState
	engine  interface{ EngineVersion() string }
}

func NewHealthHandler(version string, store *dashboard.Store, push connectionState, engine interface{ EngineVersion() string }) *HealthHandler {
	return &HealthHandler{
		version: version,
		store:   store,
		push:    push,
		engine:  engine,
	}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleReady reports readiness: the dashboard is ready once at least one
// poll has landed, even a failed one.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	if snap.LastUpdated.IsZero() {
		RespondError(w, http.StatusServiceUnavailable, "No engine poll completed yet")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleConnection reports the live-update channel and engine state for
// the connection indicator in the header.
func (h *HealthHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	RespondJSON(w, http.StatusOK, map[string]any{
		"pushConnected":     h.push.Connected(),
		"pushEverConnected": h.push.EverConnected(),
		"engineOffline":     snap.IsOffline(),
		"engineVersion":     h.engine.EngineVersion(),
		"lastUpdated":       snap.LastUpdated,
		"failures":          snap.ConsecutiveFailures,
	})
}
