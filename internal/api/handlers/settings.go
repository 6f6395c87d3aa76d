// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/techmedaddy/dashd/internal/backend"
)

type settingsEngine interface {
	GetSettings(ctx context.Context) (*backend.Settings, error)
	UpdateSettings(ctx context.Context, s *backend.Settings) (*backend.Settings, error)
}

type SettingsHandler struct {
	engine settingsEngine
}

func NewSettingsHandler(engine settingsEngine) *SettingsHandler {
	return &SettingsHandler{engine: engine}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/", h.GetSettings)
	r.Put("/", h.UpdateSettings)
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.engine.GetSettings(r.Context())
	if err != nil {
		respondEngineError(w, err, "settings:get")
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req backend.Settings
	if !decodeJSONBody(w, r, &req) {
		return
	}

	updated, err := h.engine.UpdateSettings(r.Context(), &req)
	if err != nil {
		respondEngineError(w, err, "settings:update")
		return
	}

	log.Info().Msg("Updated engine settings")
	RespondJSON(w, http.StatusOK, updated)
}
