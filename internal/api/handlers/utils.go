// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/techmedaddy/dashd/internal/backend"
)

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps an engine client error onto our response. 401s
// from the engine surface as 401 so the UI can prompt for login; engine
// API errors keep their status, anything else is a bad gateway.
func respondEngineError(w http.ResponseWriter, err error, operation string) {
	if errors.Is(err, backend.ErrUnauthorized) {
		RespondError(w, http.StatusUnauthorized, "Engine session expired")
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		log.Debug().Err(err).Str("operation", operation).Msg("Engine rejected request")
		msg := apiErr.Message
		if msg == "" {
			msg = "Engine rejected the request"
		}
		RespondError(w, apiErr.Status, msg)
		return
	}

	log.Error().Err(err).Str("operation", operation).Msg("Engine request failed")
	RespondError(w, http.StatusBadGateway, "Engine unreachable")
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
