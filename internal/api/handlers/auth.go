// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/techmedaddy/dashd/internal/backend"
)

// authEngine is the slice of the engine client the auth handler uses.
type authEngine interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, email, password string) error
	Logout()
	Token() string
	Profile(ctx context.Context) (*backend.User, error)
	UpdateProfile(ctx context.Context, email string) (*backend.User, error)
}

type AuthHandler struct {
	engine authEngine
}

func NewAuthHandler(engine authEngine) *AuthHandler {
	return &AuthHandler{engine: engine}
}

func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.GetCurrentUser)
	r.Put("/me", h.UpdateProfile)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if err := h.engine.Login(r.Context(), req.Username, req.Password); err != nil {
		respondEngineError(w, err, "auth:login")
		return
	}

	log.Info().Str("username", req.Username).Msg("Logged in to engine")
	RespondJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if err := h.engine.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		respondEngineError(w, err, "auth:register")
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.engine.Logout()
	RespondJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	if h.engine.Token() == "" {
		RespondError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	user, err := h.engine.Profile(r.Context())
	if err != nil {
		respondEngineError(w, err, "auth:profile")
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.engine.UpdateProfile(r.Context(), req.Email)
	if err != nil {
		respondEngineError(w, err, "auth:updateProfile")
		return
	}
	RespondJSON(w, http.StatusOK, user)
}
