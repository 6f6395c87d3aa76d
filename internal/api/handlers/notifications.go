// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/techmedaddy/dashd/internal/dashboard"
)

type NotificationsHandler struct {
	feed *dashboard.Feed
}

func NewNotificationsHandler(feed *dashboard.Feed) *NotificationsHandler {
	return &NotificationsHandler{feed: feed}
}

func (h *NotificationsHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/", h.Clear)
	r.Post("/read", h.MarkAllRead)
	r.Post("/{notificationID}/read", h.MarkRead)
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"notifications": h.feed.List(),
		"unread":        h.feed.UnreadCount(),
	})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "notificationID"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if !h.feed.MarkRead(id) {
		RespondError(w, http.StatusNotFound, "Notification not found")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"id": id})
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.feed.MarkAllRead()
	RespondJSON(w, http.StatusOK, map[string]int{"unread": 0})
}

func (h *NotificationsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.feed.Clear()
	RespondJSON(w, http.StatusOK, map[string]any{"cleared": true})
}
