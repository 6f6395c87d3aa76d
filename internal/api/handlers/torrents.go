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
	"github.com/techmedaddy/dashd/internal/dashboard"
	"github.com/techmedaddy/dashd/internal/views"
)

const addTorrentMaxFormMemory int64 = 256 << 20 // cap for multi-file uploads

// torrentEngine is the slice of the engine client the torrents handler
// uses. Tests substitute a fake.
type torrentEngine interface {
	GetTorrentStats(ctx context.Context, id string) (*backend.TorrentLiveStats, error)
	AddMagnet(ctx context.Context, magnet string) (*backend.TorrentSummary, error)
	AddTorrentFiles(ctx context.Context, uploads []backend.Upload) []backend.AddResult
	StartTorrent(ctx context.Context, id string) error
	PauseTorrent(ctx context.Context, id string) error
	ResumeTorrent(ctx context.Context, id string) error
	DeleteTorrent(ctx context.Context, id string, deleteFiles bool) error
	TorrentFiles(ctx context.Context, id string) ([]backend.TorrentFile, error)
	SelectFiles(ctx context.Context, id string, indices []int) error
	Search(ctx context.Context, query string) ([]backend.TorrentSummary, error)
	SupportsSearch() bool
	SupportsFileSelection() bool
}

type TorrentsHandler struct {
	engine   torrentEngine
	store    *dashboard.Store
	searcher *views.RankedSearcher
}

func NewTorrentsHandler(engine torrentEngine, store *dashboard.Store, searcher *views.RankedSearcher) *TorrentsHandler {
	return &TorrentsHandler{
		engine:   engine,
		store:    store,
		searcher: searcher,
	}
}

func (h *TorrentsHandler) Routes(r chi.Router) {
	r.Get("/", h.ListTorrents)
	r.Post("/", h.AddTorrents)
	r.Post("/magnet", h.AddMagnet)
	r.Get("/search", h.Search)

	r.Route("/{torrentID}", func(r chi.Router) {
		r.Get("/", h.GetTorrent)
		r.Delete("/", h.DeleteTorrent)
		r.Get("/stats", h.GetTorrentStats)
		r.Post("/start", h.StartTorrent)
		r.Post("/pause", h.PauseTorrent)
		r.Post("/resume", h.ResumeTorrent)
		r.Get("/files", h.GetTorrentFiles)
		r.Put("/files", h.SelectTorrentFiles)
	})
}

// ListTorrents serves the reconciled list, shaped by filter, search and
// sort query parameters. Reads never hit the engine.
func (h *TorrentsHandler) ListTorrents(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	query := views.Query{
		Filter: r.URL.Query().Get("filter"),
		Search: r.URL.Query().Get("search"),
		Sort:   views.SortKey(r.URL.Query().Get("sort")),
		Desc:   strings.EqualFold(r.URL.Query().Get("order"), "desc"),
	}
	torrents := views.Apply(snap.Torrents, query)

	RespondJSON(w, http.StatusOK, map[string]any{
		"torrents":    torrents,
		"total":       len(snap.Torrents),
		"filtered":    len(torrents),
		"lastUpdated": snap.LastUpdated,
		"stale":       snap.IsOffline(),
	})
}

func (h *TorrentsHandler) GetTorrent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "torrentID")

	torrent, ok := h.store.Get(id)
	if !ok {
		RespondError(w, http.StatusNotFound, "Torrent not found")
		return
	}
	RespondJSON(w, http.StatusOK, torrent)
}

func (h *TorrentsHandler) GetTorrentStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "torrentID")

	stats, err := h.engine.GetTorrentStats(r.Context(), id)
	if err != nil {
		respondEngineError(w, err, "torrents:stats")
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}

// AddMagnet submits a magnet link to the engine.
func (h *TorrentsHandler) AddMagnet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Magnet string `json:"magnet"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	added, err := h.engine.AddMagnet(r.Context(), req.Magnet)
	if err != nil {
		if err == backend.ErrEmptyMagnet {
			RespondError(w, http.StatusBadRequest, "Magnet link is required")
			return
		}
		respondEngineError(w, err, "torrents:addMagnet")
		return
	}

	log.Info().Str("torrentId", added.ID).Str("name", added.Name).Msg("Added torrent from magnet")
	RespondJSON(w, http.StatusCreated, added)
}

// AddTorrents accepts one or more .torrent files as multipart form data.
// Files succeed or fail independently; the response carries one result per
// file.
func (h *TorrentsHandler) AddTorrents(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(addTorrentMaxFormMemory); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	files := r.MultipartForm.File["torrents"]
	if len(files) == 0 {
		RespondError(w, http.StatusBadRequest, "No torrent files provided")
		return
	}

	// Results stay in submission order so batch clients can correlate by
	// index as well as name.
	results := make([]backend.AddResult, len(files))
	uploads := make([]backend.Upload, 0, len(files))
	uploadIndex := make([]int, 0, len(files))
	for i, header := range files {
		file, err := header.Open()
		if err != nil {
			results[i] = backend.AddResult{
				Name: header.Filename,
				Err:  "failed to read upload",
			}
			continue
		}
		defer file.Close()
		uploads = append(uploads, backend.Upload{Name: header.Filename, Data: file})
		uploadIndex = append(uploadIndex, i)
	}

	for i, res := range h.engine.AddTorrentFiles(r.Context(), uploads) {
		if i < len(uploadIndex) {
			results[uploadIndex[i]] = res
		}
	}

	succeeded := 0
	for _, res := range results {
		if res.OK {
			succeeded++
		}
	}
	log.Info().
		Int("total", len(results)).
		Int("succeeded", succeeded).
		Msg("Processed torrent file uploads")

	status := http.StatusCreated
	if succeeded == 0 {
		status = http.StatusBadGateway
	} else if succeeded < len(results) {
		status = http.StatusMultiStatus
	}
	RespondJSON(w, status, map[string]any{"results": results})
}

// Search prefers the engine's server-side search and degrades to ranked
// matching over the local snapshot on older engines. The table's exact
// substring filter lives on ListTorrents instead.
func (h *TorrentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if strings.TrimSpace(term) == "" {
		RespondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	if h.engine.SupportsSearch() {
		torrents, err := h.engine.Search(r.Context(), term)
		if err != nil {
			respondEngineError(w, err, "torrents:search")
			return
		}
		RespondJSON(w, http.StatusOK, map[string]any{"torrents": torrents, "source": "engine"})
		return
	}

	snap := h.store.Snapshot()
	matches := h.searcher.Search(snap.Torrents, term)
	RespondJSON(w, http.StatusOK, map[string]any{"results": matches, "source": "local"})
}

func (h *TorrentsHandler) StartTorrent(w http.ResponseWriter, r *http.Request) {
	h.torrentAction(w, r, "torrents:start", h.engine.StartTorrent)
}

func (h *TorrentsHandler) PauseTorrent(w http.ResponseWriter, r *http.Request) {
	h.torrentAction(w, r, "torrents:pause", h.engine.PauseTorrent)
}

func (h *TorrentsHandler) ResumeTorrent(w http.ResponseWriter, r *http.Request) {
	h.torrentAction(w, r, "torrents:resume", h.engine.ResumeTorrent)
}

func (h *TorrentsHandler) torrentAction(w http.ResponseWriter, r *http.Request, operation string, action func(context.Context, string) error) {
	id := chi.URLParam(r, "torrentID")

	if err := action(r.Context(), id); err != nil {
		respondEngineError(w, err, operation)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *TorrentsHandler) DeleteTorrent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "torrentID")
	deleteFiles := r.URL.Query().Get("deleteFiles") == "true"

	if err := h.engine.DeleteTorrent(r.Context(), id, deleteFiles); err != nil {
		respondEngineError(w, err, "torrents:delete")
		return
	}

	log.Info().Str("torrentId", id).Bool("deleteFiles", deleteFiles).Msg("Deleted torrent")
	RespondJSON(w, http.StatusOK, map[string]any{"id": id, "deletedFiles": deleteFiles})
}

func (h *TorrentsHandler) GetTorrentFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "torrentID")

	files, err := h.engine.TorrentFiles(r.Context(), id)
	if err != nil {
		respondEngineError(w, err, "torrents:files")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *TorrentsHandler) SelectTorrentFiles(w http.ResponseWriter, r *http.Request) {
	if !h.engine.SupportsFileSelection() {
		RespondError(w, http.StatusNotImplemented, "Engine version does not support file selection")
		return
	}

	id := chi.URLParam(r, "torrentID")
	var req struct {
		Files []int `json:"files"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.engine.SelectFiles(r.Context(), id, req.Files); err != nil {
		respondEngineError(w, err, "torrents:selectFiles")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"id": id, "files": req.Files})
}
