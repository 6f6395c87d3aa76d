// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dashboard

import (
	"sync"
	"time"

	"github.com/techmedaddy/dashd/internal/backend"
)

// offlineThreshold is how many polls may fail in a row before the engine is
// considered unreachable.
const offlineThreshold = 2

// Snapshot is the dashboard's view of the engine at one point in time.
type Snapshot struct {
	Torrents            []backend.TorrentSummary
	Stats               backend.SystemStats
	HasStats            bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline reports whether the engine has been unreachable for several
// polls in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= offlineThreshold
}

// Store holds the reconciled engine state. Polls replace the torrent list
// and aggregate stats wholesale; push events patch individual torrents in
// place between polls.
type Store struct {
	mu       sync.RWMutex
	torrents []backend.TorrentSummary
	index    map[string]int

	stats    backend.SystemStats
	hasStats bool

	lastUpdated         time.Time
	lastErr             error
	consecutiveFailures int
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Replace installs a fresh poll result. The poll is authoritative: any
// patched state not reflected by the engine is overwritten.
func (s *Store) Replace(torrents []backend.TorrentSummary, stats *backend.SystemStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.torrents = make([]backend.TorrentSummary, len(torrents))
	copy(s.torrents, torrents)
	s.index = make(map[string]int, len(torrents))
	for i, t := range s.torrents {
		s.index[t.ID] = i
	}

	if stats != nil {
		s.stats = *stats
		s.hasStats = true
	}

	s.lastErr = nil
	s.lastUpdated = time.Now()
	s.consecutiveFailures = 0
}

// RecordError notes a failed poll. Previous data is kept so the dashboard
// degrades to stale rather than empty.
func (s *Store) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = err
	s.lastUpdated = time.Now()
	s.consecutiveFailures++
}

// ProgressPatch is a partial torrent update from a push event. Nil fields
// were not carried by the event and keep their current value.
type ProgressPatch struct {
	ID            string                 `json:"id"`
	Progress      *float64               `json:"progress"`
	DownloadSpeed *int64                 `json:"downloadSpeed"`
	UploadSpeed   *int64                 `json:"uploadSpeed"`
	Status        *backend.TorrentStatus `json:"status"`
}

// Patch applies a partial update to one torrent. Updates for ids not in the
// current snapshot are dropped; the next poll will pick the torrent up.
func (s *Store) Patch(patch ProgressPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[patch.ID]
	if !ok {
		return false
	}

	t := &s.torrents[i]
	if patch.Progress != nil {
		t.Progress = *patch.Progress
	}
	if patch.DownloadSpeed != nil {
		t.DownloadSpeed = *patch.DownloadSpeed
	}
	if patch.UploadSpeed != nil {
		t.UploadSpeed = *patch.UploadSpeed
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	return true
}

// Get returns one torrent by id from the current snapshot.
func (s *Store) Get(id string) (backend.TorrentSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return backend.TorrentSummary{}, false
	}
	return s.torrents[i], true
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	torrents := make([]backend.TorrentSummary, len(s.torrents))
	copy(torrents, s.torrents)

	return Snapshot{
		Torrents:            torrents,
		Stats:               s.stats,
		HasStats:            s.hasStats,
		LastUpdated:         s.lastUpdated,
		LastError:           s.lastErr,
		ConsecutiveFailures: s.consecutiveFailures,
	}
}
