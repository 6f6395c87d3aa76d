// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package views holds the pure list transforms behind the torrent table:
// filter, search and sort. Everything here is side-effect free and operates
// on copies, the reconciled state is never mutated.
package views

import (
	"cmp"
	"slices"
	"strings"

	"github.com/techmedaddy/dashd/internal/backend"
)

// Filter values. A status name filters on the engine-reported status;
// FilterCompleted selects on progress instead, so a torrent that finished
// but reports "seeding" still shows up.
const (
	FilterAll       = "all"
	FilterCompleted = "completed"
)

// SortKey selects the column to order by.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortBySize     SortKey = "size"
	SortByProgress SortKey = "progress"
	SortBySpeed    SortKey = "dlspeed"
	SortByAdded    SortKey = "added"
)

// Query is one view over the torrent list. Transforms apply in a fixed
// order: filter, then search, then sort.
type Query struct {
	Filter string
	Search string
	Sort   SortKey
	Desc   bool
}

// Apply runs the query against the list and returns a new slice. Ties keep
// their relative order from the input.
func Apply(torrents []backend.TorrentSummary, q Query) []backend.TorrentSummary {
	out := filter(torrents, q.Filter)
	out = search(out, q.Search)
	sortTorrents(out, q.Sort, q.Desc)
	return out
}

func filter(torrents []backend.TorrentSummary, filter string) []backend.TorrentSummary {
	out := make([]backend.TorrentSummary, 0, len(torrents))
	switch filter {
	case "", FilterAll:
		out = append(out, torrents...)
	case FilterCompleted:
		for _, t := range torrents {
			if t.Completed() {
				out = append(out, t)
			}
		}
	default:
		status := backend.TorrentStatus(strings.ToLower(filter))
		for _, t := range torrents {
			if t.Status == status {
				out = append(out, t)
			}
		}
	}
	return out
}

// search keeps torrents whose name or id contains the term,
// case-insensitively. An empty term keeps everything.
func search(torrents []backend.TorrentSummary, term string) []backend.TorrentSummary {
	term = strings.TrimSpace(term)
	if term == "" {
		return torrents
	}

	needle := strings.ToLower(term)
	out := torrents[:0]
	for _, t := range torrents {
		if strings.Contains(strings.ToLower(t.Name), needle) ||
			strings.Contains(strings.ToLower(t.ID), needle) {
			out = append(out, t)
		}
	}
	return out
}

func sortTorrents(torrents []backend.TorrentSummary, key SortKey, desc bool) {
	if len(torrents) < 2 {
		return
	}

	var compare func(a, b backend.TorrentSummary) int
	switch key {
	case SortBySize:
		compare = func(a, b backend.TorrentSummary) int {
			return cmp.Compare(a.Size, b.Size)
		}
	case SortByProgress:
		compare = func(a, b backend.TorrentSummary) int {
			return cmp.Compare(a.Progress, b.Progress)
		}
	case SortBySpeed:
		compare = func(a, b backend.TorrentSummary) int {
			return cmp.Compare(a.DownloadSpeed, b.DownloadSpeed)
		}
	case SortByAdded:
		compare = func(a, b backend.TorrentSummary) int {
			return a.AddedAt.Compare(b.AddedAt)
		}
	case SortByName:
		fallthrough
	default:
		compare = compareNames
	}

	slices.SortStableFunc(torrents, func(a, b backend.TorrentSummary) int {
		c := compare(a, b)
		if desc {
			return -c
		}
		return c
	})
}

// compareNames orders names case-insensitively, keeping the original case
// as a tiebreaker so the ordering stays deterministic.
func compareNames(a, b backend.TorrentSummary) int {
	c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	if c == 0 {
		c = strings.Compare(a.Name, b.Name)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
	}
	return c
}
