// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techmedaddy/dashd/internal/backend"
)

func sampleTorrents() []backend.TorrentSummary {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []backend.TorrentSummary{
		{ID: "t1", Name: "Ubuntu 24.04", Size: 5 << 30, Status: backend.StatusSeeding, Progress: 100, DownloadSpeed: 0, AddedAt: base},
		{ID: "t2", Name: "debian-13.iso", Size: 3 << 30, Status: backend.StatusDownloading, Progress: 40, DownloadSpeed: 2048, AddedAt: base.Add(time.Hour)},
		{ID: "t3", Name: "arch-2025.06", Size: 1 << 30, Status: backend.StatusPaused, Progress: 100, DownloadSpeed: 0, AddedAt: base.Add(2 * time.Hour)},
		{ID: "t4", Name: "Fedora Workstation", Size: 2 << 30, Status: backend.StatusDownloading, Progress: 75, DownloadSpeed: 512, AddedAt: base.Add(3 * time.Hour)},
	}
}

func ids(torrents []backend.TorrentSummary) []string {
	out := make([]string, len(torrents))
	for i, t := range torrents {
		out[i] = t.ID
	}
	return out
}

func TestFilterByStatus(t *testing.T) {
	tests := []struct {
		name     string
		filter   string
		expected []string
	}{
		{name: "all_empty", filter: "", expected: []string{"t1", "t2", "t3", "t4"}},
		{name: "all_explicit", filter: FilterAll, expected: []string{"t1", "t2", "t3", "t4"}},
		{name: "downloading", filter: "downloading", expected: []string{"t2", "t4"}},
		{name: "paused", filter: "paused", expected: []string{"t3"}},
		{name: "status_case_insensitive", filter: "Seeding", expected: []string{"t1"}},
		{name: "no_match", filter: "error", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(sampleTorrents(), Query{Filter: tt.filter, Sort: SortByAdded})
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}

func TestFilterCompletedUsesProgressNotStatus(t *testing.T) {
	// t1 seeds at 100%, t3 is paused at 100%: both are complete. Relative
	// order is preserved.
	got := Apply(sampleTorrents(), Query{Filter: FilterCompleted, Sort: SortByAdded})
	assert.Equal(t, []string{"t1", "t3"}, ids(got))
}

func TestSearchSubstring(t *testing.T) {
	tests := []struct {
		name     string
		search   string
		expected []string
	}{
		{name: "name_case_insensitive", search: "UBUNTU", expected: []string{"t1"}},
		{name: "partial", search: "25.06", expected: []string{"t3"}},
		{name: "by_id", search: "t4", expected: []string{"t4"}},
		{name: "whitespace_trimmed", search: "  debian  ", expected: []string{"t2"}},
		{name: "no_match", search: "windows", expected: []string{}},
		{name: "empty_keeps_all", search: "", expected: []string{"t1", "t2", "t3", "t4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(sampleTorrents(), Query{Search: tt.search, Sort: SortByAdded})
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}

func TestSortColumns(t *testing.T) {
	tests := []struct {
		name     string
		sort     SortKey
		desc     bool
		expected []string
	}{
		{name: "name_asc", sort: SortByName, expected: []string{"t3", "t2", "t4", "t1"}},
		{name: "name_desc", sort: SortByName, desc: true, expected: []string{"t1", "t4", "t2", "t3"}},
		{name: "size_asc", sort: SortBySize, expected: []string{"t3", "t4", "t2", "t1"}},
		{name: "progress_desc", sort: SortByProgress, desc: true, expected: []string{"t1", "t3", "t4", "t2"}},
		{name: "speed_desc", sort: SortBySpeed, desc: true, expected: []string{"t2", "t4", "t1", "t3"}},
		{name: "added_asc", sort: SortByAdded, expected: []string{"t1", "t2", "t3", "t4"}},
		{name: "added_desc", sort: SortByAdded, desc: true, expected: []string{"t4", "t3", "t2", "t1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(sampleTorrents(), Query{Sort: tt.sort, Desc: tt.desc})
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}

func TestSortReversalIsExact(t *testing.T) {
	// With all-distinct keys, flipping the direction must reverse exactly.
	asc := Apply(sampleTorrents(), Query{Sort: SortBySize})
	desc := Apply(sampleTorrents(), Query{Sort: SortBySize, Desc: true})

	require.Equal(t, len(asc), len(desc))
	for i := range asc {
		assert.Equal(t, asc[i].ID, desc[len(desc)-1-i].ID)
	}
}

func TestSortStableOnTies(t *testing.T) {
	torrents := []backend.TorrentSummary{
		{ID: "a", Name: "same", Progress: 50},
		{ID: "b", Name: "same2", Progress: 50},
		{ID: "c", Name: "same3", Progress: 50},
	}
	got := Apply(torrents, Query{Sort: SortByProgress})
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestSortDuplicateNamesOrderByID(t *testing.T) {
	// Name sorting breaks exact-duplicate names on the id, so the order is
	// the same no matter how the input was shuffled.
	shuffles := [][]backend.TorrentSummary{
		{{ID: "t9", Name: "mirror"}, {ID: "t1", Name: "mirror"}, {ID: "t5", Name: "mirror"}},
		{{ID: "t5", Name: "mirror"}, {ID: "t9", Name: "mirror"}, {ID: "t1", Name: "mirror"}},
	}
	for _, torrents := range shuffles {
		got := Apply(torrents, Query{Sort: SortByName})
		assert.Equal(t, []string{"t1", "t5", "t9"}, ids(got))
	}

	// Case still wins over id when the names differ only by case.
	got := Apply([]backend.TorrentSummary{
		{ID: "t1", Name: "mirror"},
		{ID: "t2", Name: "Mirror"},
	}, Query{Sort: SortByName})
	assert.Equal(t, []string{"t2", "t1"}, ids(got))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	torrents := sampleTorrents()
	Apply(torrents, Query{Filter: "downloading", Search: "deb", Sort: SortByName, Desc: true})

	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, ids(torrents))
}

func TestTransformOrderFilterThenSearchThenSort(t *testing.T) {
	got := Apply(sampleTorrents(), Query{
		Filter: "downloading",
		Search: "e",
		Sort:   SortBySize,
		Desc:   true,
	})
	// Both downloading torrents contain "e"; sorted by size descending.
	assert.Equal(t, []string{"t2", "t4"}, ids(got))
}

func TestRankedSearch(t *testing.T) {
	searcher := NewRankedSearcher()
	torrents := sampleTorrents()

	matches := searcher.Search(torrents, "ubunt")
	require.NotEmpty(t, matches)
	assert.Equal(t, "t1", matches[0].Torrent.ID)

	// Fuzzy should tolerate missing characters where substring would not.
	matches = searcher.Search(torrents, "fdra")
	require.NotEmpty(t, matches)
	assert.Equal(t, "t4", matches[0].Torrent.ID)
}

func TestRankedSearchEmptyTerm(t *testing.T) {
	searcher := NewRankedSearcher()
	assert.Nil(t, searcher.Search(sampleTorrents(), "   "))
}

func TestRankedSearchCaches(t *testing.T) {
	searcher := NewRankedSearcher()
	torrents := sampleTorrents()

	first := searcher.Search(torrents, "debian")
	second := searcher.Search(torrents, "debian")
	assert.Equal(t, first, second)

	searcher.Invalidate()
	third := searcher.Search(torrents, "debian")
	assert.Equal(t, first, third)
}
