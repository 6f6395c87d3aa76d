// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package views

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/patrickmn/go-cache"

	"github.com/techmedaddy/dashd/internal/backend"
)

const (
	searchCacheTTL     = 5 * time.Second
	searchCacheCleanup = time.Minute
)

// RankedSearcher runs tolerant fuzzy matching over torrent names for the
// search box suggestions. Distinct from the table's substring filter, which
// stays exact. Results are cached briefly since the UI fires a query per
// keystroke.
type RankedSearcher struct {
	cache *cache.Cache
}

func NewRankedSearcher() *RankedSearcher {
	return &RankedSearcher{
		cache: cache.New(searchCacheTTL, searchCacheCleanup),
	}
}

// Match is one fuzzy search hit. Lower rank is a closer match.
type Match struct {
	Torrent backend.TorrentSummary `json:"torrent"`
	Rank    int                    `json:"rank"`
}

// Search returns torrents whose names fuzzily match term, best first.
// Ranking ties break on name order so results are stable.
func (s *RankedSearcher) Search(torrents []backend.TorrentSummary, term string) []Match {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	key := fmt.Sprintf("%s|%d", strings.ToLower(term), len(torrents))
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]Match)
	}

	names := make([]string, len(torrents))
	for i, t := range torrents {
		names[i] = t.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(term, names)

	matches := make([]Match, 0, len(ranks))
	for _, r := range ranks {
		matches = append(matches, Match{
			Torrent: torrents[r.OriginalIndex],
			Rank:    r.Distance,
		})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		if a.Rank != b.Rank {
			return a.Rank - b.Rank
		}
		return compareNames(a.Torrent, b.Torrent)
	})

	s.cache.Set(key, matches, cache.DefaultExpiration)
	return matches
}

// Invalidate drops all cached results. Called after the torrent list
// changes shape.
func (s *RankedSearcher) Invalidate() {
	s.cache.Flush()
}
