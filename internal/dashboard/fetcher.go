// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/techmedaddy/dashd/internal/backend"
)

const defaultPollInterval = 5 * time.Second

// engineAPI is the slice of the engine client the fetcher needs.
type engineAPI interface {
	ListTorrents(ctx context.Context) ([]backend.TorrentSummary, error)
	SystemStats(ctx context.Context) (*backend.SystemStats, error)
	SpeedHistory(ctx context.Context) ([]backend.SpeedSample, error)
	SupportsSpeedHistory() bool
}

// Fetcher polls the engine at a fixed cadence and installs the result in
// the store. Polling is unconditional: it runs whether or not the push
// channel is healthy, so a silent push outage degrades to 5s freshness
// instead of a frozen view.
type Fetcher struct {
	client   engineAPI
	store    *Store
	ring     *SpeedRing
	interval time.Duration
}

func NewFetcher(client engineAPI, store *Store, ring *SpeedRing, interval time.Duration) *Fetcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Fetcher{
		client:   client,
		store:    store,
		ring:     ring,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (f *Fetcher) Run(ctx context.Context) {
	f.seedSpeedHistory(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		f.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh performs one poll. List and aggregate stats are fetched in
// parallel; either failing fails the poll as a whole.
func (f *Fetcher) Refresh(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, f.interval)
	defer cancel()

	var (
		torrents []backend.TorrentSummary
		stats    *backend.SystemStats
	)

	g, gctx := errgroup.WithContext(pollCtx)
	g.Go(func() error {
		var err error
		torrents, err = f.client.ListTorrents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = f.client.SystemStats(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		f.store.RecordError(err)
		snap := f.store.Snapshot()
		logEvent := log.Warn()
		if snap.IsOffline() {
			logEvent = log.Error()
		}
		logEvent.
			Err(err).
			Int("consecutiveFailures", snap.ConsecutiveFailures).
			Msg("Engine poll failed")
		return
	}

	f.store.Replace(torrents, stats)
}

// seedSpeedHistory preloads the bandwidth window from the engine so the
// graph is populated on startup instead of growing from empty.
func (f *Fetcher) seedSpeedHistory(ctx context.Context) {
	if f.ring == nil || !f.client.SupportsSpeedHistory() {
		return
	}

	samples, err := f.client.SpeedHistory(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to seed speed history")
		return
	}

	f.ring.Reset()
	for _, sample := range samples {
		f.ring.Push(sample)
	}
	log.Debug().Int("samples", len(samples)).Msg("Seeded speed history from engine")
}
