// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/techmedaddy/dashd/internal/dashboard"
)

// MetricsManager owns the Prometheus registry and the dashboard collector.
type MetricsManager struct {
	registry  *prometheus.Registry
	collector *dashboardCollector
}

func NewMetricsManager(store *dashboard.Store, ring *dashboard.SpeedRing, connected func() bool) *MetricsManager {
	registry := prometheus.NewRegistry()

	collector := newDashboardCollector(store, ring, connected)
	registry.MustRegister(collector)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &MetricsManager{
		registry:  registry,
		collector: collector,
	}
}

func (m *MetricsManager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// dashboardCollector exports the reconciled engine state on scrape. Reads
// come from the store snapshot, so scrapes never block the poll loop.
type dashboardCollector struct {
	store     *dashboard.Store
	ring      *dashboard.SpeedRing
	connected func() bool

	torrentCount    *prometheus.Desc
	torrentStatus   *prometheus.Desc
	downloadSpeed   *prometheus.Desc
	uploadSpeed     *prometheus.Desc
	totalDownloaded *prometheus.Desc
	totalUploaded   *prometheus.Desc
	pollFailures    *prometheus.Desc
	engineUp        *prometheus.Desc
	pushConnected   *prometheus.Desc
}

func newDashboardCollector(store *dashboard.Store, ring *dashboard.SpeedRing, connected func() bool) *dashboardCollector {
	return &dashboardCollector{
		store:     store,
		ring:      ring,
		connected: connected,
		torrentCount: prometheus.NewDesc(
			"dashd_torrents_total",
			"Number of torrents known to the engine",
			nil, nil,
		),
		torrentStatus: prometheus.NewDesc(
			"dashd_torrents_status_total",
			"Number of torrents by status",
			[]string{"status"}, nil,
		),
		downloadSpeed: prometheus.NewDesc(
			"dashd_download_speed_bytes_per_second",
			"Aggregate download speed from the latest bandwidth sample",
			nil, nil,
		),
		uploadSpeed: prometheus.NewDesc(
			"dashd_upload_speed_bytes_per_second",
			"Aggregate upload speed from the latest bandwidth sample",
			nil, nil,
		),
		totalDownloaded: prometheus.NewDesc(
			"dashd_downloaded_bytes_total",
			"Total bytes downloaded as reported by the engine",
			nil, nil,
		),
		totalUploaded: prometheus.NewDesc(
			"dashd_uploaded_bytes_total",
			"Total bytes uploaded as reported by the engine",
			nil, nil,
		),
		pollFailures: prometheus.NewDesc(
			"dashd_poll_consecutive_failures",
			"Consecutive engine poll failures",
			nil, nil,
		),
		engineUp: prometheus.NewDesc(
			"dashd_engine_up",
			"Whether the engine responded to recent polls",
			nil, nil,
		),
		pushConnected: prometheus.NewDesc(
			"dashd_push_connected",
			"Whether the push event channel is open",
			nil, nil,
		),
	}
}

func (c *dashboardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.torrentCount
	ch <- c.torrentStatus
	ch <- c.downloadSpeed
	ch <- c.uploadSpeed
	ch <- c.totalDownloaded
	ch <- c.totalUploaded
	ch <- c.pollFailures
	ch <- c.engineUp
	ch <- c.pushConnected
}

func (c *dashboardCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.torrentCount, prometheus.GaugeValue, float64(len(snap.Torrents)))

	byStatus := make(map[string]int)
	for _, t := range snap.Torrents {
		byStatus[string(t.Status)]++
	}
	for status, count := range byStatus {
		ch <- prometheus.MustNewConstMetric(c.torrentStatus, prometheus.GaugeValue, float64(count), status)
	}

	if latest, ok := c.ring.Latest(); ok {
		ch <- prometheus.MustNewConstMetric(c.downloadSpeed, prometheus.GaugeValue, float64(latest.DownloadSpeed))
		ch <- prometheus.MustNewConstMetric(c.uploadSpeed, prometheus.GaugeValue, float64(latest.UploadSpeed))
	}

	if snap.HasStats {
		ch <- prometheus.MustNewConstMetric(c.totalDownloaded, prometheus.CounterValue, float64(snap.Stats.TotalDownloaded))
		ch <- prometheus.MustNewConstMetric(c.totalUploaded, prometheus.CounterValue, float64(snap.Stats.TotalUploaded))
	}

	ch <- prometheus.MustNewConstMetric(c.pollFailures, prometheus.GaugeValue, float64(snap.ConsecutiveFailures))

	up := 0.0
	if !snap.IsOffline() && !snap.LastUpdated.IsZero() {
		up = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.engineUp, prometheus.GaugeValue, up)

	pushUp := 0.0
	if c.connected != nil && c.connected() {
		pushUp = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.pushConnected, prometheus.GaugeValue, pushUp)

	log.Trace().Int("torrents", len(snap.Torrents)).Msg("Metrics collected")
}
