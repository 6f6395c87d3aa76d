// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import "time"

// TorrentStatus is the lifecycle state reported by the engine.
type TorrentStatus string

const (
	StatusQueued      TorrentStatus = "queued"
	StatusDownloading TorrentStatus = "downloading"
	StatusSeeding     TorrentStatus = "seeding"
	StatusPaused      TorrentStatus = "paused"
	StatusError       TorrentStatus = "error"
	StatusCompleted   TorrentStatus = "completed"
)

// TorrentSummary is one row of the engine's torrent list.
type TorrentSummary struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Size          int64         `json:"size"`
	Status        TorrentStatus `json:"status"`
	Progress      float64       `json:"progress"` // percent, [0,100]
	DownloadSpeed int64         `json:"downloadSpeed"`
	UploadSpeed   int64         `json:"uploadSpeed"`
	AddedAt       time.Time     `json:"createdAt"`
}

// Completed reports whether the torrent has all pieces, regardless of the
// status string the engine reports.
func (t TorrentSummary) Completed() bool {
	return t.Progress >= 100
}

// TorrentLiveStats is the per-torrent live counter set.
type TorrentLiveStats struct {
	ID            string  `json:"id"`
	DownloadSpeed int64   `json:"downloadSpeed"`
	UploadSpeed   int64   `json:"uploadSpeed"`
	Peers         int     `json:"peers"`
	Seeds         int     `json:"seeds"`
	Downloaded    int64   `json:"downloaded"`
	Uploaded      int64   `json:"uploaded"`
	Ratio         float64 `json:"ratio"`
}

// TorrentFile describes one file inside a torrent.
type TorrentFile struct {
	Index    int     `json:"index"`
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	Selected bool    `json:"selected"`
}

// SpeedSample is one point of the engine's bandwidth history.
type SpeedSample struct {
	Timestamp     int64 `json:"timestamp"` // epoch millis
	DownloadSpeed int64 `json:"downloadSpeed"`
	UploadSpeed   int64 `json:"uploadSpeed"`
}

// NetworkStatus is the engine's network subsystem state.
type NetworkStatus struct {
	Listening bool `json:"listening"`
	Port      int  `json:"port"`
	DHTNodes  int  `json:"dhtNodes"`
	Peers     int  `json:"peers"`
}

// SystemStats is the engine-wide aggregate counter set. It is replaced
// wholesale on each fetch; there is no partial-update path.
type SystemStats struct {
	Users           int           `json:"users"`
	Torrents        int           `json:"torrents"`
	Active          int           `json:"active"`
	TotalDownloaded int64         `json:"totalDownloaded"`
	TotalUploaded   int64         `json:"totalUploaded"`
	Network         NetworkStatus `json:"network"`
}

// Settings is the engine configuration exposed to the dashboard.
type Settings struct {
	DownloadDir      string `json:"downloadDir"`
	MaxDownloadSpeed int64  `json:"maxDownloadSpeed"`
	MaxUploadSpeed   int64  `json:"maxUploadSpeed"`
	MaxActive        int    `json:"maxActive"`
	Port             int    `json:"port"`
	DHTEnabled       bool   `json:"dhtEnabled"`
}

// User is the engine account owning the session.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthStatus is the engine health check response.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
}

// AddResult reports the outcome of one file in a batch upload. Each upload
// succeeds or fails independently.
type AddResult struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
	OK   bool   `json:"ok"`
	Err  string `json:"error,omitempty"`
}
