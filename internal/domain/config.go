// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config holds the runtime configuration for dashd.
type Config struct {
	Version string

	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"baseUrl"`

	// Engine is the base URL of the torrentedge engine REST API.
	Engine string `mapstructure:"engine"`
	// EnginePushURL overrides the WebSocket push endpoint. Empty derives
	// ws(s)://<engine-host>/events from Engine.
	EnginePushURL string `mapstructure:"enginePushUrl"`

	PollInterval      int `mapstructure:"pollInterval"`      // seconds
	SpeedSampleWindow int `mapstructure:"speedSampleWindow"` // ring capacity

	ReconnectMaxAttempts int `mapstructure:"reconnectMaxAttempts"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	DataDir string `mapstructure:"dataDir"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	PprofEnabled bool `mapstructure:"pprofEnabled"`
}
