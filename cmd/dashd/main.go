// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/techmedaddy/dashd/internal/api"
	"github.com/techmedaddy/dashd/internal/backend"
	"github.com/techmedaddy/dashd/internal/buildinfo"
	"github.com/techmedaddy/dashd/internal/config"
	"github.com/techmedaddy/dashd/internal/dashboard"
	"github.com/techmedaddy/dashd/internal/domain"
	"github.com/techmedaddy/dashd/internal/metrics"
	"github.com/techmedaddy/dashd/internal/push"
	"github.com/techmedaddy/dashd/internal/views"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "dashd",
		Short: "A self-hosted dashboard for the torrentedge engine",
		Long: `dashd - a web dashboard for a torrentedge download engine.
Serves the torrent list, live transfer stats and a bandwidth graph,
kept fresh by the engine's push channel with polling as a fallback.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunStatusCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
		engineURL string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/dashd/ or %APPDATA%\\dashd\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the persisted engine token (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().StringVar(&engineURL, "engine", "", "engine base URL (overrides config)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath, engineURL, pprofFlag)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dashd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/dashd/config.toml
- Windows: %APPDATA%\dashd\config.toml

You can specify either a directory path or a direct file path:
- Directory: dashd generate-config --config-dir /path/to/config/
- File: dashd generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Printf("Generated config file: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path")

	return command
}

// RunStatusCommand queries the engine directly and prints a one-shot
// summary, handy for checking connectivity before starting the server.
func RunStatusCommand() *cobra.Command {
	var (
		configDir string
		engineURL string
	)

	command := &cobra.Command{
		Use:   "status",
		Short: "Show engine status and aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := engineURL
			var tokens backend.TokenStore = &backend.MemoryTokenStore{}

			if cfg, err := config.New(configDir, buildinfo.Version); err == nil {
				if url == "" {
					url = cfg.Config.Engine
				}
				tokens = backend.NewFileTokenStore(cfg.GetTokenPath())
			} else if url == "" {
				return fmt.Errorf("load config: %w", err)
			}

			client, err := backend.NewClient(url, tokens, buildinfo.UserAgent)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			health, err := client.Health(ctx)
			if err != nil {
				return fmt.Errorf("engine unreachable at %s: %w", url, err)
			}

			fmt.Printf("Engine:   %s\n", url)
			fmt.Printf("Status:   %s (v%s)\n", health.Status, health.Version)
			fmt.Printf("Uptime:   %s\n", humanize.Time(time.Now().Add(-time.Duration(health.Uptime)*time.Second)))

			stats, err := client.SystemStats(ctx)
			if err != nil {
				fmt.Printf("Stats:    unavailable (%v)\n", err)
				return nil
			}

			fmt.Printf("Torrents: %d (%d active)\n", stats.Torrents, stats.Active)
			fmt.Printf("Traffic:  %s down / %s up\n",
				humanize.IBytes(uint64(stats.TotalDownloaded)),
				humanize.IBytes(uint64(stats.TotalUploaded)))
			if stats.Network.Listening {
				fmt.Printf("Network:  listening on :%d, %d peers, %d DHT nodes\n",
					stats.Network.Port, stats.Network.Peers, stats.Network.DHTNodes)
			} else {
				fmt.Println("Network:  not listening")
			}
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path")
	command.Flags().StringVar(&engineURL, "engine", "", "engine base URL (overrides config)")

	return command
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
	engineURL string
	pprofFlag bool
}

func NewApplication(configDir, dataDir, logPath, engineURL string, pprofFlag bool) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
		engineURL: engineURL,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.dataDir != "" {
		os.Setenv("DASHD__DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("DASHD__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}
	if app.engineURL != "" {
		cfg.Config.Engine = app.engineURL
	}
	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting dashd")

	tokens := backend.NewFileTokenStore(cfg.GetTokenPath())
	client, err := backend.NewClient(cfg.Config.Engine, tokens, buildinfo.UserAgent)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize engine client")
	}

	// Engine capabilities are best-effort at startup; the engine may come
	// up after us.
	capCtx, capCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.RefreshCapabilities(capCtx); err != nil {
		log.Warn().Err(err).Str("engine", cfg.Config.Engine).Msg("Engine not reachable at startup")
	}
	capCancel()

	store := dashboard.NewStore()
	ring := dashboard.NewSpeedRing(cfg.Config.SpeedSampleWindow)
	feed := dashboard.NewFeed(0)
	bus := push.NewBus()

	pushURL := cfg.Config.EnginePushURL
	if pushURL == "" {
		pushURL = client.PushURL()
	}
	session := push.NewSession(pushURL, push.NewWebsocketDialer(), bus, push.Options{
		MaxAttempts: cfg.Config.ReconnectMaxAttempts,
		RequestHeader: func() http.Header {
			header := http.Header{}
			if token := client.Token(); token != "" {
				header.Set("Authorization", "Bearer "+token)
			}
			return header
		},
	})

	reconciler := dashboard.NewReconciler(store, ring, feed)
	reconciler.Bind(bus)
	session.Acquire()
	defer session.Release()

	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()
	fetcher := dashboard.NewFetcher(client, store, ring, cfg.PollInterval())
	go fetcher.Run(pollCtx)

	cfg.RegisterReloadListener(func(conf *domain.Config) {
		log.Debug().Str("engine", conf.Engine).Msg("Configuration reloaded")
	})

	httpServer := api.NewServer(&api.Dependencies{
		Config:   cfg,
		Version:  buildinfo.Version,
		Client:   client,
		Store:    store,
		Ring:     ring,
		Feed:     feed,
		Session:  session,
		Searcher: views.NewRankedSearcher(),
	})

	errorChannel := make(chan error)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	if cfg.Config.MetricsEnabled {
		metricsManager := metrics.NewMetricsManager(store, ring, session.Connected)

		go func() {
			metricsServer := metrics.NewMetricsServer(
				metricsManager,
				cfg.Config.MetricsHost,
				cfg.Config.MetricsPort,
			)
			errorChannel <- metricsServer.ListenAndServe()
		}()
	}

	if cfg.Config.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
		os.Exit(1)
	}
}
