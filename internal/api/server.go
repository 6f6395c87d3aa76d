// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/techmedaddy/dashd/internal/api/handlers"
	"github.com/techmedaddy/dashd/internal/backend"
	"github.com/techmedaddy/dashd/internal/config"
	"github.com/techmedaddy/dashd/internal/dashboard"
	"github.com/techmedaddy/dashd/internal/push"
	"github.com/techmedaddy/dashd/internal/views"
)

type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.AppConfig
	version string

	client   *backend.Client
	store    *dashboard.Store
	ring     *dashboard.SpeedRing
	feed     *dashboard.Feed
	session  *push.Session
	searcher *views.RankedSearcher
}

type Dependencies struct {
	Config   *config.AppConfig
	Version  string
	Client   *backend.Client
	Store    *dashboard.Store
	Ring     *dashboard.SpeedRing
	Feed     *dashboard.Feed
	Session  *push.Session
	Searcher *views.RankedSearcher
}

func NewServer(deps *Dependencies) *Server {
	return &Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		logger:   log.Logger.With().Str("module", "api").Logger(),
		config:   deps.Config,
		version:  deps.Version,
		client:   deps.Client,
		store:    deps.Store,
		ring:     deps.Ring,
		feed:     deps.Feed,
		session:  deps.Session,
		searcher: deps.Searcher,
	}
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := fmt.Sprintf("%s:%d", s.config.Config.Host, s.config.Config.Port)

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msg("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Msgf("Starting API server - Open: http://%s%s", host, s.config.Config.BaseURL)

	s.server.Handler = s.Handler()

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Fast compression levels; the list endpoint is chatty
	compressor, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(1024),
		httpcompression.GzipCompressionLevel(2),
		httpcompression.Prefer(httpcompression.PreferServer),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	corsMiddleware := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedMethods:   []string{"HEAD", "OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowOriginFunc:  func(origin string) bool { return true },
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler(s.version, s.store, s.session, s.client)
	authHandler := handlers.NewAuthHandler(s.client)
	torrentsHandler := handlers.NewTorrentsHandler(s.client, s.store, s.searcher)
	statsHandler := handlers.NewStatsHandler(s.store, s.ring)
	notificationsHandler := handlers.NewNotificationsHandler(s.feed)
	settingsHandler := handlers.NewSettingsHandler(s.client)

	apiRouter := chi.NewRouter()
	apiRouter.Group(func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.ThrottleBacklog(1, 1, time.Second))
			authHandler.Routes(r)
		})

		r.Route("/torrents", torrentsHandler.Routes)
		r.Route("/stats", statsHandler.Routes)
		r.Route("/notifications", notificationsHandler.Routes)
		r.Route("/settings", settingsHandler.Routes)
		r.Get("/connection", healthHandler.HandleConnection)
	})

	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/healthz/readiness", healthHandler.HandleReady)
	r.Get("/healthz/liveness", healthHandler.HandleLiveness)

	baseURL := s.config.Config.BaseURL
	if baseURL == "" {
		baseURL = "/"
	}
	r.Mount(baseURL+"api", apiRouter)

	if baseURL != "/" {
		r.Get("/", func(w http.ResponseWriter, request *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Must use baseUrl: " + s.config.Config.BaseURL + " instead of /"))
		})
	}

	return r
}
