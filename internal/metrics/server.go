// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// MetricsServer serves the Prometheus endpoint on its own port so the
// dashboard API surface stays separate from scrape traffic.
type MetricsServer struct {
	manager *MetricsManager
	host    string
	port    int
}

func NewMetricsServer(manager *MetricsManager, host string, port int) *MetricsServer {
	return &MetricsServer{
		manager: manager,
		host:    host,
		port:    port,
	}
}

func (s *MetricsServer) ListenAndServe() error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.manager.GetRegistry(), promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("Starting metrics server")

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
