// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	xglog "github.com/ManuGH/rumkit/internal/log"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/sink"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const rateLimitWindow = time.Minute

type routerDeps struct {
	buffer    *sink.Buffer
	rateLimit int
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debug", func(r chi.Router) {
		if deps.rateLimit > 0 {
			r.Use(rateLimit(deps.rateLimit, rateLimitWindow))
		}
		r.Get("/logs", handleLogs)
		r.Get("/views", handleViews(deps.buffer))
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type logsResponse struct {
	Logs    []xglog.Entry       `json:"logs"`
	Dropped xglog.BufferMetrics `json:"dropped"`
}

func handleLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, logsResponse{
		Logs:    xglog.GetRecentLogs(),
		Dropped: xglog.GetBufferMetrics(),
	})
}

func handleViews(buffer *sink.Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if buffer == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "event buffer disabled"})
			return
		}
		latest := buffer.Latest()
		views := make([]rumevent.ViewEvent, 0, len(latest))
		for _, v := range latest {
			views = append(views, v)
		}
		sort.Slice(views, func(i, j int) bool { return views[i].Date < views[j].Date })
		writeJSON(w, http.StatusOK, views)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
