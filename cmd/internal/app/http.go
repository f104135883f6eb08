package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulse/cmd/internal/auth"
	authapi "pulse/cmd/internal/auth/api"
	"pulse/cmd/internal/httpx"
	"pulse/cmd/internal/token"
	trackapi "pulse/cmd/internal/tracking/api"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Database       string `json:"database"`
	TokenCacheSize int    `json:"token_cache_size"`
}

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	fw *auth.Framework,
	tokens *token.Service,
	pool *pgxpool.Pool,
	authHandler *authapi.Handler,
	trackHandler *trackapi.Handler,
	started time.Time,
) {
	mux.HandleFunc("GET /api/status/ping", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "pong",
		})
	})

	mux.HandleFunc("GET /api/status/health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fw.Authenticate(r, auth.LevelUser); err != nil {
			httpx.WriteErr(w, log, err)
			return
		}

		overall, db := "ok", "ok"
		status := http.StatusOK
		if err := PingDB(r.Context(), pool, 2*time.Second); err != nil {
			log.Warn("health.db.unreachable", "err", err)
			overall, db = "degraded", "down"
			status = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, status, healthResponse{
			Status:         overall,
			Version:        Version,
			UptimeSeconds:  int64(time.Since(started).Seconds()),
			Database:       db,
			TokenCacheSize: tokens.CacheSize(),
		})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	authHandler.Register(mux)
	trackHandler.Register(mux)
}
