// Package metrics declares the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenValidations counts token-store validations by token type and
	// outcome (valid, expired, revoked, unknown).
	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_token_validations_total",
		Help: "Token store validations by type and outcome.",
	}, []string{"type", "outcome"})

	// TokensSwept counts tokens removed by the expiry sweeper.
	TokensSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_tokens_swept_total",
		Help: "Expired tokens deleted by the background sweep.",
	})

	// AuthRequests counts authentication outcomes at the framework level.
	AuthRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_auth_requests_total",
		Help: "Authentication attempts by outcome (ok, unauthorized, forbidden).",
	}, []string{"outcome"})

	// SessionsResolved counts session-engine resolutions by action taken
	// (open, reopen, continue).
	SessionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_sessions_resolved_total",
		Help: "Session resolutions by action.",
	}, []string{"action"})

	// IngestItems counts batch-pipeline items by stream and outcome.
	IngestItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_ingest_items_total",
		Help: "Batch ingestion items by stream and outcome (ok, failed).",
	}, []string{"stream", "outcome"})
)
