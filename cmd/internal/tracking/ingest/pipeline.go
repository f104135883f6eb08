package ingest

import (
	"context"
	"log/slog"
	"time"

	"pulse/cmd/internal/metrics"
	"pulse/cmd/internal/repo"
)

// Stream names as they appear in batch requests and responses.
const (
	StreamActivity      = "activity_events"
	StreamAppUsage      = "app_usages"
	StreamMetrics       = "system_metrics"
	StreamSessionEvents = "session_events"
)

// BatchRequest is the composite ingest payload.
type BatchRequest struct {
	SessionID      string               `json:"session_id"`
	ActivityEvents []ActivityEventInput `json:"activity_events"`
	AppUsages      []AppUsageInput      `json:"app_usages"`
	SystemMetrics  []SystemMetricInput  `json:"system_metrics"`
	SessionEvents  []SessionEventInput  `json:"session_events"`
}

// Empty reports whether no stream carries any item.
func (r BatchRequest) Empty() bool {
	return len(r.ActivityEvents) == 0 && len(r.AppUsages) == 0 &&
		len(r.SystemMetrics) == 0 && len(r.SessionEvents) == 0
}

// ItemFailure records one rejected item by its input position.
type ItemFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult is the per-stream accounting returned to the agent.
type BatchResult struct {
	SessionID       string         `json:"session_id"`
	ProcessingTime  time.Time      `json:"processing_time"`
	Success         bool           `json:"success"`
	ProcessedCounts map[string]int `json:"processed_counts"`

	ActivityFailures     []ItemFailure `json:"activity_events_failures,omitempty"`
	AppUsageFailures     []ItemFailure `json:"app_usages_failures,omitempty"`
	MetricFailures       []ItemFailure `json:"system_metrics_failures,omitempty"`
	SessionEventFailures []ItemFailure `json:"session_events_failures,omitempty"`
}

// TxRunner wraps the batch in a transaction scope. The Postgres wiring
// passes repo.ExecuteInTransaction over the pool; tests pass nil to run
// without one.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Pipeline fans a batch out across the writers.
type Pipeline struct {
	log     *slog.Logger
	writers *Writers
	run     TxRunner
	now     func() time.Time
}

// NewPipeline constructs a Pipeline.
func NewPipeline(log *slog.Logger, writers *Writers, run TxRunner) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if run == nil {
		run = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Pipeline{log: log, writers: writers, run: run, now: time.Now}
}

// Run processes one batch against sessionID inside a single
// transaction. Streams run in fixed order, items in input order; a
// rejected item rolls back to its savepoint and the rest commits.
// Run fails outright only on an empty batch or a broken transaction.
func (p *Pipeline) Run(ctx context.Context, sessionID string, req BatchRequest, actor string) (BatchResult, error) {
	if req.Empty() {
		return BatchResult{}, ErrEmptyBatch
	}

	res := BatchResult{
		SessionID:       sessionID,
		Success:         true,
		ProcessedCounts: make(map[string]int),
	}

	err := p.run(ctx, func(ctx context.Context) error {
		res.ActivityFailures = p.runStream(ctx, StreamActivity, len(req.ActivityEvents), &res,
			func(ctx context.Context, i int) error {
				_, err := p.writers.WriteActivity(ctx, sessionID, req.ActivityEvents[i], actor)
				return err
			})
		res.AppUsageFailures = p.runStream(ctx, StreamAppUsage, len(req.AppUsages), &res,
			func(ctx context.Context, i int) error {
				_, err := p.writers.WriteAppUsage(ctx, sessionID, req.AppUsages[i], actor)
				return err
			})
		res.MetricFailures = p.runStream(ctx, StreamMetrics, len(req.SystemMetrics), &res,
			func(ctx context.Context, i int) error {
				_, err := p.writers.WriteMetric(ctx, sessionID, req.SystemMetrics[i], actor)
				return err
			})
		res.SessionEventFailures = p.runStream(ctx, StreamSessionEvents, len(req.SessionEvents), &res,
			func(ctx context.Context, i int) error {
				_, err := p.writers.WriteSessionEvent(ctx, sessionID, req.SessionEvents[i], actor)
				return err
			})
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	res.ProcessingTime = p.now().UTC()
	p.log.Info("ingest.batch.processed",
		"session_id", sessionID, "success", res.Success, "counts", res.ProcessedCounts)
	return res, nil
}

func (p *Pipeline) runStream(ctx context.Context, stream string, n int, res *BatchResult, write func(ctx context.Context, i int) error) []ItemFailure {
	if n == 0 {
		return nil
	}

	var fails []ItemFailure
	success := 0
	for i := 0; i < n; i++ {
		err := repo.Attempt(ctx, func(ctx context.Context) error { return write(ctx, i) })
		if err != nil {
			outcome := "storage_error"
			if IsValidation(err) {
				outcome = "validation_error"
			}
			metrics.IngestItems.WithLabelValues(stream, outcome).Inc()
			p.log.Warn("ingest.item.rejected", "stream", stream, "index", i, "reason", err.Error())
			fails = append(fails, ItemFailure{Index: i, Error: err.Error()})
			res.Success = false
			continue
		}
		metrics.IngestItems.WithLabelValues(stream, "ok").Inc()
		success++
	}

	res.ProcessedCounts[stream+"_success"] = success
	res.ProcessedCounts[stream+"_failure"] = n - success
	res.ProcessedCounts[stream+"_total"] = n
	return fails
}
