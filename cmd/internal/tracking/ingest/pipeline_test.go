package ingest

import (
	"context"
	"testing"
	"time"

	"pulse/cmd/identity/ids"
)

func newTestPipeline(t *testing.T) (*Pipeline, *MemorySink) {
	t.Helper()
	sink := NewMemorySink()
	w := NewWriters(nil, sink)
	w.now = func() time.Time { return testNow }
	return NewPipeline(nil, w, nil), sink
}

func TestPipeline_EmptyBatch(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t)
	if _, err := p.Run(context.Background(), ids.NewUUID(), BatchRequest{}, "u1"); err != ErrEmptyBatch {
		t.Fatalf("want ErrEmptyBatch, got %v", err)
	}
}

func TestPipeline_CoercedItemsAllSucceed(t *testing.T) {
	t.Parallel()

	p, sink := newTestPipeline(t)
	sid := ids.NewUUID()
	tm := testNow.Add(-time.Minute)

	res, err := p.Run(context.Background(), sid, BatchRequest{
		ActivityEvents: []ActivityEventInput{
			{EventType: EventKeyboard, EventTime: ptrTime(tm)},
			{EventType: EventMouseMove, EventTime: ptrTime(tm)},
			{EventType: "warp-drive"}, // defaulted, not failed
			{EventType: EventKeyboard, EventTime: ptrTime(tm)},
		},
	}, "u1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("success = false: %+v", res)
	}
	if res.ProcessedCounts["activity_events_success"] != 4 ||
		res.ProcessedCounts["activity_events_failure"] != 0 ||
		res.ProcessedCounts["activity_events_total"] != 4 {
		t.Fatalf("counts wrong: %+v", res.ProcessedCounts)
	}
	if len(res.ActivityFailures) != 0 {
		t.Fatalf("unexpected failures: %+v", res.ActivityFailures)
	}
	if len(sink.Activities) != 4 {
		t.Fatalf("sink rows = %d", len(sink.Activities))
	}
}

func TestPipeline_BadItemRecordedByIndex(t *testing.T) {
	t.Parallel()

	p, sink := newTestPipeline(t)
	sid := ids.NewUUID()

	res, err := p.Run(context.Background(), sid, BatchRequest{
		ActivityEvents: []ActivityEventInput{
			{EventType: EventKeyboard},
			{SessionID: OptionalID{Set: true}}, // explicit null session_id
		},
	}, "u1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Success {
		t.Fatalf("batch with a rejected item must not report success")
	}
	if res.ProcessedCounts["activity_events_success"] != 1 ||
		res.ProcessedCounts["activity_events_failure"] != 1 {
		t.Fatalf("counts wrong: %+v", res.ProcessedCounts)
	}
	if len(res.ActivityFailures) != 1 || res.ActivityFailures[0].Index != 1 {
		t.Fatalf("failure index wrong: %+v", res.ActivityFailures)
	}
	if len(sink.Activities) != 1 {
		t.Fatalf("good item should still land: rows = %d", len(sink.Activities))
	}
}

func TestPipeline_MixedStreamsInOrder(t *testing.T) {
	t.Parallel()

	p, sink := newTestPipeline(t)
	sid := ids.NewUUID()
	cpu := 42.0

	t0 := testNow.Add(-3 * time.Minute)
	t1 := testNow.Add(-2 * time.Minute)
	t2 := testNow.Add(-1 * time.Minute)

	res, err := p.Run(context.Background(), sid, BatchRequest{
		ActivityEvents: []ActivityEventInput{
			{EventType: EventKeyboard, EventTime: ptrTime(t0)},
			{EventType: EventKeyboard, EventTime: ptrTime(t1)},
			{EventType: EventKeyboard, EventTime: ptrTime(t2)},
		},
		AppUsages:     []AppUsageInput{{AppID: "app-1", StartTime: ptrTime(t0)}},
		SystemMetrics: []SystemMetricInput{{CPUUsage: &cpu}},
		SessionEvents: []SessionEventInput{{EventType: SessionUnlock, EventTime: ptrTime(t1)}},
	}, "u1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("success = false: %+v", res)
	}

	// Items land in input order within a stream.
	times := []time.Time{t0, t1, t2}
	for i, e := range sink.Activities {
		if !e.EventTime.Equal(times[i]) {
			t.Fatalf("activity %d out of order: %v", i, e.EventTime)
		}
	}
	if len(sink.AppUsages) != 1 || len(sink.Metrics) != 1 || len(sink.SessionEvents) != 1 {
		t.Fatalf("stream fan-out wrong: %d %d %d",
			len(sink.AppUsages), len(sink.Metrics), len(sink.SessionEvents))
	}
	for _, k := range []string{"app_usages_total", "system_metrics_total", "session_events_total"} {
		if res.ProcessedCounts[k] != 1 {
			t.Fatalf("count %s = %d, want 1", k, res.ProcessedCounts[k])
		}
	}
}
