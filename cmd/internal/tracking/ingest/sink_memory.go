package ingest

import (
	"context"
	"sync"
	"time"
)

// MemorySink collects written observations in slices; tests inspect
// them directly.
type MemorySink struct {
	mu sync.Mutex

	Activities    []ActivityEvent
	AppUsages     []AppUsage
	Metrics       []SystemMetric
	SessionEvents []SessionEvent
	AFKPeriods    []AFKPeriod
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) InsertActivityEvent(_ context.Context, e ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Activities = append(s.Activities, e)
	return nil
}

func (s *MemorySink) InsertAppUsage(_ context.Context, u AppUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AppUsages = append(s.AppUsages, u)
	return nil
}

func (s *MemorySink) InsertSystemMetric(_ context.Context, m SystemMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metrics = append(s.Metrics, m)
	return nil
}

func (s *MemorySink) InsertSessionEvent(_ context.Context, e SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SessionEvents = append(s.SessionEvents, e)
	return nil
}

func (s *MemorySink) OpenAFK(_ context.Context, p AFKPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.AFKPeriods {
		if have.SessionID == p.SessionID && have.EndTime == nil {
			return nil
		}
	}
	s.AFKPeriods = append(s.AFKPeriods, p)
	return nil
}

func (s *MemorySink) CloseAFK(_ context.Context, sessionID string, at time.Time, by *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.AFKPeriods {
		p := &s.AFKPeriods[i]
		if p.SessionID == sessionID && p.EndTime == nil && p.StartTime.Before(at) {
			end := at
			p.EndTime = &end
			p.Audit.UpdatedAt = at
			p.Audit.UpdatedBy = by
		}
	}
	return nil
}
