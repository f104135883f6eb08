package session

import (
	"context"
	"time"
)

// ChainStats summarizes a continuation chain.
type ChainStats struct {
	TotalSessions int           `json:"total_sessions"`
	FirstLogin    time.Time     `json:"first_login"`
	LastActivity  time.Time     `json:"last_activity"`
	TotalDuration time.Duration `json:"-"`
	TotalGap      time.Duration `json:"-"`
	Span          time.Duration `json:"-"`

	// ContinuityPercent is session time over wall-clock span, 0..100.
	ContinuityPercent float64 `json:"continuity_percent"`
}

// Chain returns the full continuation chain containing id, ordered
// earliest to latest.
//
// The walk is bounded by the pair's total session count and a visited
// set, so a corrupted link cycle terminates instead of looping.
func (e *Engine) Chain(ctx context.Context, id string) ([]Session, error) {
	anchor, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	bound, err := e.store.CountForPair(ctx, anchor.UserID, anchor.MachineID)
	if err != nil {
		return nil, err
	}
	bound++

	visited := map[string]bool{anchor.ID: true}

	// Walk back to the chain head.
	var back []Session
	cur := anchor
	for cur.ContinuedFrom != nil && len(back) < bound {
		prev, err := e.store.GetByID(ctx, *cur.ContinuedFrom)
		if err != nil {
			if err == ErrNotFound {
				break // dangling link, treat current as head
			}
			return nil, err
		}
		if visited[prev.ID] {
			break
		}
		visited[prev.ID] = true
		back = append(back, prev)
		cur = prev
	}

	chain := make([]Session, 0, len(back)+1)
	for i := len(back) - 1; i >= 0; i-- {
		chain = append(chain, back[i])
	}
	chain = append(chain, anchor)

	// Walk forward to the tail.
	cur = anchor
	for cur.ContinuedBy != nil && len(chain) < bound {
		next, err := e.store.GetByID(ctx, *cur.ContinuedBy)
		if err != nil {
			if err == ErrNotFound {
				break
			}
			return nil, err
		}
		if visited[next.ID] {
			break
		}
		visited[next.ID] = true
		chain = append(chain, next)
		cur = next
	}

	return chain, nil
}

// Stats computes chain statistics for the chain containing id.
func (e *Engine) Stats(ctx context.Context, id string) (ChainStats, error) {
	chain, err := e.Chain(ctx, id)
	if err != nil {
		return ChainStats{}, err
	}

	now := e.now().UTC()
	st := ChainStats{
		TotalSessions: len(chain),
		FirstLogin:    chain[0].LoginTime,
	}

	last := chain[len(chain)-1]
	if last.LogoutTime != nil {
		st.LastActivity = *last.LogoutTime
	} else {
		st.LastActivity = now
	}

	for _, s := range chain {
		st.TotalDuration += s.Duration(now)
		if s.TimeSincePreviousSession != nil {
			st.TotalGap += time.Duration(*s.TimeSincePreviousSession) * time.Second
		}
	}

	st.Span = st.LastActivity.Sub(st.FirstLogin)
	if st.Span <= 0 {
		st.ContinuityPercent = 100
	} else {
		st.ContinuityPercent = float64(st.TotalDuration) / float64(st.Span) * 100
		if st.ContinuityPercent > 100 {
			st.ContinuityPercent = 100
		}
	}
	return st, nil
}
