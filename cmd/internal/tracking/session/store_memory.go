package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with transactional semantics good
// enough for tests: InTx clones the state, runs fn against the clone,
// and swaps it in only on success.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := make(map[string]Session, len(m.sessions))
	for k, v := range m.sessions {
		clone[k] = v
	}
	tx := &memTx{sessions: clone}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.sessions = clone
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) CountForPair(_ context.Context, userID, machineID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID && s.MachineID == machineID {
			n++
		}
	}
	return n, nil
}

type memTx struct {
	sessions map[string]Session
}

func (t *memTx) LockPair(context.Context, string, string) error { return nil }

func (t *memTx) Get(_ context.Context, id string) (Session, error) {
	s, ok := t.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (t *memTx) pair(userID, machineID string, keep func(Session) bool) []Session {
	var out []Session
	for _, s := range t.sessions {
		if s.UserID == userID && s.MachineID == machineID && keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (t *memTx) ActiveSessions(_ context.Context, userID, machineID string) ([]Session, error) {
	out := t.pair(userID, machineID, func(s Session) bool { return s.LogoutTime == nil })
	sort.Slice(out, func(i, j int) bool { return out[i].LoginTime.After(out[j].LoginTime) })
	return out, nil
}

func (t *memTx) LatestOnDay(_ context.Context, userID, machineID string, dayStart, dayEnd time.Time) (Session, bool, error) {
	out := t.pair(userID, machineID, func(s Session) bool {
		return !s.LoginTime.Before(dayStart) && s.LoginTime.Before(dayEnd)
	})
	if len(out) == 0 {
		return Session{}, false, nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginTime.After(out[j].LoginTime) })
	return out[0], true, nil
}

func (t *memTx) LatestClosed(_ context.Context, userID, machineID string) (Session, bool, error) {
	out := t.pair(userID, machineID, func(s Session) bool { return s.LogoutTime != nil })
	if len(out) == 0 {
		return Session{}, false, nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogoutTime.After(*out[j].LogoutTime) })
	return out[0], true, nil
}

func (t *memTx) Insert(_ context.Context, s Session) error {
	if _, ok := t.sessions[s.ID]; ok {
		return ErrConflict
	}
	if s.LogoutTime == nil {
		for _, have := range t.sessions {
			if have.UserID == s.UserID && have.MachineID == s.MachineID && have.LogoutTime == nil {
				return ErrConflict
			}
		}
	}
	t.sessions[s.ID] = s
	return nil
}

func (t *memTx) Close(_ context.Context, id string, at time.Time, by *string) error {
	s, ok := t.sessions[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	s.LogoutTime = &at
	s.Audit.UpdatedAt = at
	s.Audit.UpdatedBy = by
	t.sessions[id] = s
	return nil
}

func (t *memTx) Reopen(_ context.Context, id string, now time.Time, by *string) error {
	s, ok := t.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LogoutTime = nil
	s.Audit.UpdatedAt = now
	s.Audit.UpdatedBy = by
	t.sessions[id] = s
	return nil
}

func (t *memTx) SetContinuedBy(_ context.Context, id, successorID string, now time.Time, by *string) error {
	s, ok := t.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.ContinuedBy = &successorID
	s.Audit.UpdatedAt = now
	s.Audit.UpdatedBy = by
	t.sessions[id] = s
	return nil
}
