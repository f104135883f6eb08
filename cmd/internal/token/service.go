package token

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"pulse/cmd/internal/metrics"
	sectoken "pulse/cmd/security/token"
)

// Service is the credential validator the rest of pulse talks to.
// It fronts the persistent store with the four-map cache.
type Service struct {
	cfg   Config
	log   *slog.Logger
	store Store
	cache *cache

	// now is swappable for tests.
	now func() time.Time

	touchWG sync.WaitGroup
	closed  chan struct{}
}

// NewService constructs a Service. Call LoadActive before serving traffic
// and Close at shutdown.
func NewService(cfg Config, log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		store:  store,
		cache:  newCache(),
		now:    func() time.Time { return time.Now().UTC() },
		closed: make(chan struct{}),
	}
}

// Issue mints a fresh credential of the given kind, persists it, and
// returns the token string the client will present.
func (s *Service) Issue(ctx context.Context, typ Type, userID string, data, deviceInfo map[string]any, createdBy *string) (Token, error) {
	if userID == "" {
		return Token{}, ErrInvalidInput
	}

	payload, err := json.Marshal(map[string]any{"user_id": userID, "data": data})
	if err != nil {
		return Token{}, err
	}

	var tokenString string
	switch typ {
	case TypeRefresh:
		tokenString, err = sectoken.NewRefresh(payload)
	case TypeAPI:
		tokenString, err = sectoken.NewAPIKey(payload)
	default:
		tokenString, err = sectoken.New(payload)
	}
	if err != nil {
		return Token{}, err
	}

	now := s.now()
	t := Token{
		TokenID:    tokenString,
		Type:       typ,
		UserID:     userID,
		Data:       data,
		DeviceInfo: deviceInfo,
		ExpiresAt:  now.Add(s.cfg.TTL(typ)),
		CreatedAt:  now,
		CreatedBy:  createdBy,
		UpdatedAt:  now,
		UpdatedBy:  createdBy,
	}
	if err := s.Save(ctx, t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// Save persists a token (upsert) and caches it.
func (s *Service) Save(ctx context.Context, t Token) error {
	if t.TokenID == "" || t.UserID == "" {
		return ErrInvalidInput
	}
	if t.Type == "" {
		t.Type = Classify(t.TokenID, t.Data)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
		t.UpdatedAt = t.CreatedAt
	}
	if err := s.store.Upsert(ctx, t); err != nil {
		return err
	}
	s.cache.put(t)
	return nil
}

// Validate checks a presented credential and returns its data payload.
func (s *Service) Validate(ctx context.Context, tokenString string) (bool, map[string]any) {
	t, ok := s.ValidateFull(ctx, tokenString)
	if !ok {
		return false, nil
	}
	return true, t.Data
}

// ValidateFull is Validate returning the whole token record; the auth
// framework needs the bound user id and kind, not just the data payload.
//
// Cache hit and live: touch last_used_at asynchronously, report valid.
// Cache hit but expired: evict, report invalid.
// Cache miss: consult the store; a live row is cached and reported valid.
func (s *Service) ValidateFull(ctx context.Context, tokenString string) (Token, bool) {
	if tokenString == "" {
		return Token{}, false
	}
	now := s.now()

	if t, ok := s.cache.lookup(tokenString); ok {
		if !t.Valid(now) {
			s.cache.evict(tokenString)
			metrics.TokenValidations.WithLabelValues(string(t.Type), "expired").Inc()
			return Token{}, false
		}
		s.touchAsync(tokenString, now)
		metrics.TokenValidations.WithLabelValues(string(t.Type), "valid").Inc()
		return t, true
	}

	t, err := s.store.Get(ctx, tokenString)
	if err != nil {
		if err != ErrNotFound {
			s.log.Error("token.validate.lookup.fail", "err", err)
		}
		metrics.TokenValidations.WithLabelValues(string(Classify(tokenString, nil)), "unknown").Inc()
		return Token{}, false
	}
	if !t.Valid(now) {
		outcome := "expired"
		if t.Revoked {
			outcome = "revoked"
		}
		metrics.TokenValidations.WithLabelValues(string(t.Type), outcome).Inc()
		return Token{}, false
	}

	s.cache.put(t)
	s.touchAsync(tokenString, now)
	metrics.TokenValidations.WithLabelValues(string(t.Type), "valid").Inc()
	return t, true
}

// touchAsync updates last_used_at off the request path.
func (s *Service) touchAsync(tokenString string, at time.Time) {
	select {
	case <-s.closed:
		return
	default:
	}

	s.touchWG.Add(1)
	go func() {
		defer s.touchWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchLastUsed(ctx, tokenString, at); err != nil {
			s.log.Warn("token.touch.fail", "err", err)
		}
	}()
}

// Revoke marks a token revoked and evicts it from the cache.
func (s *Service) Revoke(ctx context.Context, tokenString, reason string) error {
	if err := s.store.Revoke(ctx, tokenString, reason, s.now()); err != nil {
		return err
	}
	s.cache.evict(tokenString)
	return nil
}

// RevokeAllForUser bulk-revokes a user's credentials and returns the count.
func (s *Service) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	n, err := s.store.RevokeAllForUser(ctx, userID, reason, s.now())
	if err != nil {
		return 0, err
	}
	s.cache.evictUser(userID)
	return n, nil
}

// LoadActive seeds the cache from the database. Called once at startup.
func (s *Service) LoadActive(ctx context.Context) error {
	tokens, err := s.store.LoadActive(ctx, s.now())
	if err != nil {
		return err
	}
	for _, t := range tokens {
		s.cache.put(t)
	}
	s.log.Info("token.cache.seeded", "count", len(tokens))
	return nil
}

// SweepExpired deletes expired rows and evicts their cache entries.
// Idempotent: a second immediate run deletes nothing.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	deleted, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, id := range deleted {
		s.cache.evict(id)
	}
	s.cache.evictExpired(now)
	metrics.TokensSwept.Add(float64(len(deleted)))
	return int64(len(deleted)), nil
}

// RunSweeper runs the expiry sweep at the configured interval until ctx is
// cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.log.Error("token.sweep.fail", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("token.sweep.done", "deleted", n)
			}
		}
	}
}

// Close invalidates the cache and waits for in-flight async touches, so a
// restart always reseeds from the database.
func (s *Service) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	s.touchWG.Wait()
	s.cache.invalidate()
}

// CacheSize reports the number of cached credentials (health endpoint).
func (s *Service) CacheSize() int { return s.cache.size() }
