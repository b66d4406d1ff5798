package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	agentrepo "arxivian/internal/domain/repositories/agent"
)

// IdempotencyStore is an in-process TTL claim map: a caller
// supplies a key (e.g. an Idempotency-Key header on a mutating endpoint),
// Reserve claims it for ttl, and a second Reserve with the same key fails
// until it expires or is Released.
type IdempotencyStore struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	ttl     time.Duration
	cron    *cron.Cron
}

var _ agentrepo.IdempotencyStore = (*IdempotencyStore)(nil)

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &IdempotencyStore{
		claimed: make(map[string]time.Time),
		ttl:     ttl,
		cron:    cron.New(),
	}
	_, _ = s.cron.AddFunc("@every 1m", s.sweep)
	s.cron.Start()
	return s
}

func (s *IdempotencyStore) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *IdempotencyStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := s.claimed[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.claimed[key] = now.Add(s.ttl)
	return true, nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claimed, key)
	s.mu.Unlock()
	return nil
}

func (s *IdempotencyStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, expiresAt := range s.claimed {
		if now.After(expiresAt) {
			delete(s.claimed, k)
		}
	}
}
