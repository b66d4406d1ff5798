// Package checkpoint implements the in-process HITL checkpoint and
// idempotency stores: TTL maps with a cron-driven sweep. Checkpoints are
// short-lived and single-process, so a plain map is enough.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	agentmodels "arxivian/internal/domain/models/agent"
	agentrepo "arxivian/internal/domain/repositories/agent"
)

type entry struct {
	state     *agentmodels.AgentState
	expiresAt time.Time
}

// Store is an in-process, TTL-expiring CheckpointStore. A
// background cron job sweeps expired entries so a long-lived process
// doesn't accumulate abandoned paused turns.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	cron    *cron.Cron
}

var _ agentrepo.CheckpointStore = (*Store)(nil)

// NewStore builds a checkpoint store with the given TTL and starts its
// sweep job. Callers should call Stop on shutdown.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		cron:    cron.New(),
	}
	_, _ = s.cron.AddFunc("@every 1m", s.sweep)
	s.cron.Start()
	return s
}

// Stop halts the sweep job. Safe to call once, at process shutdown.
func (s *Store) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Store) Save(_ context.Context, threadID string, state *agentmodels.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[threadID] = entry{state: state, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *Store) Load(_ context.Context, threadID string) (*agentmodels.AgentState, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[threadID]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.state, true, nil
}

func (s *Store) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.entries, threadID)
	s.mu.Unlock()
	return nil
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
