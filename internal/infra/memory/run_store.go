package memory

import (
	"context"
	"sync"
	"time"

	"qbank-import-service/internal/domain"
)

// RunStore is an in-memory implementation of app.RunRepository.
// Expired runs are dropped lazily on access.
type RunStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.RWMutex
	runs map[string]storedRun
}

type storedRun struct {
	run       domain.ImportRun
	expiresAt time.Time
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		ttl:   ttl,
		clock: time.Now,
		runs:  make(map[string]storedRun),
	}
}

func (s *RunStore) Save(_ context.Context, run domain.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for id, stored := range s.runs {
		if s.expired(stored, now) {
			delete(s.runs, id)
		}
	}
	s.runs[run.ID] = storedRun{run: run, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *RunStore) Get(_ context.Context, id string) (domain.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.runs[id]
	if !ok || s.expired(stored, s.clock()) {
		return domain.ImportRun{}, domain.ErrRunNotFound
	}
	return stored.run, nil
}

func (s *RunStore) expired(stored storedRun, now time.Time) bool {
	return s.ttl > 0 && !stored.expiresAt.After(now)
}
