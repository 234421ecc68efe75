package jobs

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	job       Job
	expiresAt time.Time
}

// MemoryStore keeps jobs in process memory. Records expire ttl after their
// last update.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]memoryEntry
	ttl  time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{jobs: make(map[string]memoryEntry), ttl: ttl}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return e.job, nil
}

func (s *MemoryStore) Set(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = memoryEntry{job: job, expiresAt: job.UpdatedAt.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) ListExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, e := range s.jobs {
		if !now.Before(e.expiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Len returns the number of stored jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
