// Package store caches fetched evaluation results keyed by id. Entries are
// written only by the result tracker; any number of readers may share them.
// Mutations (delete, re-evaluate, bulk run) invalidate entries so the next
// observation refetches.
package store

import (
	"sync"
	"time"

	"github.com/voxproof/eval-console/internal/result"
)

type entry struct {
	result    *result.EvaluationResult
	fetchedAt time.Time
}

// Store is a thread-safe result cache with a staleness horizon.
type Store struct {
	mu  sync.RWMutex
	ttl time.Duration
	res map[string]entry
}

// New creates a store whose entries count as stale once older than ttl.
// A zero ttl means entries never go stale on their own.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl: ttl,
		res: make(map[string]entry),
	}
}

// Get returns the cached result for id along with whether the entry exists
// and whether it is past the staleness horizon. The returned pointer is
// shared; callers must treat it as read-only.
func (s *Store) Get(id string) (res *result.EvaluationResult, ok, stale bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.res[id]
	if !ok {
		return nil, false, false
	}
	stale = s.ttl > 0 && time.Since(e.fetchedAt) > s.ttl
	return e.result, true, stale
}

// FetchedAt returns when the entry for id was last written.
func (s *Store) FetchedAt(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.res[id]
	if !ok {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Put replaces the cached result for id and stamps it as freshly fetched.
func (s *Store) Put(id string, res *result.EvaluationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.res[id] = entry{result: res, fetchedAt: time.Now()}
}

// Invalidate drops the entries for the given ids. Missing ids are ignored.
func (s *Store) Invalidate(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.res, id)
	}
}

// InvalidateAll drops every cached entry, used after bulk-run mutations.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.res = make(map[string]entry)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.res)
}
