package status

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps status records in process memory. It is only suitable
// for a single worker, such as the CLI bundle command.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	record  Record
	expires time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry), now: time.Now}
}

// lookup returns the live entry under key, dropping it when expired.
// The caller holds mu.
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := s.records[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.records, key)
		return e, false
	}
	return e, true
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	rec := e.record
	return &rec, nil
}

func (s *MemoryStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.records[key] = memoryEntry{record: *pendingRecord(), expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || e.record.State != StatePending {
		return false, nil
	}
	e.expires = s.now().Add(ttl)
	s.records[key] = e
	return true, nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Fail(ctx context.Context, key string, err error, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = memoryEntry{record: *errorRecord(err), expires: s.now().Add(ttl)}
	return nil
}

var _ Store = (*MemoryStore)(nil)
