package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps artifacts in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	redirects map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), redirects: make(map[string]string)}
}

func (s *MemoryStore) Put(ctx context.Context, p string, data []byte) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[p] = append([]byte(nil), data...)
	delete(s.redirects, p)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, p string) ([]byte, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if target, ok := s.redirects[p]; ok {
		p = target
	}
	data, ok := s.objects[p]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Exists(ctx context.Context, p string) (bool, error) {
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, obj := s.objects[p]
	_, redir := s.redirects[p]
	return obj || redir, nil
}

func (s *MemoryStore) Redirect(ctx context.Context, from, to string) error {
	from, err := cleanPath(from)
	if err != nil {
		return err
	}
	if to, err = cleanPath(to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = to
	delete(s.objects, from)
	return nil
}

// Paths returns every object path in sorted order.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RedirectTarget returns the target of the redirect at from.
func (s *MemoryStore) RedirectTarget(from string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	to, ok := s.redirects[from]
	return to, ok
}

var _ Store = (*MemoryStore)(nil)
