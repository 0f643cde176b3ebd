package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	response  *StoredResponse
	expiresAt time.Time
}

// InMemoryResponseStore implements ResponseStore in process memory.
// State is lost on restart and is not shared between instances.
type InMemoryResponseStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryResponseStore creates the store and starts its cleanup goroutine
func NewInMemoryResponseStore() *InMemoryResponseStore {
	s := &InMemoryResponseStore{
		entries:  make(map[string]memoryEntry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *InMemoryResponseStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return memoryEntry{}, false
	}
	return e, true
}

// Reserve claims key unless a live entry holds it
func (s *InMemoryResponseStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = memoryEntry{expiresAt: s.now().Add(ttl)}
	return true, nil
}

// Get returns a copy of the completed response
func (s *InMemoryResponseStore) Get(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	if e.response == nil {
		return nil, ErrKeyInFlight
	}
	resp := *e.response
	resp.Body = append([]byte(nil), e.response.Body...)
	return &resp, nil
}

// Complete stores resp under key
func (s *InMemoryResponseStore) Complete(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp.Body = append([]byte(nil), resp.Body...)
	s.entries[key] = memoryEntry{response: &resp, expiresAt: s.now().Add(ttl)}
	return nil
}

// Release removes key
func (s *InMemoryResponseStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryResponseStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryResponseStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryResponseStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries, expired ones included until cleanup runs
func (s *InMemoryResponseStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ ResponseStore = (*InMemoryResponseStore)(nil)
