package session

import (
	"sync"

	"github.com/tripmesh/tripmesh/core"
)

// InMemoryStore is a volatile ThreadStore storing threads in a process-local
// map. Safe for concurrent access. Each returned thread is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Get returns an existing thread (clone) or creates one lazily.
func (s *InMemoryStore) Get(threadID string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[threadID]; ok {
		return th.Clone(), nil
	}
	return s.createLocked(threadID).Clone(), nil
}

// Create forces the creation (or overwriting) of a thread with the given id.
func (s *InMemoryStore) Create(threadID string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(threadID).Clone(), nil
}

// AppendEvent adds an event to an existing or newly created thread.
func (s *InMemoryStore) AppendEvent(threadID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(threadID).AddEvent(ev)
	return nil
}

// ApplyDelta merges a slot delta into the thread, non-empty values winning.
func (s *InMemoryStore) ApplyDelta(threadID string, delta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(threadID).MergeSlots(delta)
	return nil
}

// RemoveSlots drops slot keys from the thread.
func (s *InMemoryStore) RemoveSlots(threadID string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(threadID).RemoveSlots(keys)
	return nil
}

// SetReceipt replaces the thread's last-turn receipt.
func (s *InMemoryStore) SetReceipt(threadID string, r *core.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(threadID).SetReceipt(r)
	return nil
}

// Clear resets the thread's slots, events and receipt.
func (s *InMemoryStore) Clear(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[threadID]; ok {
		th.Reset()
	}
	return nil
}

func (s *InMemoryStore) getOrCreateLocked(threadID string) *core.Thread {
	if th, ok := s.threads[threadID]; ok {
		return th
	}
	return s.createLocked(threadID)
}

func (s *InMemoryStore) createLocked(threadID string) *core.Thread {
	th := core.NewThread(threadID)
	s.threads[threadID] = th
	return th
}
