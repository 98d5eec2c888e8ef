package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/tripmesh/tripmesh/core"
)

var safeThreadID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore persists each thread as a JSON document under a directory.
// Suited for single-node deployments that should survive restarts. Writes go
// through a temp file + rename so a crash never leaves a torn document.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thread dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(threadID string) (string, error) {
	if !safeThreadID.MatchString(threadID) {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(s.dir, threadID+".json"), nil
}

// load reads a thread document; missing files yield (nil, nil).
func (s *FileStore) load(threadID string) (*core.Thread, error) {
	p, err := s.path(threadID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read thread %s: %w", threadID, err)
	}

	var th core.Thread
	if err := json.Unmarshal(data, &th); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", threadID, err)
	}
	return &th, nil
}

func (s *FileStore) save(th *core.Thread) error {
	p, err := s.path(th.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(th, "", "  ")
	if err != nil {
		return fmt.Errorf("encode thread %s: %w", th.ID, err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write thread %s: %w", th.ID, err)
	}
	return os.Rename(tmp, p)
}

// mutate loads (or creates) the thread, applies fn, and writes it back.
func (s *FileStore) mutate(threadID string, fn func(*core.Thread)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, err := s.load(threadID)
	if err != nil {
		return err
	}
	if th == nil {
		th = core.NewThread(threadID)
	}

	fn(th)

	return s.save(th)
}

// Get returns an existing thread or creates one lazily.
func (s *FileStore) Get(threadID string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, err := s.load(threadID)
	if err != nil {
		return nil, err
	}
	if th != nil {
		return th, nil
	}

	th = core.NewThread(threadID)
	if err := s.save(th); err != nil {
		return nil, err
	}
	return th, nil
}

// Create forces creation (or reset) of a thread with the given id.
func (s *FileStore) Create(threadID string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	th := core.NewThread(threadID)
	if err := s.save(th); err != nil {
		return nil, err
	}
	return th, nil
}

// AppendEvent adds an event to the thread document.
func (s *FileStore) AppendEvent(threadID string, ev core.Event) error {
	return s.mutate(threadID, func(th *core.Thread) { th.AddEvent(ev) })
}

// ApplyDelta merges a slot delta, non-empty values winning.
func (s *FileStore) ApplyDelta(threadID string, delta map[string]string) error {
	return s.mutate(threadID, func(th *core.Thread) { th.MergeSlots(delta) })
}

// RemoveSlots drops slot keys from the thread.
func (s *FileStore) RemoveSlots(threadID string, keys []string) error {
	return s.mutate(threadID, func(th *core.Thread) { th.RemoveSlots(keys) })
}

// SetReceipt replaces the thread's last-turn receipt.
func (s *FileStore) SetReceipt(threadID string, r *core.Receipt) error {
	return s.mutate(threadID, func(th *core.Thread) { th.SetReceipt(r) })
}

// Clear resets the thread's slots, events and receipt.
func (s *FileStore) Clear(threadID string) error {
	return s.mutate(threadID, func(th *core.Thread) { th.Reset() })
}
