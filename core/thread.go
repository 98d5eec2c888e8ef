package core

import (
	"sync"
	"time"
)

// Thread represents a conversation thread tracking mutable slot state plus an
// ordered event history and the last-turn receipt. It is safe for concurrent
// access.
//
// Contract:
//   - Slot mutations update the Updated timestamp
//   - MergeSlots keeps existing values when the incoming value is empty
//   - GetEvents returns a defensive copy to avoid external mutation
//   - ConversationHistory filters events to user/assistant/tool roles and
//     excludes partial streaming fragments
//   - Clone performs deep copies of maps/slices for safe divergence.
type Thread struct {
	ID      string            `json:"id"`
	Slots   map[string]string `json:"slots"`
	Events  []Event           `json:"events"`
	Receipt *Receipt          `json:"receipt,omitempty"`
	Created time.Time         `json:"created"`
	Updated time.Time         `json:"updated"`
	mu      sync.RWMutex
}

// NewThread creates a new thread with the given ID.
func NewThread(id string) *Thread {
	now := time.Now()
	return &Thread{ID: id, Slots: map[string]string{}, Events: []Event{}, Created: now, Updated: now}
}

// Slot returns the value and existence flag for a slot key.
func (t *Thread) Slot(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.Slots[key]
	return v, ok
}

// SetSlot sets a single slot value updating the Updated timestamp.
func (t *Thread) SetSlot(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Slots == nil {
		t.Slots = map[string]string{}
	}
	t.Slots[key] = value
	t.Updated = time.Now()
}

// MergeSlots merges the provided delta into the slot map. Non-empty incoming
// values overwrite; empty incoming values are dropped so stale state survives
// turns that extract nothing for a slot.
func (t *Thread) MergeSlots(delta map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Slots == nil {
		t.Slots = map[string]string{}
	}
	for k, v := range delta {
		if v == "" {
			continue
		}
		t.Slots[k] = v
	}
	t.Updated = time.Now()
}

// RemoveSlots deletes the given slot keys (used for consent flags and
// context-switch resets).
func (t *Thread) RemoveSlots(keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.Slots, k)
	}
	t.Updated = time.Now()
}

// SlotSnapshot returns a copy of the full slot map.
func (t *Thread) SlotSnapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.Slots))
	for k, v := range t.Slots {
		out[k] = v
	}
	return out
}

// SetReceipt replaces the last-turn receipt.
func (t *Thread) SetReceipt(r *Receipt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Receipt = r
	t.Updated = time.Now()
}

// LastReceipt returns the last-turn receipt (nil before the first turn).
func (t *Thread) LastReceipt() *Receipt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Receipt
}

// AddEvent appends an event to the history updating the Updated timestamp.
func (t *Thread) AddEvent(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Events = append(t.Events, ev)
	t.Updated = time.Now()
}

// GetEvents returns a defensive copy of the full event slice.
func (t *Thread) GetEvents() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	events := make([]Event, len(t.Events))
	copy(events, t.Events)
	return events
}

// ConversationHistory returns filtered events suitable for providing
// conversational context to models (excludes partials and non-conversational roles).
func (t *Thread) ConversationHistory() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	allowed := map[string]bool{"user": true, "assistant": true, "tool": true}
	res := make([]Event, 0, len(t.Events))
	for _, ev := range t.Events {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}
		if ev.Partial != nil && *ev.Partial {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// LastUserMessage returns the text of the most recent non-partial user event
// before the current turn, or "" when the thread has no prior user message.
func (t *Thread) LastUserMessage() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.Events) - 1; i >= 0; i-- {
		ev := t.Events[i]
		if ev.Content == nil || ev.Content.Role != "user" {
			continue
		}
		if ev.Partial != nil && *ev.Partial {
			continue
		}
		return ev.Content.Text()
	}
	return ""
}

// Reset drops all slots, events and the receipt (explicit thread-clear).
func (t *Thread) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Slots = map[string]string{}
	t.Events = []Event{}
	t.Receipt = nil
	t.Updated = time.Now()
}

// Clone returns a deep copy of the thread safe for independent mutation.
func (t *Thread) Clone() *Thread {
	t.mu.RLock()
	defer t.mu.RUnlock()
	clone := &Thread{ID: t.ID, Slots: make(map[string]string, len(t.Slots)), Events: make([]Event, len(t.Events)), Created: t.Created, Updated: t.Updated}
	for k, v := range t.Slots {
		clone.Slots[k] = v
	}
	copy(clone.Events, t.Events)
	if t.Receipt != nil {
		r := *t.Receipt
		clone.Receipt = &r
	}
	return clone
}

// ThreadStore persists threads and their evolving slot state / event history.
type ThreadStore interface {
	Create(id string) (*Thread, error)
	Get(id string) (*Thread, error)
	AppendEvent(threadID string, event Event) error
	ApplyDelta(threadID string, delta map[string]string) error
	RemoveSlots(threadID string, keys []string) error
	SetReceipt(threadID string, r *Receipt) error
	Clear(threadID string) error
}
