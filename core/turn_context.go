package core

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/tripmesh/tripmesh/logging"
)

// HandlerInfo identifies the handler servicing the current turn.
type HandlerInfo struct {
	Name string
	Type string
}

// TurnContext carries execution state and helpers for a single turn. It
// encapsulates the mutable, per-turn scope passed through the dialog pipeline
// and into the intent handler. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (ThreadID, TurnID, Handler info)
//   - Input user Content
//   - Emission / resumption coordination channels
//   - The backing ThreadStore for persistence concerns
//   - A working Thread snapshot and the pending SlotDelta to commit
//
// Slot mutations performed via SetSlot accumulate in SlotDelta until
// CommitSlotDelta or EmitEvent applies them.
type TurnContext struct {
	Context         context.Context
	ThreadID, TurnID string
	Handler         HandlerInfo
	UserContent     Content
	Emit            chan<- Event
	Resume          <-chan struct{}
	ThreadStore     ThreadStore
	Limiter         *ModelLimiter
	Thread          *Thread

	// slotMu guards SlotDelta and DropSlots: tool calls run on parallel
	// goroutines and stage slot mutations through the same buffers.
	slotMu    sync.Mutex
	SlotDelta map[string]string
	DropSlots []string

	*loggerAdapter
}

// NewTurnContext constructs a TurnContext with an empty slot delta buffer.
func NewTurnContext(
	ctx context.Context,
	threadID, turnID string,
	userContent Content,
	emit chan<- Event,
	resume <-chan struct{},
	thread *Thread,
	store ThreadStore,
	limiter *ModelLimiter,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:       ctx,
		ThreadID:      threadID,
		TurnID:        turnID,
		UserContent:   userContent,
		Emit:          emit,
		Resume:        resume,
		Thread:        thread,
		ThreadStore:   store,
		Limiter:       limiter,
		SlotDelta:     map[string]string{},
		DropSlots:     []string{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// GetSlot returns a staged (delta) value if present, else the persisted thread value.
func (tc *TurnContext) GetSlot(k string) (string, bool) {
	tc.slotMu.Lock()
	v, ok := tc.SlotDelta[k]
	tc.slotMu.Unlock()
	if ok {
		return v, true
	}

	if tc.Thread != nil {
		return tc.Thread.Slot(k)
	}

	return "", false
}

// SetSlot stages a slot mutation in the in-memory delta buffer.
func (tc *TurnContext) SetSlot(k, v string) {
	tc.slotMu.Lock()
	tc.SlotDelta[k] = v
	tc.slotMu.Unlock()
}

// ApplySlotDelta merges all pairs from d into the staged SlotDelta.
func (tc *TurnContext) ApplySlotDelta(d map[string]string) {
	tc.slotMu.Lock()
	maps.Copy(tc.SlotDelta, d)
	tc.slotMu.Unlock()
}

// DropSlot stages a slot key for removal on the next emitted event.
func (tc *TurnContext) DropSlot(k string) {
	tc.slotMu.Lock()
	tc.DropSlots = append(tc.DropSlots, k)
	delete(tc.SlotDelta, k)
	tc.slotMu.Unlock()
}

// RefreshThread reloads the thread snapshot from the ThreadStore.
func (tc *TurnContext) RefreshThread() error {
	if tc.ThreadStore == nil {
		return fmt.Errorf("thread store not configured")
	}

	t, err := tc.ThreadStore.Get(tc.ThreadID)
	if err != nil {
		return err
	}

	tc.Thread = t

	return nil
}

// CommitSlotDelta persists the accumulated SlotDelta then clears the buffer.
func (tc *TurnContext) CommitSlotDelta() error {
	tc.slotMu.Lock()
	delta := tc.SlotDelta
	tc.slotMu.Unlock()

	if len(delta) == 0 {
		return nil
	}

	if tc.ThreadStore == nil {
		return fmt.Errorf("thread store not configured")
	}

	if err := tc.ThreadStore.ApplyDelta(tc.ThreadID, delta); err != nil {
		return err
	}

	tc.slotMu.Lock()
	tc.SlotDelta = map[string]string{}
	tc.slotMu.Unlock()

	return nil
}

// History returns all historical events for the thread.
func (tc *TurnContext) History() []Event {
	if tc.Thread == nil {
		return []Event{}
	}

	return tc.Thread.GetEvents()
}

// HandlerName returns the logical handler name for this turn.
func (tc *TurnContext) HandlerName() string { return tc.Handler.Name }

// Clone returns a shallow copy with deep-copied delta buffers.
func (tc *TurnContext) Clone() *TurnContext {
	c := &TurnContext{
		Context:       tc.Context,
		ThreadID:      tc.ThreadID,
		TurnID:        tc.TurnID,
		Handler:       tc.Handler,
		UserContent:   tc.UserContent,
		Emit:          tc.Emit,
		Resume:        tc.Resume,
		ThreadStore:   tc.ThreadStore,
		Limiter:       tc.Limiter,
		Thread:        tc.Thread,
		SlotDelta:     map[string]string{},
		DropSlots:     []string{},
		loggerAdapter: tc.loggerAdapter,
	}

	tc.slotMu.Lock()
	maps.Copy(c.SlotDelta, tc.SlotDelta)
	c.DropSlots = append(c.DropSlots, tc.DropSlots...)
	tc.slotMu.Unlock()

	return c
}

// EmitEvent merges pending slot staging into the event and emits it.
func (tc *TurnContext) EmitEvent(ev Event) error {
	tc.slotMu.Lock()
	if len(tc.SlotDelta) > 0 {
		if ev.Actions.SlotDelta == nil {
			ev.Actions.SlotDelta = map[string]string{}
		}
		for k, v := range tc.SlotDelta {
			ev.Actions.SlotDelta[k] = v
		}
	}

	if len(tc.DropSlots) > 0 {
		ev.Actions.RemoveSlots = append(ev.Actions.RemoveSlots, tc.DropSlots...)
	}
	tc.slotMu.Unlock()

	select {
	case <-tc.Context.Done():
		return tc.Context.Err()
	case tc.Emit <- ev:
	}

	tc.slotMu.Lock()
	tc.SlotDelta = map[string]string{}
	tc.DropSlots = []string{}
	tc.slotMu.Unlock()

	return nil
}

// WaitForResume blocks until Resume signals or context cancellation.
func (tc *TurnContext) WaitForResume() error {
	if tc.Resume == nil {
		return nil
	}

	select {
	case <-tc.Resume:
		return nil
	case <-tc.Context.Done():
		return tc.Context.Err()
	}
}
