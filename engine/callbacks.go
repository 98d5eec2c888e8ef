package engine

import (
	"context"

	"github.com/tripmesh/tripmesh/core"
)

// CallbackType names a turn lifecycle point where hooks run.
type CallbackType string

const (
	// CallbackBeforeTurn runs before the pipeline processes a message.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn runs after the pipeline completes successfully.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackOnError runs when a turn fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnSlotChange runs after an event's slot delta is persisted.
	CallbackOnSlotChange CallbackType = "on_slot_change"
)

// CallbackContext carries the state available to a hook. Fields are populated
// where they apply: Event only for slot-change hooks, Err only for error
// hooks.
type CallbackContext struct {
	TurnContext *core.TurnContext
	Event       *core.Event
	Err         error
}

// Callback is a turn lifecycle hook. Hooks run synchronously; a returned
// error aborts the turn.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback for one lifecycle
// point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cc *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager holds registered hooks per lifecycle point. Registration is
// not synchronized; register everything before serving turns.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager returns an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback for its declared lifecycle point. Callbacks run
// in registration order.
func (m *CallbackManager) Register(cb Callback) {
	m.callbacks[cb.Type()] = append(m.callbacks[cb.Type()], cb)
}

// Run executes all callbacks registered for a lifecycle point, stopping at
// the first error. A nil manager runs nothing.
func (m *CallbackManager) Run(ctx context.Context, t CallbackType, cc *CallbackContext) error {
	if m == nil {
		return nil
	}
	for _, cb := range m.callbacks[t] {
		if err := cb.Execute(ctx, cc); err != nil {
			return err
		}
	}
	return nil
}
