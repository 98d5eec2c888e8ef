package core

import (
	"context"
	"fmt"

	"github.com/tripmesh/tripmesh/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked by a handler. It accumulates EventActions (slot
// deltas, receipt attachments) without directly mutating the underlying
// thread until applied.
type ToolContext struct {
	turnCtx        *TurnContext
	functionCallID string
	handlerInfo    HandlerInfo
	eventActions   EventActions
	valid          bool

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent TurnContext
// and unique functionCallID.
func NewToolContext(turnCtx *TurnContext, functionCallID string) *ToolContext {
	return &ToolContext{
		turnCtx:        turnCtx,
		functionCallID: functionCallID,
		handlerInfo:    turnCtx.Handler,
		eventActions:   EventActions{},
		valid:          true,
		loggerAdapter:  newLoggerAdapter(turnCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.turnCtx.Context }

// ThreadID returns the thread ID associated with the tool invocation.
func (tc *ToolContext) ThreadID() string { return tc.turnCtx.ThreadID }

// TurnID returns the turn ID associated with the tool invocation.
func (tc *ToolContext) TurnID() string { return tc.turnCtx.TurnID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// HandlerName returns the handler name associated with the tool invocation.
func (tc *ToolContext) HandlerName() string { return tc.handlerInfo.Name }

// GetSlot retrieves the slot value associated with the given key.
func (tc *ToolContext) GetSlot(k string) (string, bool) {
	return tc.turnCtx.GetSlot(k)
}

// SetSlot records a slot mutation both on the underlying turn context
// (for immediate visibility) and in the local EventActions delta for emission.
func (tc *ToolContext) SetSlot(k, v string) {
	tc.turnCtx.SetSlot(k, v)
	if tc.eventActions.SlotDelta == nil {
		tc.eventActions.SlotDelta = map[string]string{}
	}

	tc.eventActions.SlotDelta[k] = v
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// AttachSource appends a data-provenance source to the turn's receipt actions.
func (tc *ToolContext) AttachSource(service, detail, url string) {
	if tc.eventActions.Receipt == nil {
		return
	}

	tc.eventActions.Receipt.AddSource(service, detail, url)
}

// ConversationHistory returns conversation history (filtered) for context.
func (tc *ToolContext) ConversationHistory() []Event {
	if tc.turnCtx.Thread == nil {
		return nil
	}

	return tc.turnCtx.Thread.ConversationHistory()
}

// RefreshThread reloads the underlying thread from the ThreadStore.
func (tc *ToolContext) RefreshThread() error {
	return tc.turnCtx.RefreshThread()
}

// EmitEvent sends an event directly without merging accumulated actions.
func (tc *ToolContext) EmitEvent(ev Event) error {
	if tc.turnCtx.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	select {
	case <-tc.turnCtx.Context.Done():
		return tc.turnCtx.Context.Err()
	case tc.turnCtx.Emit <- ev:
	}

	return nil
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if !tc.valid || tc.turnCtx == nil || tc.turnCtx.ThreadID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// IsValid reports whether Validate would succeed (fast path).
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.turnCtx != nil && tc.turnCtx.ThreadID != "" && tc.functionCallID != ""
}

// InternalTurnContext returns the internal turn context.
func (tc *ToolContext) InternalTurnContext() *TurnContext { return tc.turnCtx }

// InternalApplyActions merges accumulated EventActions into the provided event.
// (Used internally by the engine when finalizing tool invocation events.)
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.eventActions.SlotDelta) > 0 {
		if ev.Actions.SlotDelta == nil {
			ev.Actions.SlotDelta = map[string]string{}
		}
		for k, v := range tc.eventActions.SlotDelta {
			ev.Actions.SlotDelta[k] = v
		}
	}

	if len(tc.eventActions.RemoveSlots) > 0 {
		ev.Actions.RemoveSlots = append(ev.Actions.RemoveSlots, tc.eventActions.RemoveSlots...)
	}

	if tc.eventActions.Receipt != nil {
		ev.Actions.Receipt = tc.eventActions.Receipt
	}
}
