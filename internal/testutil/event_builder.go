package testutil

import (
	"github.com/tripmesh/tripmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Turn("turn-1").UserText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	author        string
	turnID        string
	id            string
	role          string
	textParts     []string
	funcCalls     []core.FunctionCall
	funcResponses []core.FunctionResponse
	partial       *bool
	turnComplete  *bool
	actions       core.EventActions
}

// NewEventBuilder creates a builder with default author "assistant".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "assistant"} }

// Author sets the author name for the event.
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Turn sets the turn ID associated with the event.
func (b *EventBuilder) Turn(id string) *EventBuilder { b.turnID = id; return b }

// ID overrides the auto-generated event ID.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Partial marks the event as a streaming fragment.
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// TurnComplete sets the turn-completion flag.
func (b *EventBuilder) TurnComplete(c bool) *EventBuilder { b.turnComplete = &c; return b }

// UserText appends a user text part and sets role to user.
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant text part and sets role to assistant.
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = "assistant"
	b.textParts = append(b.textParts, t)
	return b
}

// FunctionCall appends a function call part.
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	if b.role == "" {
		b.role = "assistant"
	}
	b.funcCalls = append(b.funcCalls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// FunctionResponse appends a function response part and sets role to tool.
func (b *EventBuilder) FunctionResponse(id, name string, result any) *EventBuilder {
	b.role = "tool"
	b.funcResponses = append(b.funcResponses, core.FunctionResponse{ID: id, Name: name, Response: result})
	return b
}

// SlotDelta sets one pair on the event's slot delta action.
func (b *EventBuilder) SlotDelta(key, value string) *EventBuilder {
	if b.actions.SlotDelta == nil {
		b.actions.SlotDelta = map[string]string{}
	}
	b.actions.SlotDelta[key] = value
	return b
}

// RemoveSlot appends a key to the event's slot removal action.
func (b *EventBuilder) RemoveSlot(key string) *EventBuilder {
	b.actions.RemoveSlots = append(b.actions.RemoveSlots, key)
	return b
}

// Receipt attaches a receipt action.
func (b *EventBuilder) Receipt(r *core.Receipt) *EventBuilder {
	b.actions.Receipt = r
	return b
}

// Build assembles the event.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.turnID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	ev.Partial = b.partial
	ev.TurnComplete = b.turnComplete
	ev.Actions = b.actions

	var parts []core.Part
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, fc := range b.funcCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	for _, fr := range b.funcResponses {
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	if len(parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}
		ev.Content = &core.Content{Role: role, Parts: parts}
	}
	return ev
}
