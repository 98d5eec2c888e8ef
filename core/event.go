package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side-effects attached to an Event. All fields are
// optional so absence can be distinguished from zero values. The engine
// interprets these after persistence.
type EventActions struct {
	SlotDelta   map[string]string `json:"slot_delta,omitempty"`   // slot values to merge into the thread
	RemoveSlots []string          `json:"remove_slots,omitempty"` // slot keys to drop (consent flags, stale topic slots)
	Receipt     *Receipt          `json:"receipt,omitempty"`      // replaces the thread's last-turn receipt
	ClearThread *bool             `json:"clear_thread,omitempty"` // explicit thread-clear requested
}

// Event is the primary unit of communication between the dialog pipeline, the
// engine and external clients. After emission it should be treated as
// immutable. It captures:
//   - Correlation (TurnID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Slot / receipt side-effects (Actions)
//   - Error / completion metadata
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events.
type Event struct {
	ID           string            `json:"id"`
	TurnID       string            `json:"turn_id"`
	Author       string            `json:"author"`
	Actions      EventActions      `json:"actions"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      *Content          `json:"content,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`
	ErrorCode    *string           `json:"error_code,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a turn.
// Prefer helper constructors for common semantic categories.
func NewEvent(turnID, author string) Event {
	return Event{
		ID:        NewID(),
		TurnID:    turnID,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Actions:   EventActions{},
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(author, message string) Event {
	e := NewEvent("", author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(turnID, message string) Event {
	e := NewEvent(turnID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(turnID string, content *Content) Event {
	e := NewEvent(turnID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent represents a handler requesting execution of a named tool.
func NewFunctionCallEvent(author, functionName, args string) Event {
	e := NewEvent("", author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{
				FunctionCall: FunctionCall{
					Name:      functionName,
					Arguments: args,
				},
			},
		},
	}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a tool invocation.
func NewFunctionResponseEvent(author, id, functionName string, result interface{}, err error) Event {
	e := NewEvent("", author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent creates a system-authored event carrying an error message.
func NewErrorEvent(turnID, code, message string) Event {
	e := NewEvent(turnID, "system")
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a new UUID-based unique identifier used for event and turn
// tracking throughout the framework.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming fragment that
// will be followed by additional events composing the final assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse implements the heuristic used by higher layers to decide
// when an assistant turn is complete (no pending tool calls/responses, not partial).
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
