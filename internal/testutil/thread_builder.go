package testutil

import (
	"github.com/tripmesh/tripmesh/core"
)

// ThreadBuilder assembles a thread with slots, events and a receipt for
// tests.
type ThreadBuilder struct {
	id      string
	slots   map[string]string
	events  []core.Event
	receipt *core.Receipt
}

// NewThreadBuilder creates a builder with the default thread ID "thread-1".
func NewThreadBuilder() *ThreadBuilder {
	return &ThreadBuilder{id: "thread-1", slots: map[string]string{}}
}

// ID sets the thread ID.
func (b *ThreadBuilder) ID(id string) *ThreadBuilder { b.id = id; return b }

// Slot sets a slot value.
func (b *ThreadBuilder) Slot(key, value string) *ThreadBuilder {
	b.slots[key] = value
	return b
}

// Event appends an event.
func (b *ThreadBuilder) Event(ev core.Event) *ThreadBuilder {
	b.events = append(b.events, ev)
	return b
}

// Exchange appends a user message and the assistant's reply as two events
// sharing a turn ID.
func (b *ThreadBuilder) Exchange(turnID, userMsg, reply string) *ThreadBuilder {
	b.events = append(b.events,
		NewEventBuilder().Turn(turnID).Author("user").UserText(userMsg).Build(),
		NewEventBuilder().Turn(turnID).AssistantText(reply).Build(),
	)
	return b
}

// Receipt sets the last-turn receipt.
func (b *ThreadBuilder) Receipt(r *core.Receipt) *ThreadBuilder {
	b.receipt = r
	return b
}

// Build assembles the thread.
func (b *ThreadBuilder) Build() *core.Thread {
	th := core.NewThread(b.id)
	th.MergeSlots(b.slots)
	for _, ev := range b.events {
		th.AddEvent(ev)
	}
	if b.receipt != nil {
		th.SetReceipt(b.receipt)
	}
	return th
}
