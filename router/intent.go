// Package router classifies free-text messages into travel intents. A
// high-precision regex fast path handles unambiguous phrasings; everything
// else falls through to an LLM classifier returning structured JSON. The
// package also carries the cross-cutting message heuristics: context-switch
// detection and city/season conflict detection.
package router

import (
	"github.com/samber/lo"
	"github.com/tripmesh/tripmesh/slot"
)

// Intent labels a message with the handler family that should serve it.
type Intent string

const (
	IntentWeather      Intent = "weather"
	IntentDestinations Intent = "destinations"
	IntentPacking      Intent = "packing"
	IntentAttractions  Intent = "attractions"
	IntentPolicy       Intent = "policy"
	IntentWebSearch    Intent = "websearch"
	IntentFlights      Intent = "flights"
	IntentUnknown      Intent = "unknown"
)

// Intents lists every routable intent (excludes unknown).
var Intents = []Intent{
	IntentWeather,
	IntentDestinations,
	IntentPacking,
	IntentAttractions,
	IntentPolicy,
	IntentWebSearch,
	IntentFlights,
}

// IsValid reports whether the label names a routable intent.
func (i Intent) IsValid() bool {
	return lo.Contains(Intents, i)
}

// requiredSlots maps each intent to the slots that must be filled before its
// handler runs, in ask-first priority order.
var requiredSlots = map[Intent][]string{
	IntentWeather:      {slot.City},
	IntentPacking:      {slot.City},
	IntentAttractions:  {slot.City},
	IntentFlights:      {slot.OriginCity, slot.City, slot.Dates},
	IntentDestinations: {},
	IntentPolicy:       {},
	IntentWebSearch:    {},
}

// RequiredSlots returns the required slot keys for an intent in priority order.
func RequiredSlots(i Intent) []string {
	return requiredSlots[i]
}

// MissingSlots returns the required slots of intent not present (non-empty)
// in the merged slot view, preserving priority order.
func MissingSlots(i Intent, slots map[string]string) []string {
	return lo.Filter(requiredSlots[i], func(k string, _ int) bool {
		return slots[k] == ""
	})
}

// Result is the outcome of routing a single message. Ephemeral: recomputed
// every turn, never persisted.
type Result struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source"` // "regex", "llm" or "fallback"
	Slots      map[string]string `json:"slots,omitempty"`
	Missing    []string          `json:"missing,omitempty"`
}
