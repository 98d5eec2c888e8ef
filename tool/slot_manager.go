package tool

import (
	"fmt"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/slot"
)

// NewSlotReaderTool exposes the thread's travel context to the model so it
// can answer follow-ups ("pack for there") without re-asking known facts.
func NewSlotReaderTool() *FunctionTool {
	return NewFunctionTool(
		"get_trip_context",
		"Read the travel context remembered for this conversation (city, dates, season, traveler profile).",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			if toolCtx.InternalTurnContext().Thread == nil {
				return map[string]string{}, nil
			}
			return slot.TopicSnapshot(toolCtx.InternalTurnContext().Thread.SlotSnapshot()), nil
		},
	)
}

// NewSlotWriterTool lets the model record a travel fact the user stated.
// Placeholder values are rejected so hallucinated stand-ins never reach
// thread state.
func NewSlotWriterTool() *FunctionTool {
	validKeys := map[string]bool{}
	for _, k := range slot.TopicSlots {
		validKeys[k] = true
	}

	return NewFunctionTool(
		"remember_trip_fact",
		"Remember a travel fact the user explicitly stated, e.g. their destination city or travel month.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Slot name: city, month, dates, season, duration, interest, budget, traveler_profile or origin_city.",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The value as the user stated it.",
				},
			},
			"required": []string{"key", "value"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)

			if !validKeys[key] {
				return nil, NewToolError("remember_trip_fact",
					fmt.Sprintf("unknown slot %q", key), CodeValidation)
			}
			if slot.IsPlaceholder(value) {
				return nil, NewToolError("remember_trip_fact",
					fmt.Sprintf("placeholder value %q rejected", value), CodeValidation)
			}

			toolCtx.SetSlot(key, value)

			return map[string]string{"stored": key}, nil
		},
	)
}
