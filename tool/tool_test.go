package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/slot"
)

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	th := core.NewThread("t1")
	th.SetSlot(slot.City, "Lisbon")
	tc := core.NewTurnContext(context.Background(), "t1", "turn-1",
		core.NewUserText("hi"), nil, nil, th, nil, nil, nil)
	return core.NewToolContext(tc, "fc-1")
}

func TestFunctionTool_ValidatesArgs(t *testing.T) {
	ft := NewFunctionTool("echo", "Echo a value",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": "string"},
			},
			"required": []string{"value"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return args["value"], nil
		},
	)

	out, err := ft.Call(newToolContext(t), map[string]any{"value": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = ft.Call(newToolContext(t), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	_, err = ft.Call(newToolContext(t), map[string]any{"value": 42})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_WrapsExecutionErrors(t *testing.T) {
	ft := NewFunctionTool("boom", "Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, errors.New("underlying failure")
		},
	)

	_, err := ft.Call(newToolContext(t), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "underlying failure", toolErr.Message)
}

func TestFunctionTool_ForwardsToolErrors(t *testing.T) {
	custom := NewToolError("custom", "quota exhausted", "RATE_LIMITED")
	ft := NewFunctionTool("custom", "Fails with custom code",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("wrapped: %w", custom)
		},
	)

	_, err := ft.Call(newToolContext(t), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		City string `json:"city" description:"City name"`
		Days int    `json:"days,omitempty"`
	}

	ft := NewFunctionToolFromStruct("forecast", "Look up a forecast", args{},
		func(_ *core.ToolContext, a map[string]any) (any, error) { return a["city"], nil })

	schema := ft.Parameters()
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "days")
	assert.Equal(t, []string{"city"}, schema["required"])
}

func TestSlotReaderTool(t *testing.T) {
	out, err := NewSlotReaderTool().Call(newToolContext(t), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{slot.City: "Lisbon"}, out)
}

func TestSlotWriterTool(t *testing.T) {
	toolCtx := newToolContext(t)

	_, err := NewSlotWriterTool().Call(toolCtx, map[string]any{"key": slot.Month, "value": "October"})
	require.NoError(t, err)
	v, _ := toolCtx.GetSlot(slot.Month)
	assert.Equal(t, "October", v)

	_, err = NewSlotWriterTool().Call(toolCtx, map[string]any{"key": "favorite_color", "value": "blue"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	_, err = NewSlotWriterTool().Call(toolCtx, map[string]any{"key": slot.City, "value": "<city>"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}
