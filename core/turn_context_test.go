package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func newTestTurnContext(emit chan Event) *TurnContext {
	th := NewThread("t1")
	th.SetSlot("city", "Lisbon")
	return NewTurnContext(context.Background(), "t1", "turn-1", NewUserText("hi"), emit, nil, th, nil, nil, nil)
}

func TestTurnContext_SlotStaging(t *testing.T) {
	tc := newTestTurnContext(nil)

	if v, ok := tc.GetSlot("city"); !ok || v != "Lisbon" {
		t.Fatalf("expected persisted value fallthrough, got %q %v", v, ok)
	}

	tc.SetSlot("city", "Porto")
	if v, _ := tc.GetSlot("city"); v != "Porto" {
		t.Fatal("staged delta should shadow persisted value")
	}

	// staging must not touch the thread until commit/emit
	if v, _ := tc.Thread.Slot("city"); v != "Lisbon" {
		t.Fatal("thread should be untouched before commit")
	}
}

func TestTurnContext_EmitMergesStagedDelta(t *testing.T) {
	emit := make(chan Event, 1)
	tc := newTestTurnContext(emit)

	tc.SetSlot("season", "summer")
	tc.DropSlot("awaiting_websearch_consent")

	if err := tc.EmitEvent(NewMessageEvent("assistant", "ok")); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	ev := <-emit
	if ev.Actions.SlotDelta["season"] != "summer" {
		t.Errorf("staged delta not merged into event: %+v", ev.Actions)
	}
	if len(ev.Actions.RemoveSlots) != 1 || ev.Actions.RemoveSlots[0] != "awaiting_websearch_consent" {
		t.Errorf("staged removals not merged: %+v", ev.Actions)
	}
	if len(tc.SlotDelta) != 0 || len(tc.DropSlots) != 0 {
		t.Error("buffers should be cleared after emit")
	}
}

func TestTurnContext_CloneIsolatesBuffers(t *testing.T) {
	tc := newTestTurnContext(nil)
	tc.SetSlot("city", "Porto")

	clone := tc.Clone()
	clone.SetSlot("season", "winter")

	if _, ok := tc.SlotDelta["season"]; ok {
		t.Error("clone mutation leaked into parent")
	}
	if clone.SlotDelta["city"] != "Porto" {
		t.Error("clone should inherit parent's staged delta")
	}
}

func TestTurnContext_ConcurrentSlotStaging(t *testing.T) {
	tc := newTestTurnContext(nil)

	// Parallel tool calls stage slots through the same turn context.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			toolCtx := NewToolContext(tc, fmt.Sprintf("fc-%d", n))
			for j := 0; j < 50; j++ {
				toolCtx.SetSlot(fmt.Sprintf("slot_%d", n), "v")
				toolCtx.GetSlot("city")
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if v, _ := tc.GetSlot(fmt.Sprintf("slot_%d", i)); v != "v" {
			t.Fatalf("slot_%d missing after concurrent staging", i)
		}
	}
}

func TestToolContext_SetSlotDualWrite(t *testing.T) {
	tc := newTestTurnContext(nil)
	tc.Handler = HandlerInfo{Name: "weather", Type: "intent"}

	toolCtx := NewToolContext(tc, "fc-1")
	toolCtx.SetSlot("forecast_days", "3")

	if v, _ := tc.GetSlot("forecast_days"); v != "3" {
		t.Error("tool slot write should be visible on turn context")
	}

	var ev Event
	toolCtx.InternalApplyActions(&ev)
	if ev.Actions.SlotDelta["forecast_days"] != "3" {
		t.Error("tool slot write should be applied to event actions")
	}

	if !toolCtx.IsValid() {
		t.Error("tool context should be valid")
	}
}
