package dialog

import (
	"errors"
	"fmt"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/handler"
	"github.com/tripmesh/tripmesh/slot"
)

// dispatchStage hands the turn to the intent's handler and emits its reply.
// A handler signalling ErrNeedsWebSearch converts into a consent offer
// rather than an answer, and any slots the handler deduced are staged for
// persistence.
type dispatchStage struct {
	handlers *handler.Registry
}

func (s *dispatchStage) Name() string { return "dispatch" }

func (s *dispatchStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	h, ok := s.handlers.Get(string(turn.Route.Intent))
	if !ok {
		return offerWebSearch(tc, turn, fmt.Sprintf("no handler for intent %q", turn.Route.Intent))
	}

	resp, err := h.Handle(tc.Context, handler.Request{
		Message: turn.Message,
		Slots:   turn.Merged,
	})
	if errors.Is(err, handler.ErrNeedsWebSearch) {
		return offerWebSearch(tc, turn, "outside the local knowledge table")
	}
	if err != nil {
		return false, fmt.Errorf("handler %s: %w", h.Name(), err)
	}

	if len(resp.SlotDelta) > 0 {
		tc.ApplySlotDelta(slot.CleanDelta(resp.SlotDelta))
	}

	for k, v := range turn.Merged {
		turn.Receipt.UseSlot(k, v)
	}
	turn.Receipt.Sources = append(turn.Receipt.Sources, resp.Sources...)
	turn.Receipt.Decision = "answered via " + h.Name()

	return true, tc.EmitEvent(replyEvent(tc, turn, resp.Text))
}
