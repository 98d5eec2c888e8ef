package dialog

import (
	"fmt"
	"strings"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/internal/util"
	"github.com/tripmesh/tripmesh/router"
	"github.com/tripmesh/tripmesh/slot"
)

// blankStage rejects messages with no routable content: empty strings,
// punctuation-only input and template placeholders like "<your question>".
type blankStage struct{}

func (s *blankStage) Name() string { return "blank" }

func (s *blankStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	msg := strings.TrimSpace(turn.Message)
	if msg != "" && !slot.IsPlaceholder(msg) && len(util.Tokenize(msg)) > 0 {
		return false, nil
	}

	turn.Receipt = core.NewReceipt(tc.TurnID, string(router.IntentUnknown), 0, "heuristic")
	turn.Receipt.Decision = "empty or placeholder message"
	return true, tc.EmitEvent(replyEvent(tc, turn, "I didn't catch that. Ask me about weather, destinations, packing, attractions, flights or travel rules."))
}

// routeStage resolves the message to an intent. A consent "yes" forces the
// stashed intent; otherwise the router tries its regex fast path and falls
// back to the classifier. Routes below the confidence floor turn into a
// web-search consent offer instead of a guess.
type routeStage struct {
	router *router.Router
}

func (s *routeStage) Name() string { return "route" }

func (s *routeStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	if turn.ForcedIntent != "" {
		turn.Route = &router.Result{
			Intent:     turn.ForcedIntent,
			Confidence: 1.0,
			Source:     "consent",
			Slots:      map[string]string{},
		}
		turn.Receipt = core.NewReceipt(tc.TurnID, string(turn.ForcedIntent), 1.0, "consent")
		return false, nil
	}

	known := slot.TopicSnapshot(tc.Thread.SlotSnapshot())
	res, err := s.router.Route(tc.Context, turn.Message, known)
	if err != nil {
		return false, fmt.Errorf("route: %w", err)
	}
	turn.Route = res
	turn.Receipt = core.NewReceipt(tc.TurnID, string(res.Intent), res.Confidence, res.Source)

	if res.Intent == router.IntentUnknown || s.router.BelowFloor(res) {
		return offerWebSearch(tc, turn, fmt.Sprintf("route confidence %.2f below floor", res.Confidence))
	}
	return false, nil
}

// contextSwitchStage drops stale topic slots when the user pivots to an
// unrelated trip, so a question about Tokyo doesn't inherit Lisbon's month.
type contextSwitchStage struct {
	threshold float64
}

func (s *contextSwitchStage) Name() string { return "context_switch" }

func (s *contextSwitchStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	stored := slot.TopicSnapshot(tc.Thread.SlotSnapshot())
	cs := router.DetectContextSwitch(turn.PrevMessage, turn.Message, stored, turn.Route.Slots, s.threshold)
	if !cs.Switched {
		return false, nil
	}

	for _, k := range cs.DropKeys {
		tc.DropSlot(k)
	}
	if city, ok := turn.Route.Slots[slot.City]; ok {
		turn.Notes = append(turn.Notes, fmt.Sprintf("Sounds like a new trip, so I'm starting fresh for %s.", city))
	}
	turn.Receipt.Decision = fmt.Sprintf("context switch (overlap %.2f), dropped %d stale slots", cs.Overlap, len(cs.DropKeys))
	return false, nil
}

// mergeStage folds the turn's extracted slots into the stored ones
// (non-empty values win, placeholders already filtered) and surfaces
// advisory conflict notes rather than blocking the turn.
type mergeStage struct{}

func (s *mergeStage) Name() string { return "merge" }

func (s *mergeStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	cleaned := slot.CleanDelta(turn.Route.Slots)
	tc.ApplySlotDelta(cleaned)

	stored := slot.TopicSnapshot(tc.Thread.SlotSnapshot())
	for _, k := range tc.DropSlots {
		delete(stored, k)
	}
	turn.Merged = slot.Merge(stored, cleaned)

	turn.Notes = append(turn.Notes, router.CheckConflicts(turn.Message, turn.Merged)...)
	return false, nil
}

// slotQuestions phrases the ask for each slot the handlers can require.
var slotQuestions = map[string]string{
	slot.City:       "Which city are you asking about?",
	slot.OriginCity: "Which city will you be flying from?",
	slot.Dates:      "What dates are you looking at? A concrete date like 2026-09-14 works best.",
	slot.Month:      "Which month are you thinking of?",
	slot.Duration:   "How long is the trip?",
}

// readinessStage checks the routed intent's required slots and asks for the
// first one still missing instead of dispatching an underspecified request.
type readinessStage struct{}

func (s *readinessStage) Name() string { return "readiness" }

func (s *readinessStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	missing := router.MissingSlots(turn.Route.Intent, turn.Merged)
	if len(missing) == 0 {
		return false, nil
	}

	ask := missing[0]
	question, ok := slotQuestions[ask]
	if !ok {
		question = fmt.Sprintf("Could you tell me the %s for this trip?", strings.ReplaceAll(ask, "_", " "))
	}
	turn.Receipt.Decision = "asked for missing slot: " + ask
	for k, v := range turn.Merged {
		turn.Receipt.UseSlot(k, v)
	}
	return true, tc.EmitEvent(replyEvent(tc, turn, question))
}
