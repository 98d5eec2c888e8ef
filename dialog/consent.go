package dialog

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/router"
	"github.com/tripmesh/tripmesh/slot"
)

var (
	affirmWords = []string{"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "please", "absolutely", "definitely", "go"}
	denyWords   = []string{"no", "nope", "nah", "don't", "dont", "stop", "never", "cancel", "skip"}
)

// consentReply classifies a message as an answer to a pending yes/no question.
type consentReply int

const (
	consentAmbiguous consentReply = iota
	consentYes
	consentNo
)

// parseConsent reads a yes/no answer from free text. A message containing
// both affirmation and denial words counts as ambiguous.
func parseConsent(message string) consentReply {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(message)))
	yes := lo.Some(words, affirmWords)
	no := lo.Some(words, denyWords)
	switch {
	case yes && !no:
		return consentYes
	case no && !yes:
		return consentNo
	default:
		return consentAmbiguous
	}
}

// consentStage resolves an open consent question before anything else is
// routed. A "yes" resumes the stashed query under the asked intent, a "no"
// drops it, and an ambiguous answer re-asks exactly once before giving up so
// the thread can never get stuck waiting.
type consentStage struct{}

func (s *consentStage) Name() string { return "consent" }

func (s *consentStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	intent, ok := slot.PendingConsentIntent(tc.Thread.SlotSnapshot())
	if !ok {
		return false, nil
	}

	pending, _ := tc.GetSlot(slot.PendingQueryKey(intent))

	switch parseConsent(turn.Message) {
	case consentYes:
		clearConsentFlow(tc, intent)
		if pending != "" {
			turn.Message = pending
		}
		turn.ForcedIntent = router.Intent(intent)
		return false, nil

	case consentNo:
		clearConsentFlow(tc, intent)
		turn.Receipt = core.NewReceipt(tc.TurnID, intent, 1.0, "consent")
		turn.Receipt.Decision = "declined " + intent
		return true, tc.EmitEvent(replyEvent(tc, turn, "No problem, I'll leave that alone. What else can I help with?"))

	default:
		askedKey := slot.ConsentAskedKey(intent)
		if _, reasked := tc.GetSlot(askedKey); reasked {
			// Second ambiguous answer: stop asking and treat the message as
			// a fresh turn.
			clearConsentFlow(tc, intent)
			return false, nil
		}
		tc.SetSlot(askedKey, "true")
		turn.Receipt = core.NewReceipt(tc.TurnID, intent, 1.0, "consent")
		turn.Receipt.Decision = "re-asked for consent"
		text := fmt.Sprintf("Sorry, I want to be sure before I go ahead: should I run that %s lookup? A simple yes or no works.", intent)
		return true, tc.EmitEvent(replyEvent(tc, turn, text))
	}
}

// clearConsentFlow stages removal of every control key of a consent handshake.
func clearConsentFlow(tc *core.TurnContext, intent string) {
	for _, k := range slot.ConsentFlowKeys(intent) {
		tc.DropSlot(k)
	}
}

// offerWebSearch opens the web-search consent handshake: it stashes the
// query, raises the awaiting flag and asks the user. Used both for
// low-confidence routes and for policy questions outside the local table.
func offerWebSearch(tc *core.TurnContext, turn *Turn, reason string) (bool, error) {
	tc.SetSlot(slot.ConsentKey(string(router.IntentWebSearch)), "true")
	tc.SetSlot(slot.PendingQueryKey(string(router.IntentWebSearch)), turn.Message)

	if turn.Receipt == nil {
		turn.Receipt = core.NewReceipt(tc.TurnID, string(router.IntentWebSearch), 0, "heuristic")
	}
	turn.Receipt.Decision = "offered web search: " + reason

	text := "I'm not sure I can answer that from what I know. Want me to search the web for it? (yes/no)"
	return true, tc.EmitEvent(replyEvent(tc, turn, text))
}
