package dialog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tripmesh/tripmesh/core"
)

// commandStage short-circuits slash commands before any routing happens.
// "/why" renders the last receipt; "/clear" wipes the thread state.
type commandStage struct{}

func (s *commandStage) Name() string { return "command" }

func (s *commandStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(turn.Message)) {
	case "/why":
		return true, tc.EmitEvent(replyEvent(tc, turn, renderReceipt(tc.Thread.LastReceipt())))
	case "/clear":
		ev := replyEvent(tc, turn, "Done, I've cleared our conversation. Where are we off to next?")
		clear := true
		ev.Actions.ClearThread = &clear
		return true, tc.EmitEvent(ev)
	}
	return false, nil
}

// renderReceipt formats a receipt for the "/why" command.
func renderReceipt(r *core.Receipt) string {
	if r == nil {
		return "I haven't answered anything yet this conversation, so there's nothing to explain."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's how I handled your last message:\n")
	fmt.Fprintf(&b, "- Intent: %s (confidence %.2f, via %s)\n", r.Intent, r.Confidence, r.RouteSource)
	if len(r.SlotsUsed) > 0 {
		keys := make([]string, 0, len(r.SlotsUsed))
		for k := range r.SlotsUsed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, r.SlotsUsed[k]))
		}
		fmt.Fprintf(&b, "- Trip details I used: %s\n", strings.Join(pairs, ", "))
	}
	for _, src := range r.Sources {
		line := src.Service
		if src.Detail != "" {
			line += ": " + src.Detail
		}
		if src.URL != "" {
			line += " (" + src.URL + ")"
		}
		fmt.Fprintf(&b, "- Source: %s\n", line)
	}
	if r.Decision != "" {
		fmt.Fprintf(&b, "- Outcome: %s\n", r.Decision)
	}
	return strings.TrimRight(b.String(), "\n")
}
