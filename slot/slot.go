// Package slot defines the vocabulary of conversation slots tracked per
// thread and the helpers for merging, resetting and inspecting them.
//
// Slots are flat string key/values. Topic slots carry travel context (city,
// season, duration, interest). Control slots coordinate multi-turn flows:
// awaiting_<intent>_consent marks an open yes/no question and
// pending_<intent>_query stashes the original message so a "yes" can resume
// it verbatim.
package slot

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Topic slot keys.
const (
	City            = "city"
	Month           = "month"
	Dates           = "dates"
	Season          = "season"
	Duration        = "duration"
	Interest        = "interest"
	Budget          = "budget"
	TravelerProfile = "traveler_profile"
	OriginCity      = "origin_city"
)

// TopicSlots lists every slot carrying travel context, in presentation order.
var TopicSlots = []string{City, Month, Dates, Season, Duration, Interest, Budget, TravelerProfile, OriginCity}

// ConsentKey returns the control slot marking an open consent question for an
// intent ("awaiting_websearch_consent").
func ConsentKey(intent string) string {
	return fmt.Sprintf("awaiting_%s_consent", intent)
}

// PendingQueryKey returns the control slot stashing the deferred query for an
// intent ("pending_websearch_query").
func PendingQueryKey(intent string) string {
	return fmt.Sprintf("pending_%s_query", intent)
}

// ConsentAskedKey returns the control slot recording that consent for an
// intent was already re-asked once, so a second ambiguous reply abandons the
// flow instead of looping.
func ConsentAskedKey(intent string) string {
	return fmt.Sprintf("%s_consent_reasked", intent)
}

// PendingConsentIntent scans slots for an open consent flag and returns the
// intent it belongs to. At most one consent flow is open at a time; if state
// corruption leaves several, the lexicographically first wins for determinism.
func PendingConsentIntent(slots map[string]string) (string, bool) {
	keys := lo.Keys(slots)
	matches := lo.Filter(keys, func(k string, _ int) bool {
		return strings.HasPrefix(k, "awaiting_") && strings.HasSuffix(k, "_consent") && slots[k] == "true"
	})
	if len(matches) == 0 {
		return "", false
	}
	best := lo.Min(matches)
	intent := strings.TrimSuffix(strings.TrimPrefix(best, "awaiting_"), "_consent")
	return intent, true
}

// ConsentFlowKeys returns every control slot participating in the consent
// flow for an intent, for bulk removal when the flow resolves.
func ConsentFlowKeys(intent string) []string {
	return []string{ConsentKey(intent), PendingQueryKey(intent), ConsentAskedKey(intent)}
}

// IsControlKey reports whether a slot key is flow-control state rather than
// travel context.
func IsControlKey(key string) bool {
	return strings.HasPrefix(key, "awaiting_") ||
		strings.HasPrefix(key, "pending_") ||
		strings.HasSuffix(key, "_consent_reasked")
}

// TopicSnapshot extracts only topic slots from a full slot map.
func TopicSnapshot(slots map[string]string) map[string]string {
	out := map[string]string{}
	for _, k := range TopicSlots {
		if v := slots[k]; v != "" {
			out[k] = v
		}
	}
	return out
}

// Merge applies delta onto base with non-empty-wins semantics and returns the
// result without mutating either input.
func Merge(base, delta map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range delta {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Describe renders topic slots as a compact human-readable summary used in
// receipts and prompts ("city=Lisbon season=summer").
func Describe(slots map[string]string) string {
	parts := []string{}
	for _, k := range TopicSlots {
		if v := slots[k]; v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, " ")
}
