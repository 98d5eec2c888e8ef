package router

import (
	"github.com/tripmesh/tripmesh/internal/util"
	"github.com/tripmesh/tripmesh/slot"
)

// ContextSwitch is the decision of the topic-change heuristic for one turn.
type ContextSwitch struct {
	Switched bool
	Overlap  float64
	// DropKeys are the stale topic slots to remove before merging new state.
	DropKeys []string
}

// DetectContextSwitch compares the new message against the previous user
// message. A low word-overlap ratio combined with a newly extracted city that
// differs from the stored one means the user changed trips mid-thread: stale
// topic slots (everything except what the new turn extracted) are dropped so
// old context cannot leak into the new topic.
func DetectContextSwitch(prevMessage, message string, stored, extracted map[string]string, overlapThreshold float64) ContextSwitch {
	overlap := util.OverlapRatio(message, prevMessage)

	cs := ContextSwitch{Overlap: overlap}

	if prevMessage == "" || overlap >= overlapThreshold {
		return cs
	}

	newCity := extracted[slot.City]
	if newCity == "" || newCity == stored[slot.City] {
		return cs
	}

	cs.Switched = true
	for _, k := range slot.TopicSlots {
		if stored[k] == "" {
			continue
		}
		if extracted[k] != "" {
			continue // refreshed this turn, keep
		}
		cs.DropKeys = append(cs.DropKeys, k)
	}

	return cs
}
