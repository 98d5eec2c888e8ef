package router

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/tripmesh/tripmesh/slot"
)

// Cross-slot sanity checks. These are deliberately narrow: they only flag
// combinations that are almost certainly a mistake, and the note they produce
// is advisory (appended to the reply), never a hard stop.

var winterSportWords = []string{"ski", "skiing", "snowboard", "snowboarding", "snowshoe", "ice skating"}

// tropicalCities is a small curated set; anything not listed is assumed
// compatible with any interest.
var tropicalCities = map[string]bool{
	"bangkok": true, "singapore": true, "bali": true, "denpasar": true,
	"honolulu": true, "miami": true, "cancun": true, "phuket": true,
	"kuala lumpur": true, "manila": true, "havana": true, "san juan": true,
	"rio de janeiro": true, "mombasa": true, "zanzibar": true,
}

var monthSeasons = map[string]string{
	"december": "winter", "january": "winter", "february": "winter",
	"march": "spring", "april": "spring", "may": "spring",
	"june": "summer", "july": "summer", "august": "summer",
	"september": "autumn", "october": "autumn", "november": "autumn",
}

// CheckConflicts inspects the merged slot view plus the raw message and
// returns human-readable clarification notes for contradictory state.
func CheckConflicts(message string, merged map[string]string) []string {
	var notes []string

	lowered := strings.ToLower(message)
	city := strings.ToLower(merged[slot.City])

	wantsWinterSport := lo.SomeBy(winterSportWords, func(w string) bool {
		return strings.Contains(lowered, w) || strings.Contains(strings.ToLower(merged[slot.Interest]), w)
	})
	if wantsWinterSport && tropicalCities[city] {
		notes = append(notes, fmt.Sprintf(
			"Heads up: %s is a tropical destination, so winter sports are unlikely there. Did you mean a different city?",
			merged[slot.City]))
	}

	// Month implying a northern-hemisphere season that contradicts the
	// stored season slot.
	if month, season := strings.ToLower(merged[slot.Month]), strings.ToLower(merged[slot.Season]); month != "" && season != "" {
		if implied, ok := monthSeasons[month]; ok && implied != season {
			notes = append(notes, fmt.Sprintf(
				"You mentioned %s but I have the season as %s. Which should I use?",
				merged[slot.Month], merged[slot.Season]))
		}
	}

	return notes
}
