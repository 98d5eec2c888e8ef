package router

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tripmesh/tripmesh/slot"
)

// Pattern is a single fast-path rule: if any of its expressions matches the
// lowercased message, the message routes to Intent without an LLM call.
// SetSlots records slot values implied by the phrasing itself (a "day trip"
// question fixes duration even when no explicit duration was given).
type Pattern struct {
	Intent     Intent            `yaml:"intent"`
	Express    []string          `yaml:"patterns"`
	Confidence float64           `yaml:"confidence"`
	SetSlots   map[string]string `yaml:"set_slots,omitempty"`

	compiled []*regexp.Regexp
}

// defaultPatterns are the built-in high-precision carve-outs. Ordering
// matters: earlier patterns win, so refinement phrasings (kid-friendly, day
// trip) come before the generic topic matches they would otherwise lose to.
var defaultPatterns = []Pattern{
	{
		Intent:     IntentDestinations,
		Express:    []string{`\bday.?trips?\b`, `\bday excursions?\b`},
		Confidence: 0.95,
		SetSlots:   map[string]string{slot.Duration: "1 day"},
	},
	{
		Intent:     IntentAttractions,
		Express:    []string{`\bkid.?friendly\b`, `\bchild.?friendly\b`, `\bwith (my )?kids\b`, `\bfamily.?friendly\b`},
		Confidence: 0.95,
		SetSlots:   map[string]string{slot.TravelerProfile: "family with kids"},
	},
	{
		Intent:     IntentWeather,
		Express:    []string{`\bweather\b`, `\bforecast\b`, `\b(will it|is it going to) (rain|snow)\b`, `\bhow (hot|cold|warm)\b`, `\btemperature\b`},
		Confidence: 0.9,
	},
	{
		Intent:     IntentPacking,
		Express:    []string{`\bpack(ing)?\b`, `\bwhat (should|do) i (bring|wear)\b`, `\bpacking list\b`, `\bsuitcase\b`},
		Confidence: 0.9,
	},
	{
		Intent:     IntentPolicy,
		Express:    []string{`\bvisas?\b`, `\bpassports?\b`, `\bentry requirements?\b`, `\bcustoms\b`, `\bvaccinations?\b`, `\btravel insurance\b`},
		Confidence: 0.9,
	},
	{
		Intent:     IntentFlights,
		Express:    []string{`\bflights?\b`, `\bfly(ing)? (to|from)\b`, `\bairfare\b`, `\bplane tickets?\b`},
		Confidence: 0.9,
	},
	{
		Intent:     IntentWebSearch,
		Express:    []string{`\bsearch the web\b`, `\blook it up\b`, `\bgoogle (it|that)\b`, `\bsearch online\b`},
		Confidence: 0.95,
	},
	{
		Intent:     IntentAttractions,
		Express:    []string{`\b(attractions?|museums?|sights?|sightseeing|things to (do|see))\b`, `\bitinerary\b`},
		Confidence: 0.85,
	},
	{
		Intent:     IntentDestinations,
		Express:    []string{`\bwhere (should|can|could) (i|we) go\b`, `\bdestination (ideas|suggestions)\b`, `\brecommend (a|some) (place|city|cities|destination)`},
		Confidence: 0.85,
	},
}

// Registry holds compiled fast-path patterns.
type Registry struct {
	patterns []Pattern
}

// NewRegistry compiles the built-in pattern set.
func NewRegistry() (*Registry, error) {
	return newRegistry(defaultPatterns)
}

// LoadRegistry reads a YAML pattern file replacing the built-in set. The file
// is a list of {intent, patterns, confidence, set_slots} entries.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}

	var patterns []Pattern
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parse pattern file: %w", err)
	}

	return newRegistry(patterns)
}

func newRegistry(patterns []Pattern) (*Registry, error) {
	compiled := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if !p.Intent.IsValid() {
			return nil, fmt.Errorf("pattern references unknown intent %q", p.Intent)
		}
		if p.Confidence <= 0 || p.Confidence > 1 {
			return nil, fmt.Errorf("pattern for %s has confidence %f outside (0,1]", p.Intent, p.Confidence)
		}
		for _, expr := range p.Express {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("pattern %q for %s: %w", expr, p.Intent, err)
			}
			p.compiled = append(p.compiled, re)
		}
		compiled = append(compiled, p)
	}
	return &Registry{patterns: compiled}, nil
}

// Match returns the first pattern hit for the message, or nil when no
// fast-path rule applies.
func (r *Registry) Match(message string) *Result {
	lowered := strings.ToLower(message)
	for _, p := range r.patterns {
		for _, re := range p.compiled {
			if !re.MatchString(lowered) {
				continue
			}
			slots := map[string]string{}
			for k, v := range p.SetSlots {
				slots[k] = v
			}
			return &Result{
				Intent:     p.Intent,
				Confidence: p.Confidence,
				Source:     "regex",
				Slots:      slots,
			}
		}
	}
	return nil
}
