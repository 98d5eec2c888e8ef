package core

import "time"

// SourceRef identifies one external fact source consulted during a turn.
// URL is empty for non-web sources (model generations, the policy table).
type SourceRef struct {
	Service string `json:"service"`          // "open-meteo", "tavily", "amadeus", "model", "policy-table"
	Detail  string `json:"detail,omitempty"` // free-form description, e.g. "7-day forecast for Lisbon"
	URL     string `json:"url,omitempty"`
}

// Receipt is the last-turn record of which facts/sources were used and what
// decisions were made. It backs the "/why" introspection feature and is
// overwritten on every turn.
type Receipt struct {
	TurnID      string            `json:"turn_id"`
	Intent      string            `json:"intent"`
	Confidence  float64           `json:"confidence"`
	RouteSource string            `json:"route_source"` // "heuristic", "classifier", "consent", "command"
	SlotsUsed   map[string]string `json:"slots_used,omitempty"`
	Sources     []SourceRef       `json:"sources,omitempty"`
	Decision    string            `json:"decision"` // human-readable summary of the pipeline decision
	CreatedAt   time.Time         `json:"created_at"`
}

// NewReceipt creates a receipt stamped with the current UTC time.
func NewReceipt(turnID, intent string, confidence float64, source string) *Receipt {
	return &Receipt{
		TurnID:      turnID,
		Intent:      intent,
		Confidence:  confidence,
		RouteSource: source,
		SlotsUsed:   map[string]string{},
		CreatedAt:   time.Now().UTC(),
	}
}

// UseSlot records a slot value that contributed to the turn's outcome.
func (r *Receipt) UseSlot(name, value string) {
	if r.SlotsUsed == nil {
		r.SlotsUsed = map[string]string{}
	}
	r.SlotsUsed[name] = value
}

// AddSource appends a consulted fact source.
func (r *Receipt) AddSource(service, detail, url string) {
	r.Sources = append(r.Sources, SourceRef{Service: service, Detail: detail, URL: url})
}
