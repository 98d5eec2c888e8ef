package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
)

const classifierInstructions = `You classify travel-assistant messages.
Pick exactly one intent from:
- weather: forecasts, temperature, rain questions
- destinations: where to go, trip ideas, day trips
- packing: what to pack, bring or wear
- attractions: sights, museums, activities, itineraries in a known place
- policy: visas, passports, entry requirements, customs, vaccinations
- flights: flight offers, airfare, flying between cities
- websearch: anything needing current web information outside the above

Also extract slot values literally mentioned in the message. Valid slot keys:
city, month, dates, season, duration, interest, budget, traveler_profile,
origin_city. Never invent values; omit a key when the message does not state it.

Respond with a single JSON object:
{"intent":"<label>","confidence":<0..1>,"slots":{"<key>":"<value>"}}`

// classification mirrors the JSON object the model is asked to produce.
type classification struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
}

// Classifier routes messages through an LLM when no fast-path pattern
// matches.
type Classifier struct {
	model model.Model
}

// NewClassifier wraps a model as an intent classifier.
func NewClassifier(m model.Model) *Classifier {
	return &Classifier{model: m}
}

// Classify asks the model for an intent label plus extracted slots. Known
// slot context is included so the model resolves references like "there".
func (c *Classifier) Classify(ctx context.Context, message string, known map[string]string) (*Result, error) {
	prompt := message
	if ctxDesc := slot.Describe(known); ctxDesc != "" {
		prompt = fmt.Sprintf("Known context: %s\nMessage: %s", ctxDesc, message)
	}

	raw, err := model.GenerateText(ctx, c.model, model.Request{
		Instructions: classifierInstructions,
		Contents:     []core.Content{core.NewUserText(prompt)},
		JSONOutput:   true,
		MaxTokens:    256,
	})
	if err != nil {
		return nil, fmt.Errorf("classify message: %w", err)
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		return nil, err
	}

	intent := Intent(strings.ToLower(strings.TrimSpace(parsed.Intent)))
	if !intent.IsValid() {
		intent = IntentUnknown
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if intent == IntentUnknown {
		confidence = 0
	}

	return &Result{
		Intent:     intent,
		Confidence: confidence,
		Source:     "llm",
		Slots:      slot.CleanDelta(parsed.Slots),
	}, nil
}

// parseClassification tolerates models that wrap the object in markdown
// fences or prose: it decodes the outermost {...} span.
func parseClassification(raw string) (*classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in classifier output: %q", raw)
	}

	var parsed classification
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode classifier output: %w", err)
	}

	return &parsed, nil
}
