package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tripmesh/tripmesh/client/openmeteo"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
)

const weatherInstructions = `You are a travel assistant. Summarize the
forecast data for the user's question in 2-4 friendly sentences. Mention
concrete temperatures and rain only when the data supports it. Do not invent
data beyond what is provided.`

// Weather answers forecast questions via Open-Meteo geocoding + forecast.
type Weather struct {
	client *openmeteo.Client
	model  model.Model
}

// NewWeather builds the weather handler.
func NewWeather(client *openmeteo.Client, m model.Model) *Weather {
	return &Weather{client: client, model: m}
}

// Name implements Handler.
func (h *Weather) Name() string { return "weather" }

// Handle implements Handler. Requires the city slot (enforced upstream by the
// readiness gate).
func (h *Weather) Handle(ctx context.Context, req Request) (*Response, error) {
	city := req.Slots[slot.City]

	loc, err := h.client.Geocode(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("resolve city %q: %w", city, err)
	}

	days := 7
	if d, err := strconv.Atoi(req.Slots["forecast_days"]); err == nil && d > 0 {
		days = d
	}

	fc, err := h.client.Forecast(ctx, loc, days)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Question: %s\n\n%s", req.Message, fc.Describe())
	text, err := phrase(ctx, h.model, weatherInstructions, prompt)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text: text,
		Sources: []core.SourceRef{
			{Service: "open-meteo", Detail: fmt.Sprintf("geocode %s", city)},
			{Service: "open-meteo", Detail: fmt.Sprintf("%d-day forecast for %s, %s", days, loc.Name, loc.Country)},
		},
	}, nil
}
