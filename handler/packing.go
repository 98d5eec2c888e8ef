package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tripmesh/tripmesh/client/openmeteo"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/internal/util"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
)

const packingInstructions = `You are a travel assistant writing a packing
list. Produce a short grouped list (clothing, gear, documents) tailored to
the destination, season and any forecast data provided. Keep it under 15
items and note anything weather-dependent.`

const packingPrompt = `Question: {{.message}}
Destination: {{default "not stated" .city}}
Travel period: {{default (default "unspecified" .season) .month}}
Traveler context: {{.context}}
`

// Packing builds packing lists. When a near-term forecast is available it is
// blended in; otherwise season and month drive the advice.
type Packing struct {
	weather *openmeteo.Client
	model   model.Model
	logger  logging.Logger
}

// NewPacking builds the packing handler.
func NewPacking(weather *openmeteo.Client, m model.Model, logger logging.Logger) *Packing {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Packing{weather: weather, model: m, logger: logger}
}

// Name implements Handler.
func (h *Packing) Name() string { return "packing" }

func (h *Packing) logClient(op string, dur time.Duration, err error) {
	if tl, ok := h.logger.(*logging.TripLogger); ok {
		tl.LogClientCall("open-meteo", op, dur, err)
		return
	}
	if err != nil {
		h.logger.Warn("packing.client_call_failed", "operation", op, "error", err.Error())
	}
}

// Handle implements Handler. Requires the city slot.
func (h *Packing) Handle(ctx context.Context, req Request) (*Response, error) {
	city := req.Slots[slot.City]
	sources := []core.SourceRef{}

	data := map[string]string{
		"message": req.Message,
		"context": slot.Describe(req.Slots),
	}
	for k, v := range req.Slots {
		data[k] = v
	}
	header, err := util.RenderPrompt(packingPrompt, data)
	if err != nil {
		return nil, fmt.Errorf("build packing prompt: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(header)

	// A live forecast beats season heuristics for trips starting soon. The
	// forecast window is 16 days; beyond that the API has nothing useful, so
	// failures here degrade to season-based advice rather than erroring out.
	start := time.Now()
	loc, geoErr := h.weather.Geocode(ctx, city)
	h.logClient("geocode", time.Since(start), geoErr)
	if geoErr == nil {
		start = time.Now()
		fc, fcErr := h.weather.Forecast(ctx, loc, 7)
		h.logClient("forecast", time.Since(start), fcErr)
		if fcErr == nil {
			sb.WriteString(fc.Describe())
			sources = append(sources, core.SourceRef{
				Service: "open-meteo",
				Detail:  fmt.Sprintf("7-day forecast for %s", loc.Name),
			})
		}
	}

	text, err := phrase(ctx, h.model, packingInstructions, sb.String())
	if err != nil {
		return nil, err
	}

	sources = append(sources, core.SourceRef{Service: "model", Detail: "packing list from traveler context"})

	return &Response{Text: text, Sources: sources}, nil
}
