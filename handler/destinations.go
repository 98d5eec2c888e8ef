package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
)

const destinationsInstructions = `You are a travel assistant suggesting
destinations. Give 3-5 concrete suggestions with one short reason each.
Respect every constraint in the context (month, season, budget, traveler
profile, trip length). For day trips, only suggest places realistically
reachable from the origin within the day.`

// Destinations suggests places to go from the model, constrained by the
// traveler context accumulated in slots.
type Destinations struct {
	model model.Model
}

// NewDestinations builds the destinations handler.
func NewDestinations(m model.Model) *Destinations {
	return &Destinations{model: m}
}

// Name implements Handler.
func (h *Destinations) Name() string { return "destinations" }

// Handle implements Handler.
func (h *Destinations) Handle(ctx context.Context, req Request) (*Response, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", req.Message)
	if ctxDesc := slot.Describe(req.Slots); ctxDesc != "" {
		fmt.Fprintf(&sb, "Traveler context: %s\n", ctxDesc)
	}
	if req.Slots[slot.Duration] == "1 day" {
		origin := req.Slots[slot.OriginCity]
		if origin == "" {
			origin = req.Slots[slot.City]
		}
		if origin != "" {
			fmt.Fprintf(&sb, "This is a day trip from %s; keep suggestions within a few hours of travel.\n", origin)
		}
	}

	text, err := phrase(ctx, h.model, destinationsInstructions, sb.String())
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:    text,
		Sources: []core.SourceRef{{Service: "model", Detail: "destination suggestions from traveler context"}},
	}, nil
}
