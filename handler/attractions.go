package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
)

const attractionsInstructions = `You are a travel assistant recommending
things to do in a city. Give 4-6 suggestions with one line each. Honor the
traveler profile strictly: family with kids means kid-friendly venues only;
interests narrow the theme. Group indoor options separately if the season
suggests bad weather.`

// Attractions recommends sights and activities for a known city.
type Attractions struct {
	model model.Model
}

// NewAttractions builds the attractions handler.
func NewAttractions(m model.Model) *Attractions {
	return &Attractions{model: m}
}

// Name implements Handler.
func (h *Attractions) Name() string { return "attractions" }

// Handle implements Handler. Requires the city slot.
func (h *Attractions) Handle(ctx context.Context, req Request) (*Response, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", req.Message)
	fmt.Fprintf(&sb, "City: %s\n", req.Slots[slot.City])
	if profile := req.Slots[slot.TravelerProfile]; profile != "" {
		fmt.Fprintf(&sb, "Traveler profile: %s\n", profile)
	}
	if interest := req.Slots[slot.Interest]; interest != "" {
		fmt.Fprintf(&sb, "Interest: %s\n", interest)
	}
	if season := req.Slots[slot.Season]; season != "" {
		fmt.Fprintf(&sb, "Season: %s\n", season)
	}

	text, err := phrase(ctx, h.model, attractionsInstructions, sb.String())
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:    text,
		Sources: []core.SourceRef{{Service: "model", Detail: fmt.Sprintf("attraction suggestions for %s", req.Slots[slot.City])}},
	}, nil
}
