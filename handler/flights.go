package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tripmesh/tripmesh/client/amadeus"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
)

const flightsInstructions = `You are a travel assistant presenting flight
offers. Summarize the offers conversationally: cheapest first, note stops
and duration. Prices are indicative and change; say so briefly.`

// cityAirports maps common city names to their principal IATA code. Cities
// outside the table need an explicit 3-letter code from the user.
var cityAirports = map[string]string{
	"london": "LON", "paris": "PAR", "new york": "NYC", "tokyo": "TYO",
	"rome": "ROM", "madrid": "MAD", "barcelona": "BCN", "lisbon": "LIS",
	"porto": "OPO", "berlin": "BER", "munich": "MUC", "amsterdam": "AMS",
	"vienna": "VIE", "zurich": "ZRH", "dublin": "DUB", "oslo": "OSL",
	"stockholm": "STO", "copenhagen": "CPH", "athens": "ATH", "istanbul": "IST",
	"dubai": "DXB", "singapore": "SIN", "bangkok": "BKK", "sydney": "SYD",
	"los angeles": "LAX", "san francisco": "SFO", "chicago": "CHI",
	"miami": "MIA", "toronto": "YTO", "sao paulo": "SAO", "mexico city": "MEX",
}

var iataCode = regexp.MustCompile(`^[A-Z]{3}$`)

// resolveAirport turns a slot value into an IATA location code: either the
// value already is a code, or the city table knows it.
func resolveAirport(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if iataCode.MatchString(strings.ToUpper(trimmed)) && len(trimmed) == 3 {
		return strings.ToUpper(trimmed), true
	}
	code, ok := cityAirports[strings.ToLower(trimmed)]
	return code, ok
}

var isoDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Flights looks up flight offers through Amadeus. Requires origin_city, city
// and dates slots (enforced upstream).
type Flights struct {
	client *amadeus.Client
	model  model.Model
}

// NewFlights builds the flights handler.
func NewFlights(client *amadeus.Client, m model.Model) *Flights {
	return &Flights{client: client, model: m}
}

// Name implements Handler.
func (h *Flights) Name() string { return "flights" }

// Handle implements Handler.
func (h *Flights) Handle(ctx context.Context, req Request) (*Response, error) {
	if !h.client.Configured() {
		return &Response{
			Text: "Flight search isn't set up on this deployment, so I can't fetch live offers. An airline or booking site will have current prices for this route.",
		}, nil
	}

	origin, ok := resolveAirport(req.Slots[slot.OriginCity])
	if !ok {
		return &Response{
			Text: fmt.Sprintf("I don't know an airport for %q yet. Could you give me the 3-letter airport code?", req.Slots[slot.OriginCity]),
		}, nil
	}

	destination, ok := resolveAirport(req.Slots[slot.City])
	if !ok {
		return &Response{
			Text: fmt.Sprintf("I don't know an airport for %q yet. Could you give me the 3-letter airport code?", req.Slots[slot.City]),
		}, nil
	}

	date := isoDate.FindString(req.Slots[slot.Dates])
	if date == "" {
		return &Response{
			Text: "What date should I search? A concrete day like 2026-09-10 works best.",
		}, nil
	}

	offers, err := h.client.SearchOffers(ctx, origin, destination, date, 5)
	if err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}
	if len(offers) == 0 {
		return &Response{
			Text:    fmt.Sprintf("I couldn't find offers for %s to %s on %s. Want me to try nearby dates?", origin, destination, date),
			Sources: []core.SourceRef{{Service: "amadeus", Detail: fmt.Sprintf("flight offers %s-%s %s (empty)", origin, destination, date)}},
		}, nil
	}

	prompt := fmt.Sprintf("Question: %s\n\nOffers:\n%s", req.Message, amadeus.DescribeOffers(offers))
	text, err := phrase(ctx, h.model, flightsInstructions, prompt)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:    text,
		Sources: []core.SourceRef{{Service: "amadeus", Detail: fmt.Sprintf("flight offers %s-%s %s", origin, destination, date)}},
	}, nil
}
