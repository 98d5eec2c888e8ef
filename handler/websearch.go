package handler

import (
	"context"
	"fmt"

	"github.com/tripmesh/tripmesh/client/tavily"
	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
)

const websearchInstructions = `You are a travel assistant summarizing web
search results. Answer the question in 2-4 sentences from the results only,
and mention which numbered source supports each claim like [1]. If the
results do not answer the question, say so.`

// WebSearch answers questions from live Tavily results. The consent
// handshake runs upstream in the dialog pipeline; by the time this handler is
// invoked the user has already said yes.
type WebSearch struct {
	client *tavily.Client
	model  model.Model
}

// NewWebSearch builds the websearch handler.
func NewWebSearch(client *tavily.Client, m model.Model) *WebSearch {
	return &WebSearch{client: client, model: m}
}

// Name implements Handler.
func (h *WebSearch) Name() string { return "websearch" }

// Handle implements Handler.
func (h *WebSearch) Handle(ctx context.Context, req Request) (*Response, error) {
	// Without an API key the search can never succeed; answer with guidance
	// instead of a failure so offline deployments stay usable.
	if !h.client.Configured() {
		return &Response{
			Text: "Live web search isn't set up on this deployment, so I can't look that up right now. A quick search on your side should find it.",
		}, nil
	}

	resp, err := h.client.Search(ctx, req.Message, 5)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	prompt := fmt.Sprintf("Question: %s\n\n%s", req.Message, resp.Describe())
	text, err := phrase(ctx, h.model, websearchInstructions, prompt)
	if err != nil {
		return nil, err
	}

	sources := make([]core.SourceRef, 0, len(resp.Results)+1)
	sources = append(sources, core.SourceRef{Service: "tavily", Detail: "query: " + req.Message})
	for _, r := range resp.Results {
		sources = append(sources, core.SourceRef{Service: "web", Detail: r.Title, URL: r.URL})
	}

	return &Response{Text: text, Sources: sources}, nil
}
