// Package handler contains the per-intent handlers the dialog pipeline
// dispatches to once routing and the readiness gate have passed. Each handler
// combines external client data with a model call into a natural-language
// reply and reports the sources it consulted for the turn receipt.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
)

// ErrNeedsWebSearch signals that a handler could not answer from its own
// data and the pipeline should offer the web-search consent handshake.
var ErrNeedsWebSearch = errors.New("answer requires a web search")

// Request is the handler input for one turn.
type Request struct {
	Message string
	// Slots is the merged slot view after this turn's extraction.
	Slots map[string]string
}

// Response is a handler's contribution to the turn.
type Response struct {
	Text string
	// Sources name the services/facts consulted, recorded on the receipt.
	Sources []core.SourceRef
	// SlotDelta stages additional slot values derived while handling.
	SlotDelta map[string]string
}

// Handler serves one intent.
type Handler interface {
	// Name returns the intent label this handler serves.
	Name() string

	// Handle produces the reply for a routed message.
	Handle(ctx context.Context, req Request) (*Response, error)
}

// Registry maps intent labels to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry from the given handlers.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: map[string]Handler{}}
	for _, h := range handlers {
		if _, dup := r.handlers[h.Name()]; dup {
			return nil, fmt.Errorf("duplicate handler for intent %q", h.Name())
		}
		r.handlers[h.Name()] = h
	}
	return r, nil
}

// Get returns the handler for an intent label.
func (r *Registry) Get(intent string) (Handler, bool) {
	h, ok := r.handlers[intent]
	return h, ok
}

// Names lists registered intent labels.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	return names
}

// phrase runs a single non-streaming model call turning gathered facts into a
// conversational reply. Shared by every handler.
func phrase(ctx context.Context, m model.Model, instructions, userPrompt string) (string, error) {
	out, err := model.GenerateText(ctx, m, model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewUserText(userPrompt)},
		MaxTokens:    700,
	})
	if err != nil {
		return "", fmt.Errorf("phrase reply: %w", err)
	}
	return out, nil
}
