package router

import (
	"context"

	"github.com/tripmesh/tripmesh/internal/util"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/model"
)

// Options configure a Router.
type Options struct {
	// ConfidenceFloor is the minimum routing confidence; results below it are
	// downgraded to a websearch-consent fallback by the dialog pipeline.
	ConfidenceFloor float64

	// PatternsPath optionally replaces the built-in fast-path patterns with a
	// YAML file.
	PatternsPath string

	Logger logging.Logger
}

// Router combines the regex fast path and the LLM classifier into a single
// Route call. It is stateless across turns; slot context is passed in.
type Router struct {
	registry   *Registry
	classifier *Classifier
	floor      float64
	logger     logging.Logger
}

// New builds a Router around the given model.
func New(m model.Model, optFns ...func(o *Options)) (*Router, error) {
	opts := Options{
		ConfidenceFloor: 0.55,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var registry *Registry
	var err error
	if opts.PatternsPath != "" {
		registry, err = LoadRegistry(opts.PatternsPath)
	} else {
		registry, err = NewRegistry()
	}
	if err != nil {
		return nil, err
	}

	return &Router{
		registry:   registry,
		classifier: NewClassifier(m),
		floor:      opts.ConfidenceFloor,
		logger:     opts.Logger,
	}, nil
}

// ConfidenceFloor exposes the configured routing threshold.
func (r *Router) ConfidenceFloor() float64 { return r.floor }

// routeDecisionLogger is satisfied by logging.TripLogger; richer loggers get
// the structured route-decision record, plain ones fall back to Debug lines.
type routeDecisionLogger interface {
	LogRouteDecision(intent string, confidence float64, source string, missing []string)
}

func (r *Router) logDecision(res *Result) {
	if dl, ok := r.logger.(routeDecisionLogger); ok {
		dl.LogRouteDecision(string(res.Intent), res.Confidence, res.Source, res.Missing)
		return
	}
	r.logger.Debug("route.decision",
		"intent", res.Intent,
		"confidence", res.Confidence,
		"route_source", res.Source,
		"missing", res.Missing,
	)
}

// Route classifies a message. The fast path wins when it matches; otherwise
// the classifier runs with the thread's known slots as context. Missing
// required slots are computed against the union of known slots and the
// freshly extracted ones.
func (r *Router) Route(ctx context.Context, message string, known map[string]string) (*Result, error) {
	// Collapse whitespace so the fast-path regexes see one canonical form.
	message = util.NormalizeSpace(message)

	if res := r.registry.Match(message); res != nil {
		res.Missing = MissingSlots(res.Intent, union(known, res.Slots))
		r.logDecision(res)
		return res, nil
	}

	res, err := r.classifier.Classify(ctx, message, known)
	if err != nil {
		return nil, err
	}

	res.Missing = MissingSlots(res.Intent, union(known, res.Slots))
	r.logDecision(res)

	return res, nil
}

// BelowFloor reports whether a result's confidence falls under the routing
// threshold.
func (r *Router) BelowFloor(res *Result) bool {
	return res.Confidence < r.floor
}

func union(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
