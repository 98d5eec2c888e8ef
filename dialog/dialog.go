// Package dialog implements the turn-processing pipeline: the staged
// decision sequence that interprets commands, resolves open consent
// questions, routes the message to an intent, reconciles slot state, gates on
// readiness and dispatches to the intent handler. Each stage may finish the
// turn by emitting the reply event; otherwise the turn state flows onward.
package dialog

import (
	"fmt"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/handler"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/router"
)

// Turn is the mutable state threaded through the pipeline stages for one
// user message.
type Turn struct {
	// Message is the text being processed. Consent resolution may replace it
	// with the stashed pending query.
	Message string

	// PrevMessage is the previous user message in the thread ("" on the first
	// turn), used by context-switch detection.
	PrevMessage string

	// ForcedIntent short-circuits routing when a consent "yes" resumes a
	// deferred query.
	ForcedIntent router.Intent

	// Route is set by the routing stage.
	Route *router.Result

	// Merged is the post-merge slot view handlers see.
	Merged map[string]string

	// Notes are advisory lines (conflict warnings, context-switch notices)
	// prepended to the reply.
	Notes []string

	// Receipt accumulates the turn's introspection record.
	Receipt *core.Receipt
}

// Stage is one step of the pipeline. Returning done=true means the stage
// emitted the turn's reply and processing stops.
type Stage interface {
	Name() string
	Process(tc *core.TurnContext, turn *Turn) (done bool, err error)
}

// Options configure a Pipeline.
type Options struct {
	// OverlapThreshold is the word-overlap ratio below which a new city
	// triggers a context switch.
	OverlapThreshold float64

	// SlotMemoryModel enables the slot-memory stage: a model pass with the
	// slot tools that captures trip facts the regex fast path cannot
	// extract. Nil disables the stage.
	SlotMemoryModel model.Model

	Logger logging.Logger
}

// Pipeline runs the staged turn sequence. Stages execute in registration
// order; construction wires the canonical order.
type Pipeline struct {
	stages []Stage
	logger logging.Logger
}

// New assembles the canonical pipeline around a router and handler registry.
func New(r *router.Router, handlers *handler.Registry, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		OverlapThreshold: 0.2,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	stages := []Stage{
		&commandStage{},
		&consentStage{},
		&blankStage{},
		&routeStage{router: r},
	}
	if opts.SlotMemoryModel != nil {
		stages = append(stages, newMemoryStage(opts.SlotMemoryModel))
	}
	stages = append(stages,
		&contextSwitchStage{threshold: opts.OverlapThreshold},
		&mergeStage{},
		&readinessStage{},
		&dispatchStage{handlers: handlers},
	)

	return &Pipeline{logger: opts.Logger, stages: stages}
}

// Run processes one user message, emitting reply events through the turn
// context. prevMessage is the prior user message for context-switch
// detection.
func (p *Pipeline) Run(tc *core.TurnContext, message, prevMessage string) error {
	turn := &Turn{Message: message, PrevMessage: prevMessage}

	for _, stage := range p.stages {
		done, err := stage.Process(tc, turn)
		if err != nil {
			p.logger.Error("dialog.stage_error", "stage", stage.Name(), "turn_id", tc.TurnID, "error", err.Error())
			return p.emitFailure(tc, turn, err)
		}
		if done {
			p.logger.Debug("dialog.turn_done", "stage", stage.Name(), "turn_id", tc.TurnID)
			return nil
		}
	}

	return fmt.Errorf("pipeline ended without a terminal stage")
}

// emitFailure converts a stage error into an apologetic reply so the thread
// never goes silent; the error detail lands in the event metadata.
func (p *Pipeline) emitFailure(tc *core.TurnContext, turn *Turn, stageErr error) error {
	if turn.Receipt != nil {
		turn.Receipt.Decision = "error: " + stageErr.Error()
	}

	ev := replyEvent(tc, turn, "Sorry, something went wrong while handling that. Mind trying again?")
	code := "TURN_ERROR"
	msg := stageErr.Error()
	ev.ErrorCode = &code
	ev.ErrorMessage = &msg

	return tc.EmitEvent(ev)
}

// replyEvent builds the final assistant event for the turn, prepending any
// advisory notes and attaching the receipt.
func replyEvent(tc *core.TurnContext, turn *Turn, text string) core.Event {
	full := text
	for i := len(turn.Notes) - 1; i >= 0; i-- {
		full = turn.Notes[i] + "\n\n" + full
	}

	ev := core.NewMessageEvent("assistant", full)
	ev.TurnID = tc.TurnID
	complete := true
	ev.TurnComplete = &complete
	if turn.Receipt != nil {
		ev.Actions.Receipt = turn.Receipt
	}
	return ev
}
