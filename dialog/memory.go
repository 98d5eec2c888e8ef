package dialog

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/slot"
	"github.com/tripmesh/tripmesh/tool"
)

const memoryInstructions = `You maintain the remembered travel context for a
conversation. Call remember_trip_fact once for each trip fact the user's
latest message explicitly states: destination city, month, concrete dates,
season, trip duration, interest, budget, traveler profile or origin city.
Call get_trip_context first if you need to see what is already known.
Never invent or infer values the user did not state. If the message states
nothing new, call no tools and reply with the single word: noted.`

// memoryStage recovers slot values the regex fast path cannot extract. The
// fast-path patterns only classify intent, so "weather in Lisbon in June"
// would otherwise route correctly but lose both city and month. A single
// model call with the slot tools records any facts stated in the message;
// classifier routes skip this stage because classification already extracts
// slots.
type memoryStage struct {
	model  model.Model
	tools  map[string]tool.Tool
	runner *toolRunner
}

func newMemoryStage(m model.Model) *memoryStage {
	tools := map[string]tool.Tool{}
	for _, t := range []tool.Tool{tool.NewSlotReaderTool(), tool.NewSlotWriterTool()} {
		tools[t.Name()] = t
	}
	return &memoryStage{model: m, tools: tools, runner: newToolRunner(4)}
}

func (s *memoryStage) Name() string { return "slot_memory" }

func (s *memoryStage) Process(tc *core.TurnContext, turn *Turn) (bool, error) {
	if s.model == nil || turn.Route == nil || turn.Route.Source != "regex" {
		return false, nil
	}

	prompt := turn.Message
	if known := slot.Describe(slot.TopicSnapshot(tc.Thread.SlotSnapshot())); known != "" {
		prompt = fmt.Sprintf("Already known: %s\nMessage: %s", known, turn.Message)
	}

	defs := make([]model.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	if err := tc.Limiter.Wait(tc.Context); err != nil {
		return false, err
	}

	start := time.Now()
	final, err := generateFinal(tc, s.model, model.Request{
		Instructions: memoryInstructions,
		Contents:     []core.Content{core.NewUserText(prompt)},
		Tools:        defs,
		MaxTokens:    256,
	})
	if tl, ok := tc.Logger().(*logging.TripLogger); ok {
		tokens := 0
		if err == nil && final.Usage != nil {
			tokens = final.Usage.TotalTokens
		}
		tl.LogModelCall(s.model.Info().Name, tokens, time.Since(start), err == nil, err)
	}
	if err != nil {
		// Extraction is best-effort: a failed model call must not kill the
		// turn, it just leaves slot capture to the user's next answer.
		tc.LogWarn("dialog.slot_memory.failed", "turn_id", tc.TurnID, "error", err.Error())
		return false, nil
	}

	calls := functionCalls(final.Content)
	if len(calls) == 0 {
		return false, nil
	}

	delta := s.runner.run(tc, s.tools, calls)
	for k, v := range slot.CleanDelta(delta) {
		if turn.Route.Slots == nil {
			turn.Route.Slots = map[string]string{}
		}
		turn.Route.Slots[k] = v
	}
	return false, nil
}

// generateFinal drains a model stream and returns the last non-partial
// response.
func generateFinal(tc *core.TurnContext, m model.Model, req model.Request) (*model.Response, error) {
	respCh, errCh := m.Generate(tc.Context, req)

	var final *model.Response
	for r := range respCh {
		if !r.Partial {
			r := r
			final = &r
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if final == nil {
		return nil, fmt.Errorf("model returned no final response")
	}
	return final, nil
}

func functionCalls(c core.Content) []core.FunctionCall {
	var calls []core.FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// toolRunner executes a batch of model-requested tool calls, bounded-parallel
// and panic-safe. One function response event is emitted per call; the
// accumulated slot delta across all calls is returned to the caller.
type toolRunner struct {
	maxParallel int
}

func newToolRunner(maxParallel int) *toolRunner {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &toolRunner{maxParallel: maxParallel}
}

func (r *toolRunner) run(tc *core.TurnContext, tools map[string]tool.Tool, calls []core.FunctionCall) map[string]string {
	delta := map[string]string{}
	if len(calls) == 0 {
		return delta
	}

	maxPar := r.maxParallel
	if maxPar > len(calls) {
		maxPar = len(calls)
	}

	events := make([]core.Event, len(calls))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	for i := range calls {
		if tc.Context.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if tc.Context.Err() != nil {
				return
			}
			events[idx] = r.executeOne(tc, tools, fc)
		}(i, calls[i])
	}
	wg.Wait()

	// Emit in request order so the thread history stays deterministic.
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		for k, v := range ev.Actions.SlotDelta {
			delta[k] = v
		}
		if err := tc.EmitEvent(ev); err != nil {
			tc.LogError("dialog.tool.emit_failed", "turn_id", tc.TurnID, "error", err.Error())
		}
	}
	return delta
}

func (r *toolRunner) executeOne(tc *core.TurnContext, tools map[string]tool.Tool, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(tc, fc.ID)

	start := time.Now()
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("tool %s panicked: %v\n%s", fc.Name, rec, debug.Stack())
				tc.LogError("dialog.tool.panic", "function", fc.Name, "recover", fmt.Sprint(rec))
			}
		}()
		result, err = callTool(tools, toolCtx, fc)
	}()

	tc.LogDebug("dialog.tool.executed",
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent("slot_memory", fc.ID, fc.Name, result, err)
	ev.TurnID = tc.TurnID
	toolCtx.InternalApplyActions(&ev)
	return ev
}

func callTool(tools map[string]tool.Tool, toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, ok := tools[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	argMap := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &argMap); err != nil {
			return nil, fmt.Errorf("unmarshal tool args: %w", err)
		}
	}
	return impl.Call(toolCtx, argMap)
}
