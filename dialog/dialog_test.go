package dialog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/dialog"
	"github.com/tripmesh/tripmesh/handler"
	"github.com/tripmesh/tripmesh/internal/testutil"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/router"
	"github.com/tripmesh/tripmesh/session"
)

type stubHandler struct {
	name string
	resp *handler.Response
	err  error
	got  handler.Request
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) Handle(_ context.Context, req handler.Request) (*handler.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type turnEnv struct {
	pipeline *dialog.Pipeline
	thread   *core.Thread
	emit     chan core.Event
	tc       *core.TurnContext
}

func newTurnEnv(t *testing.T, m model.Model, slots map[string]string, handlers ...handler.Handler) *turnEnv {
	t.Helper()

	r, err := router.New(m)
	require.NoError(t, err)
	reg, err := handler.NewRegistry(handlers...)
	require.NoError(t, err)

	store := session.NewInMemoryStore()
	tb := testutil.NewThreadBuilder()
	for k, v := range slots {
		tb.Slot(k, v)
	}
	thread := tb.Build()

	emit := make(chan core.Event, 8)
	tc := core.NewTurnContext(context.Background(), "thread-1", "turn-1",
		core.NewUserText("hi"), emit, nil, thread, store, nil, nil)

	return &turnEnv{
		pipeline: dialog.New(r, reg),
		thread:   thread,
		emit:     emit,
		tc:       tc,
	}
}

// run processes one message and returns the single emitted reply event.
func (e *turnEnv) run(t *testing.T, message, prev string) core.Event {
	t.Helper()
	require.NoError(t, e.pipeline.Run(e.tc, message, prev))
	select {
	case ev := <-e.emit:
		return ev
	default:
		t.Fatal("pipeline emitted no event")
		return core.Event{}
	}
}

func TestWhyCommandRendersReceipt(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), nil)
	r := core.NewReceipt("turn-0", "weather", 0.9, "heuristic")
	r.UseSlot("city", "Lisbon")
	r.AddSource("open-meteo", "7-day forecast for Lisbon", "")
	r.Decision = "answered via weather"
	env.thread.SetReceipt(r)

	ev := env.run(t, "/why", "")
	text := ev.Content.Text()
	assert.Contains(t, text, "weather")
	assert.Contains(t, text, "city=Lisbon")
	assert.Contains(t, text, "open-meteo")
}

func TestWhyCommandWithoutReceipt(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), nil)
	ev := env.run(t, "/why", "")
	assert.Contains(t, ev.Content.Text(), "nothing to explain")
}

func TestClearCommand(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), nil)
	ev := env.run(t, "/clear", "")
	require.NotNil(t, ev.Actions.ClearThread)
	assert.True(t, *ev.Actions.ClearThread)
}

func TestBlankAndPlaceholderMessages(t *testing.T) {
	for _, msg := range []string{"", "   ", "...", "<your question here>"} {
		env := newTurnEnv(t, model.NewMockModel("mock", "test"), nil)
		ev := env.run(t, msg, "")
		assert.Contains(t, ev.Content.Text(), "didn't catch that", "message %q", msg)
	}
}

func TestFastPathDispatch(t *testing.T) {
	h := &stubHandler{
		name: "weather",
		resp: &handler.Response{
			Text:    "Sunny all week in Lisbon.",
			Sources: []core.SourceRef{{Service: "open-meteo", Detail: "7-day forecast"}},
		},
	}
	env := newTurnEnv(t, model.NewMockModel("mock", "test"),
		map[string]string{"city": "Lisbon"}, h)

	ev := env.run(t, "what's the weather like there?", "")

	assert.Equal(t, "Sunny all week in Lisbon.", ev.Content.Text())
	assert.Equal(t, "Lisbon", h.got.Slots["city"])

	require.NotNil(t, ev.Actions.Receipt)
	assert.Equal(t, "weather", ev.Actions.Receipt.Intent)
	assert.Equal(t, "regex", ev.Actions.Receipt.RouteSource)
	assert.Equal(t, "answered via weather", ev.Actions.Receipt.Decision)
	assert.Len(t, ev.Actions.Receipt.Sources, 1)
}

func TestReadinessAsksForMissingCity(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), nil,
		&stubHandler{name: "weather", resp: &handler.Response{Text: "unused"}})

	ev := env.run(t, "what's the weather forecast?", "")

	assert.Contains(t, ev.Content.Text(), "Which city")
	require.NotNil(t, ev.Actions.Receipt)
	assert.Contains(t, ev.Actions.Receipt.Decision, "city")
}

func TestLowConfidenceRouteOffersWebSearch(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddResponse("tell me something interesting",
		`{"intent":"destinations","confidence":0.3,"slots":{}}`)
	env := newTurnEnv(t, m, nil,
		&stubHandler{name: "destinations", resp: &handler.Response{Text: "unused"}})

	ev := env.run(t, "tell me something interesting", "")

	assert.Contains(t, ev.Content.Text(), "search the web")
	assert.Equal(t, "true", ev.Actions.SlotDelta["awaiting_websearch_consent"])
	assert.Equal(t, "tell me something interesting", ev.Actions.SlotDelta["pending_websearch_query"])
}

func TestPolicyMissOffersWebSearch(t *testing.T) {
	h := &stubHandler{name: "policy", err: handler.ErrNeedsWebSearch}
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), nil, h)

	ev := env.run(t, "do I need a visa for Bhutan?", "")

	assert.Contains(t, ev.Content.Text(), "search the web")
	assert.Equal(t, "true", ev.Actions.SlotDelta["awaiting_websearch_consent"])
}

func TestConsentYesResumesPendingQuery(t *testing.T) {
	h := &stubHandler{name: "websearch", resp: &handler.Response{Text: "Here's what I found."}}
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), map[string]string{
		"awaiting_websearch_consent": "true",
		"pending_websearch_query":    "jazz festival dates in Montreux",
	}, h)

	ev := env.run(t, "yes please", "")

	assert.Equal(t, "Here's what I found.", ev.Content.Text())
	assert.Equal(t, "jazz festival dates in Montreux", h.got.Message)
	assert.Contains(t, ev.Actions.RemoveSlots, "awaiting_websearch_consent")
	assert.Contains(t, ev.Actions.RemoveSlots, "pending_websearch_query")
	require.NotNil(t, ev.Actions.Receipt)
	assert.Equal(t, "consent", ev.Actions.Receipt.RouteSource)
}

func TestConsentNoDropsPendingQuery(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), map[string]string{
		"awaiting_websearch_consent": "true",
		"pending_websearch_query":    "something",
	})

	ev := env.run(t, "no thanks", "")

	assert.Contains(t, ev.Content.Text(), "No problem")
	assert.Contains(t, ev.Actions.RemoveSlots, "awaiting_websearch_consent")
	assert.Contains(t, ev.Actions.RemoveSlots, "pending_websearch_query")
}

func TestConsentAmbiguousReasksOnce(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), map[string]string{
		"awaiting_websearch_consent": "true",
		"pending_websearch_query":    "something",
	})

	ev := env.run(t, "hmm maybe", "")

	assert.Contains(t, ev.Content.Text(), "yes or no")
	assert.Equal(t, "true", ev.Actions.SlotDelta["websearch_consent_reasked"])
}

func TestConsentSecondAmbiguousAbandonsFlow(t *testing.T) {
	env := newTurnEnv(t, model.NewMockModel("mock", "test"), map[string]string{
		"awaiting_websearch_consent": "true",
		"pending_websearch_query":    "something",
		"websearch_consent_reasked":  "true",
	}, &stubHandler{name: "weather", resp: &handler.Response{Text: "unused"}})

	// Second non-answer abandons the consent flow and routes the message
	// as a fresh turn.
	ev := env.run(t, "anyway, what's the weather forecast?", "")

	assert.Contains(t, ev.Content.Text(), "Which city")
	assert.Contains(t, ev.Actions.RemoveSlots, "awaiting_websearch_consent")
	assert.Contains(t, ev.Actions.RemoveSlots, "pending_websearch_query")
	assert.Contains(t, ev.Actions.RemoveSlots, "websearch_consent_reasked")
}

func TestContextSwitchDropsStaleSlots(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddResponse("Known context: city=Lisbon month=June\nMessage: how about tokyo instead",
		`{"intent":"attractions","confidence":0.8,"slots":{"city":"Tokyo"}}`)
	h := &stubHandler{name: "attractions", resp: &handler.Response{Text: "Tokyo has plenty to see."}}
	env := newTurnEnv(t, m, map[string]string{"city": "Lisbon", "month": "June"}, h)

	ev := env.run(t, "how about tokyo instead", "what is the weather in lisbon in june")

	assert.Equal(t, "Tokyo", h.got.Slots["city"])
	_, hasMonth := h.got.Slots["month"]
	assert.False(t, hasMonth, "stale month slot should be dropped on context switch")
	assert.Contains(t, ev.Actions.RemoveSlots, "month")
	assert.Contains(t, ev.Content.Text(), "starting fresh for Tokyo")
}

// toolCallModel always answers with the configured function calls. It stands
// in for a model that uses the slot tools.
type toolCallModel struct {
	calls []core.FunctionCall
}

func (m *toolCallModel) Info() model.Info { return model.Info{Name: "tool-caller", Provider: "test"} }

func (m *toolCallModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	parts := make([]core.Part, 0, len(m.calls))
	for _, fc := range m.calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	respCh <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func newMemoryEnv(t *testing.T, slotModel model.Model, h handler.Handler) *turnEnv {
	t.Helper()

	r, err := router.New(model.NewMockModel("mock", "test"))
	require.NoError(t, err)
	reg, err := handler.NewRegistry(h)
	require.NoError(t, err)

	store := session.NewInMemoryStore()
	thread, err := store.Create("thread-1")
	require.NoError(t, err)

	emit := make(chan core.Event, 8)
	tc := core.NewTurnContext(context.Background(), "thread-1", "turn-1",
		core.NewUserText("hi"), emit, nil, thread, store, nil, nil)

	p := dialog.New(r, reg, func(o *dialog.Options) { o.SlotMemoryModel = slotModel })
	return &turnEnv{pipeline: p, thread: thread, emit: emit, tc: tc}
}

func TestSlotMemoryCapturesFastPathFacts(t *testing.T) {
	slotModel := &toolCallModel{calls: []core.FunctionCall{
		{ID: "fc-1", Name: "remember_trip_fact", Arguments: `{"key":"city","value":"Lisbon"}`},
		{ID: "fc-2", Name: "remember_trip_fact", Arguments: `{"key":"month","value":"June"}`},
	}}
	h := &stubHandler{name: "weather", resp: &handler.Response{Text: "Warm and dry."}}
	env := newMemoryEnv(t, slotModel, h)

	require.NoError(t, env.pipeline.Run(env.tc, "what's the weather in Lisbon in June?", ""))

	var events []core.Event
	for len(env.emit) > 0 {
		events = append(events, <-env.emit)
	}
	require.NotEmpty(t, events)

	// Two tool response events precede the reply.
	responses := 0
	for _, ev := range events {
		responses += len(ev.GetFunctionResponses())
	}
	assert.Equal(t, 2, responses)

	final := events[len(events)-1]
	assert.Equal(t, "Warm and dry.", final.Content.Text())
	assert.Equal(t, "Lisbon", h.got.Slots["city"])
	assert.Equal(t, "June", h.got.Slots["month"])
}

func TestSlotMemoryRejectsUnknownSlot(t *testing.T) {
	slotModel := &toolCallModel{calls: []core.FunctionCall{
		{ID: "fc-1", Name: "remember_trip_fact", Arguments: `{"key":"favorite_color","value":"blue"}`},
	}}
	h := &stubHandler{name: "weather", resp: &handler.Response{Text: "unused"}}
	env := newMemoryEnv(t, slotModel, h)

	require.NoError(t, env.pipeline.Run(env.tc, "what's the weather looking like?", ""))

	var events []core.Event
	for len(env.emit) > 0 {
		events = append(events, <-env.emit)
	}

	// The bad write fails validation, so no city was captured and the final
	// reply asks for one.
	require.NotEmpty(t, events)
	frs := events[0].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.NotEmpty(t, frs[0].Error)
	assert.Contains(t, events[len(events)-1].Content.Text(), "Which city")
}

func TestConflictNotePrepended(t *testing.T) {
	h := &stubHandler{name: "packing", resp: &handler.Response{Text: "Pack light layers."}}
	env := newTurnEnv(t, model.NewMockModel("mock", "test"),
		map[string]string{"city": "Bali"}, h)

	ev := env.run(t, "what should I pack for skiing there?", "")

	text := ev.Content.Text()
	assert.Contains(t, text, "Pack light layers.")
	// Ski gear question against a tropical destination earns an advisory note.
	assert.Contains(t, text, "Bali")
}
