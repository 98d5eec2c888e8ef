package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/dialog"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/session"
)

// Config defines tuning parameters for the engine's operational behavior.
type Config struct {
	// MaxConcurrentTurns limits how many turns may execute simultaneously
	// across all threads. 0 means unlimited.
	MaxConcurrentTurns int

	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int
}

// DefaultConfig provides production-ready defaults.
var DefaultConfig = Config{
	MaxConcurrentTurns: 10,
	EventBufferSize:    100,
}

// Options configures an Engine instance.
type Options struct {
	Config Config

	// Store manages thread persistence. Defaults to the in-memory
	// implementation.
	Store core.ThreadStore

	// Limiter throttles outbound model calls across all turns. Nil means
	// unthrottled.
	Limiter *core.ModelLimiter

	Logger logging.Logger

	// Callbacks hook into the turn lifecycle. Optional.
	Callbacks *CallbackManager
}

// WithStore sets the thread store.
func WithStore(store core.ThreadStore) func(o *Options) {
	return func(o *Options) { o.Store = store }
}

// WithLimiter sets the shared model rate limiter.
func WithLimiter(l *core.ModelLimiter) func(o *Options) {
	return func(o *Options) { o.Limiter = l }
}

// WithLogger sets the structured logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithConfig overrides the operational configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithCallbacks sets the lifecycle callback manager.
func WithCallbacks(cm *CallbackManager) func(o *Options) {
	return func(o *Options) { o.Callbacks = cm }
}

// Engine coordinates turn execution: persistence, pipeline invocation, event
// action application and streaming delivery.
type Engine struct {
	store     core.ThreadStore
	pipeline  *dialog.Pipeline
	limiter   *core.ModelLimiter
	logger    logging.Logger
	callbacks *CallbackManager
	config    Config

	// Active turn tracking for explicit cancellation.
	activeTurns map[string]context.CancelFunc
	turnsMu     sync.Mutex

	// Semaphore enforcing MaxConcurrentTurns; nil when unlimited.
	slots chan struct{}
}

// New creates an Engine around a dialog pipeline. The in-memory thread store
// and a no-op logger are used unless overridden.
func New(pipeline *dialog.Pipeline, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Store:     session.NewInMemoryStore(),
		Logger:    logging.NoOpLogger{},
		Callbacks: NewCallbackManager(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var slots chan struct{}
	if opts.Config.MaxConcurrentTurns > 0 {
		slots = make(chan struct{}, opts.Config.MaxConcurrentTurns)
	}

	return &Engine{
		store:       opts.Store,
		pipeline:    pipeline,
		limiter:     opts.Limiter,
		logger:      opts.Logger,
		callbacks:   opts.Callbacks,
		config:      opts.Config,
		activeTurns: make(map[string]context.CancelFunc),
		slots:       slots,
	}
}

// Chat starts a turn asynchronously and returns channels streaming its
// events. The thread is created on first contact. The returned turn ID can
// cancel the turn via StopTurn.
//
// The events channel closes when the turn completes; a terminal error, if
// any, arrives on the errors channel.
func (e *Engine) Chat(
	ctx context.Context,
	threadID string,
	message string,
) (string, <-chan core.Event, <-chan error, error) {
	// Stores create the thread on first contact.
	thread, err := e.store.Get(threadID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("get thread: %w", err)
	}

	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
		case <-ctx.Done():
			return "", nil, nil, ctx.Err()
		}
	}
	release := func() {
		if e.slots != nil {
			<-e.slots
		}
	}

	turnID := uuid.NewString()

	// The previous user message must be captured before the new one is
	// appended: context-switch detection compares against it.
	prevMessage := thread.LastUserMessage()

	userContent := core.NewUserText(message)
	userEvent := core.NewUserContentEvent(turnID, &userContent)
	if err := e.store.AppendEvent(threadID, userEvent); err != nil {
		release()
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}
	if thread, err = e.store.Get(threadID); err != nil {
		release()
		return "", nil, nil, fmt.Errorf("reload thread: %w", err)
	}

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	pipelineEmit := make(chan core.Event, e.config.EventBufferSize)
	resumeCh := make(chan struct{}, 1)

	turnCtx, cancel := context.WithCancel(ctx)

	e.turnsMu.Lock()
	e.activeTurns[turnID] = cancel
	e.turnsMu.Unlock()

	// Scope the logger to this thread/turn when the implementation supports it.
	turnLogger := e.logger
	if tl, ok := turnLogger.(*logging.TripLogger); ok {
		turnLogger = tl.WithThread(threadID, turnID)
	}

	tc := core.NewTurnContext(
		turnCtx,
		threadID,
		turnID,
		userContent,
		pipelineEmit,
		resumeCh,
		thread,
		e.store,
		e.limiter,
		turnLogger,
	)

	go func() {
		defer func() {
			close(pipelineEmit)
			e.turnsMu.Lock()
			delete(e.activeTurns, turnID)
			e.turnsMu.Unlock()
			release()
		}()

		if err := e.runTurn(tc, message, prevMessage); err != nil {
			select {
			case <-turnCtx.Done():
			case errorsCh <- fmt.Errorf("turn execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
		}()
		e.processEvents(turnCtx, threadID, pipelineEmit, resumeCh, eventsCh, errorsCh)
	}()

	return turnID, eventsCh, errorsCh, nil
}

// ChatSync runs a turn to completion and returns every event it produced.
func (e *Engine) ChatSync(ctx context.Context, threadID, message string) (string, []core.Event, error) {
	turnID, eventsCh, errorsCh, err := e.Chat(ctx, threadID, message)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return turnID, events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return turnID, events, err
				default:
					return turnID, events, nil
				}
			}
			events = append(events, ev)

		case err := <-errorsCh:
			if err != nil {
				return turnID, events, err
			}
		}
	}
}

// StopTurn cancels a running turn by ID.
func (e *Engine) StopTurn(turnID string) error {
	e.turnsMu.Lock()
	cancel, exists := e.activeTurns[turnID]
	e.turnsMu.Unlock()

	if !exists {
		return fmt.Errorf("turn %s not found", turnID)
	}
	cancel()
	return nil
}

// GetThread returns a point-in-time snapshot of a thread.
func (e *Engine) GetThread(threadID string) (*core.Thread, error) {
	return e.store.Get(threadID)
}

// ClearThread wipes a thread's slots, events and receipt.
func (e *Engine) ClearThread(threadID string) error {
	return e.store.Clear(threadID)
}

func (e *Engine) runTurn(tc *core.TurnContext, message, prevMessage string) error {
	if tl, ok := tc.Logger().(*logging.TripLogger); ok {
		defer tl.StartTimer("turn")()
	}

	if err := e.callbacks.Run(tc.Context, CallbackBeforeTurn, &CallbackContext{TurnContext: tc}); err != nil {
		return err
	}

	runErr := e.pipeline.Run(tc, message, prevMessage)
	if runErr != nil {
		if tl, ok := tc.Logger().(*logging.TripLogger); ok {
			tl.ErrorWithStack(runErr, "turn execution failed")
		} else {
			tc.LogError("engine.turn_failed", "error", runErr.Error())
		}
		cbErr := e.callbacks.Run(tc.Context, CallbackOnError, &CallbackContext{TurnContext: tc, Err: runErr})
		if cbErr != nil {
			e.logger.Warn("engine.callback_error", "callback", string(CallbackOnError), "error", cbErr.Error())
		}
		return runErr
	}

	return e.callbacks.Run(tc.Context, CallbackAfterTurn, &CallbackContext{TurnContext: tc})
}

// processEvents applies each emitted event's actions, persists finalized
// events, forwards them to the caller and signals resumption.
func (e *Engine) processEvents(
	ctx context.Context,
	threadID string,
	pipelineEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-pipelineEmit:
			if !ok {
				return
			}

			if err := e.applyEventActions(ctx, threadID, ev); err != nil {
				select {
				case <-ctx.Done():
				case errorsCh <- fmt.Errorf("apply event actions: %w", err):
				}
				return
			}

			if !ev.IsPartial() {
				if err := e.store.AppendEvent(threadID, ev); err != nil {
					select {
					case <-ctx.Done():
					case errorsCh <- fmt.Errorf("append event: %w", err):
					}
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case eventsCh <- ev:
				e.logger.Debug("engine.event.delivered", "event_id", ev.ID, "thread_id", threadID)
			}

			if !ev.IsPartial() {
				select {
				case <-ctx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// applyEventActions persists the side-effects encoded in an event's Actions.
// ClearThread wins over slot mutations in the same event: clearing then
// re-applying a delta would resurrect state the pipeline meant to discard.
func (e *Engine) applyEventActions(ctx context.Context, threadID string, ev core.Event) error {
	if ev.Actions.ClearThread != nil && *ev.Actions.ClearThread {
		if err := e.store.Clear(threadID); err != nil {
			return fmt.Errorf("clear thread: %w", err)
		}
		return nil
	}

	if len(ev.Actions.SlotDelta) > 0 {
		if err := e.store.ApplyDelta(threadID, ev.Actions.SlotDelta); err != nil {
			return fmt.Errorf("apply slot delta: %w", err)
		}
		if err := e.callbacks.Run(ctx, CallbackOnSlotChange, &CallbackContext{Event: &ev}); err != nil {
			return err
		}
	}

	if len(ev.Actions.RemoveSlots) > 0 {
		if err := e.store.RemoveSlots(threadID, ev.Actions.RemoveSlots); err != nil {
			return fmt.Errorf("remove slots: %w", err)
		}
	}

	if ev.Actions.Receipt != nil {
		if err := e.store.SetReceipt(threadID, ev.Actions.Receipt); err != nil {
			return fmt.Errorf("set receipt: %w", err)
		}
	}

	return nil
}
