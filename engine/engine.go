package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"streamedit/logger"
	"streamedit/parser"
	"streamedit/session"
	"streamedit/text"
	"streamedit/types"
)

var (
	ErrNoEditor = errors.New("no editor attached")
	ErrStopped  = errors.New("engine stopped")
)

type Engine struct {
	provider  Provider
	editor    Editor
	tracker   Tracker
	clock     Clock
	newParser func() types.Parser

	state     state
	eventChan chan Event
	mu        sync.RWMutex

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	requestID      int64
	stream         *streamState
	session        *session.Session
	highlightTimer Timer
	waitingTimer   Timer

	config EngineConfig
}

func NewEngine(provider Provider, editor Editor, config EngineConfig, clock Clock, tracker Tracker) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if clock == nil {
		clock = SystemClock
	}
	if tracker == nil {
		tracker = noopTracker{}
	}

	return &Engine{
		provider:  provider,
		editor:    editor,
		tracker:   tracker,
		clock:     clock,
		newParser: func() types.Parser { return parser.New() },
		state:     stateIdle,
		eventChan: make(chan Event, 256),
		mainCtx:   context.Background(),
		config:    config,
	}, nil
}

// SetEditor attaches the editor the next requests run against
func (e *Engine) SetEditor(editor Editor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editor = editor
}

// SetParserFactory replaces the token parser used for new requests
func (e *Engine) SetParserFactory(f func() types.Parser) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newParser = f
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	// Create main context for engine lifecycle
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop gracefully shuts down the engine and cleans up all resources
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")

		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		e.endStream()
		e.closeSession()
		e.state = stateIdle

		logger.Info("engine stopped")
	})
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
			e.eventLoop(e.mainCtx) // Restart the event loop
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.eventChan:
			e.mu.RLock()
			stopped := e.stopped
			e.mu.RUnlock()

			if stopped {
				return
			}

			// Wrap event handling in its own recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	if event.Type != EventStreamToken {
		logger.Debug("handle event: %s (state=%s)", event.Type, e.state)
	}
	e.dispatch(event)
}

// post queues an event for the loop. It never blocks past engine shutdown.
func (e *Engine) post(event Event) {
	select {
	case e.eventChan <- event:
	case <-e.mainCtx.Done():
	}
}

// Public commands. Each one is serialized through the event loop.

func (e *Engine) Submit(instruction string, useSelection bool) {
	e.post(Event{Type: EventSubmit, Data: SubmitRequest{Instruction: instruction, UseSelection: useSelection}})
}

func (e *Engine) Accept(hunkID int) { e.post(Event{Type: EventAccept, Data: hunkID}) }

func (e *Engine) Reject(hunkID int) { e.post(Event{Type: EventReject, Data: hunkID}) }

func (e *Engine) AcceptAll() { e.post(Event{Type: EventAcceptAll}) }

func (e *Engine) RejectAll() { e.post(Event{Type: EventRejectAll}) }

func (e *Engine) AcceptNearest() { e.post(Event{Type: EventAcceptNearest}) }

func (e *Engine) RejectNearest() { e.post(Event{Type: EventRejectNearest}) }

func (e *Engine) StopGeneration() { e.post(Event{Type: EventStop}) }

func (e *Engine) Discard() { e.post(Event{Type: EventDiscard}) }

func (e *Engine) ContextSwitch() { e.post(Event{Type: EventContextSwitch}) }

// HandleEditorEvent posts a named editor event. Hunk-scoped events carry the
// hunk id in data.
func (e *Engine) HandleEditorEvent(name string, data any) error {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	t := EventTypeFromString(name)
	if t == "" {
		return fmt.Errorf("unknown event %q", name)
	}
	if t == EventAccept || t == EventReject {
		id, ok := toInt(data)
		if !ok {
			return fmt.Errorf("event %q needs a hunk id, got %v", name, data)
		}
		data = id
	}
	e.post(Event{Type: t, Data: data})
	return nil
}

// toInt accepts the integer shapes msgpack decoding produces
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// doSubmit starts a new request, superseding whatever was in flight
func (e *Engine) doSubmit(event Event) {
	req, _ := event.Data.(SubmitRequest)

	e.endStream()
	e.closeSession()
	e.state = stateIdle

	if e.editor == nil {
		logger.Warn("submit ignored: %v", ErrNoEditor)
		return
	}
	if err := e.editor.Sync(req.UseSelection); err != nil {
		logger.Error("error syncing editor: %v", err)
		e.editor.Notify(types.Notification{Level: types.LevelError, Message: err.Error()})
		return
	}

	doc := e.editor.Document()
	full := doc.Text()
	target := text.TargetRange(e.editor.Selection(), len(full))
	marker, err := doc.CreateMarker(target.Start, target.End)
	if err != nil {
		logger.Error("error tracking target range: %v", err)
		return
	}

	e.requestID++
	id := e.requestID
	var ctx context.Context
	var cancel context.CancelFunc
	if e.config.CompletionTimeout > 0 {
		ctx, cancel = context.WithTimeout(e.mainCtx, e.config.CompletionTimeout)
	} else {
		ctx, cancel = context.WithCancel(e.mainCtx)
	}

	e.stream = &streamState{
		requestID: id,
		parser:    e.newParser(),
		cancel:    cancel,
		doc:       doc,
		path:      e.editor.Path(),
		target:    marker,
		baseText:  full[target.Start:target.End],
		original:  full,

		targetRange: target,
	}
	e.state = stateWaiting
	if target.Start > 0 || target.End < len(full) {
		e.setHighlight([]types.Range{target}, types.HighlightWaiting)
	}
	if e.config.LockWhileStreaming && !doc.ReadOnly() {
		if err := doc.SetReadOnly(true); err != nil {
			logger.Warn("error locking document: %v", err)
		} else {
			e.stream.locked = true
		}
	}

	row, col := e.editor.Cursor()
	editReq := &types.EditRequest{
		Instruction: req.Instruction,
		FilePath:    e.stream.path,
		Language:    text.LanguageFromPath(e.stream.path),
		Content:     full,
		Selection:   target,
		CursorRow:   row,
		CursorCol:   col,
	}

	if e.config.WaitingHintDelay > 0 {
		e.waitingTimer = e.clock.AfterFunc(e.config.WaitingHintDelay, func() {
			e.post(Event{Type: EventWaitingTimeout, RequestID: id})
		})
	}

	logger.Info("request %d: %s [%d,%d)", id, e.stream.path, target.Start, target.End)
	go e.runStream(ctx, id, editReq)
}

func (e *Engine) runStream(ctx context.Context, id int64, req *types.EditRequest) {
	defer logger.Trace(fmt.Sprintf("request %d stream", id))()

	err := e.provider.StreamEdit(ctx, req, func(chunk string) {
		if chunk == "" {
			return
		}
		e.post(Event{Type: EventStreamToken, Data: chunk, RequestID: id})
	})

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("request %d canceled", id)
			return
		}
		e.post(Event{Type: EventStreamError, Data: err, RequestID: id})
		return
	}
	e.post(Event{Type: EventStreamComplete, RequestID: id})
}

func (e *Engine) doContextSwitch(event Event) {
	e.endStream()
	e.closeSession()
	e.state = stateIdle
}

// endStream cancels the in-flight request and its timers
func (e *Engine) endStream() {
	e.stopTimers()
	if e.stream == nil {
		return
	}
	if e.stream.cancel != nil {
		e.stream.cancel()
	}
	if e.stream.target != nil {
		e.stream.target.Release()
	}
	e.unlockDocument()
	if e.editor != nil {
		e.editor.ClearHighlights()
	}
	e.stream = nil
}

func (e *Engine) stopTimers() {
	if e.highlightTimer != nil {
		e.highlightTimer.Stop()
		e.highlightTimer = nil
	}
	if e.waitingTimer != nil {
		e.waitingTimer.Stop()
		e.waitingTimer = nil
	}
}

func (e *Engine) closeSession() {
	if e.session == nil {
		return
	}
	e.session.Dispose()
	e.session = nil
}

// unlockDocument releases the read-only lock taken for the current stream
func (e *Engine) unlockDocument() {
	if e.stream == nil || !e.stream.locked {
		return
	}
	if err := e.stream.doc.SetReadOnly(false); err != nil {
		logger.Warn("error unlocking document: %v", err)
		return
	}
	e.stream.locked = false
}
