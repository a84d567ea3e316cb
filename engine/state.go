package engine

import (
	"streamedit/logger"
)

type state int

const (
	stateIdle state = iota
	stateWaiting
	stateSearching
	stateFound
	stateReplacing
	stateComplete
	stateError
	stateStopped
)

// String returns a human-readable name for the state
func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateWaiting:
		return "Waiting"
	case stateSearching:
		return "Searching"
	case stateFound:
		return "Found"
	case stateReplacing:
		return "Replacing"
	case stateComplete:
		return "Complete"
	case stateError:
		return "Error"
	case stateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// streaming reports whether tokens are still expected
func (s state) streaming() bool {
	switch s {
	case stateWaiting, stateSearching, stateFound, stateReplacing:
		return true
	}
	return false
}

// Transition represents a valid state transition in the engine's state machine
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines the stream lifecycle. Hunk commands are valid in every
// state and are added in init.
//
// State Machine Overview:
//
//	stateIdle
//	└─[Submit]──► stateWaiting
//	               │
//	               ├─[Token: search started]──► stateSearching
//	               │                              │
//	               │                              └─[Token: replace started]──► stateFound
//	               │                                                              │
//	               │                                        ┌─[Token: segment]────┘
//	               │                                        ▼
//	               │                                 stateReplacing ──[Token: search]──► stateSearching
//	               │
//	               ├─[StreamComplete]──► stateComplete
//	               ├─[StreamError]─────► stateError
//	               └─[Stop]────────────► stateStopped
//
// Submit restarts from any state; ContextSwitch and Discard return to stateIdle.
var transitions = []Transition{
	{stateWaiting, EventStreamToken, (*Engine).doToken},
	{stateWaiting, EventStreamComplete, (*Engine).doComplete},
	{stateWaiting, EventStreamError, (*Engine).doError},
	{stateWaiting, EventStop, (*Engine).doStop},
	{stateWaiting, EventWaitingTimeout, (*Engine).doWaitingHint},

	{stateSearching, EventStreamToken, (*Engine).doToken},
	{stateSearching, EventStreamComplete, (*Engine).doComplete},
	{stateSearching, EventStreamError, (*Engine).doError},
	{stateSearching, EventStop, (*Engine).doStop},
	{stateSearching, EventHighlightTimeout, (*Engine).doHighlight},

	{stateFound, EventStreamToken, (*Engine).doToken},
	{stateFound, EventStreamComplete, (*Engine).doComplete},
	{stateFound, EventStreamError, (*Engine).doError},
	{stateFound, EventStop, (*Engine).doStop},
	{stateFound, EventHighlightTimeout, (*Engine).doHighlight},

	{stateReplacing, EventStreamToken, (*Engine).doToken},
	{stateReplacing, EventStreamComplete, (*Engine).doComplete},
	{stateReplacing, EventStreamError, (*Engine).doError},
	{stateReplacing, EventStop, (*Engine).doStop},
	{stateReplacing, EventHighlightTimeout, (*Engine).doHighlight},
}

var allStates = []state{
	stateIdle, stateWaiting, stateSearching, stateFound,
	stateReplacing, stateComplete, stateError, stateStopped,
}

// anyStateTransitions apply regardless of the stream state
var anyStateTransitions = map[EventType]func(*Engine, Event){
	EventSubmit:        (*Engine).doSubmit,
	EventAccept:        (*Engine).doAccept,
	EventReject:        (*Engine).doReject,
	EventAcceptAll:     (*Engine).doAcceptAll,
	EventRejectAll:     (*Engine).doRejectAll,
	EventAcceptNearest: (*Engine).doAcceptNearest,
	EventRejectNearest: (*Engine).doRejectNearest,
	EventDiscard:       (*Engine).doDiscard,
	EventContextSwitch: (*Engine).doContextSwitch,
	EventOpenDiff:      (*Engine).doOpenDiff,
}

// transitionMap provides O(1) lookup for transitions by (state, event) pair
var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

func init() {
	for _, s := range allStates {
		for ev, action := range anyStateTransitions {
			transitions = append(transitions, Transition{s, ev, action})
		}
	}

	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		key := transitionKey{from: t.From, event: t.Event}
		transitionMap[key] = t
	}
}

// findTransition looks up a valid transition for the given state and event.
// Returns nil if no valid transition exists.
func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch finds and executes the appropriate transition for an event.
// Events from superseded requests are dropped before lookup.
func (e *Engine) dispatch(event Event) bool {
	if event.Type.isRequestScoped() && event.RequestID != e.requestID {
		logger.Debug("stale event dropped: %s (request %d, current %d)", event.Type, event.RequestID, e.requestID)
		return false
	}

	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	if t.Action != nil {
		t.Action(e, event)
	}
	return true
}
