package engine

type EventType string

// Event type constants
const (
	// Editor commands
	EventSubmit        EventType = "submit"
	EventAccept        EventType = "accept"
	EventReject        EventType = "reject"
	EventAcceptAll     EventType = "accept_all"
	EventRejectAll     EventType = "reject_all"
	EventAcceptNearest EventType = "accept_nearest"
	EventRejectNearest EventType = "reject_nearest"
	EventStop          EventType = "stop"
	EventDiscard       EventType = "discard"
	EventContextSwitch EventType = "context_switch"
	EventOpenDiff      EventType = "open_diff"

	// Stream and timer events, tagged with the request they belong to
	EventStreamToken      EventType = "stream_token"
	EventStreamComplete   EventType = "stream_complete"
	EventStreamError      EventType = "stream_error"
	EventHighlightTimeout EventType = "highlight_timeout"
	EventWaitingTimeout   EventType = "waiting_timeout"
)

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
}

// buildEventTypeMap indexes the events the editor may send by name
func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)

	editorEvents := []EventType{
		EventAccept,
		EventReject,
		EventAcceptAll,
		EventRejectAll,
		EventAcceptNearest,
		EventRejectNearest,
		EventStop,
		EventDiscard,
		EventContextSwitch,
		EventOpenDiff,
	}

	for _, eventType := range editorEvents {
		eventMap[string(eventType)] = eventType
	}

	return eventMap
}

// EventTypeFromString maps an editor event name to its type. Unknown names
// and internal events map to "".
func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

type Event struct {
	Type      EventType
	Data      any
	RequestID int64 // 0 for editor commands
}

// isRequestScoped reports whether the event belongs to one request and must
// be dropped once a newer request has started
func (t EventType) isRequestScoped() bool {
	switch t {
	case EventStreamToken, EventStreamComplete, EventStreamError, EventHighlightTimeout, EventWaitingTimeout:
		return true
	}
	return false
}

// SubmitRequest is the payload of EventSubmit
type SubmitRequest struct {
	Instruction  string
	UseSelection bool
}
