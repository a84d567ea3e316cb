package types

// Range is a half-open byte range [Start, End) in a document
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the range
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether the range is a zero-width insertion point
func (r Range) Empty() bool { return r.End <= r.Start }

// Overlaps reports whether two ranges share any position.
// Non-empty ranges overlap iff max(starts) < min(ends). A zero-width range
// overlaps a zero-width range at the same offset, or lies strictly inside
// a non-empty one.
func (r Range) Overlaps(o Range) bool {
	switch {
	case r.Empty() && o.Empty():
		return r.Start == o.Start
	case r.Empty():
		return o.Start < r.Start && r.Start < o.End
	case o.Empty():
		return r.Start < o.Start && o.Start < r.End
	default:
		return max(r.Start, o.Start) < min(r.End, o.End)
	}
}

// Segment is one parsed search/replace instruction from the stream
type Segment struct {
	Search   string
	Replace  string
	FilePath string // may be empty
}

// Pair is a filtered search/replace pair ready to apply
type Pair struct {
	Search  string
	Replace string
}

// Filter reasons
const (
	FilterWrongFile   = "wrong-file"
	FilterEmptySearch = "empty-search"
)

// FilterResult holds the accepted pairs and why the rest were dropped
type FilterResult struct {
	Pairs         []Pair
	FilteredCount int
	Stats         map[string]int // reason -> count
}

// HunkStatus is the resolution state of a hunk
type HunkStatus int

const (
	HunkPending HunkStatus = iota
	HunkAccepted
	HunkRejected
)

func (s HunkStatus) String() string {
	switch s {
	case HunkPending:
		return "pending"
	case HunkAccepted:
		return "accepted"
	case HunkRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// HighlightState drives the highlight colour of the current search target
type HighlightState int

const (
	HighlightWaiting HighlightState = iota
	HighlightSearching
	HighlightFound
	HighlightReplacing
	HighlightError
)

// String returns the name used by the Lua side for highlight groups
func (s HighlightState) String() string {
	switch s {
	case HighlightWaiting:
		return "waiting"
	case HighlightSearching:
		return "searching"
	case HighlightFound:
		return "found"
	case HighlightReplacing:
		return "replacing"
	case HighlightError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseEventKind identifies what a parser recognised in the token stream
type ParseEventKind int

const (
	ParseText ParseEventKind = iota
	ParseSearchWaiting
	ParseReplaceWaiting
	ParseSegment
)

// ParseEvent is emitted by a Parser for each recognised stream element.
// Search carries the partial search for SearchWaiting/ReplaceWaiting,
// Segment is set for ParseSegment and Text for ParseText.
type ParseEvent struct {
	Kind    ParseEventKind
	Search  string
	Text    string
	Segment Segment
}

// Parser turns streamed tokens into parse events. Implementations are
// stateful and fed one chunk at a time in arrival order.
type Parser interface {
	Parse(chunk string) []ParseEvent
	// Flush ends the stream and returns what the buffered tail completes
	Flush() []ParseEvent
}

// EditRequest is everything a provider needs to ask for an inline edit
type EditRequest struct {
	Instruction string
	FilePath    string
	Language    string
	Content     string // full document
	Selection   Range  // target range inside Content
	CursorRow   int    // 1-indexed
	CursorCol   int    // 0-indexed
}

// ProviderConfig holds configuration for the edit provider
type ProviderConfig struct {
	ProviderURL         string  // Base URL of the OpenAI-compatible server
	APIKey              string  // Resolved API key for authenticated requests
	ProviderModel       string  // Model name
	ProviderTemperature float64 // Sampling temperature
	ProviderMaxTokens   int     // Max tokens to generate
	MaxContextTokens    int     // Budget for document context in the prompt
	CompletionPath      string  // API endpoint path (e.g., "/v1/chat/completions")
	CompressRequests    bool    // Brotli-compress request bodies
	CompletionTimeout   int     // Timeout for edit requests in milliseconds
	HistoryTurns        int     // Previous exchanges per file sent as chat history (0 = none)
}

// Notification levels
const (
	LevelInfo    = "info"
	LevelWarning = "warn"
	LevelError   = "error"
)

// ActionOpenExchange asks the editor to open the request/response exchange
// in a chat; the payload is the exchange transcript.
const ActionOpenExchange = "open_exchange"

// ActionOpenDiff asks the editor to diff the buffer against the payload, the
// whole document with every proposal applied
const ActionOpenDiff = "open_diff"

// Notification is a user-facing message with an optional follow-up action
type Notification struct {
	Level   string
	Message string
	Action  string
	Payload string
}
