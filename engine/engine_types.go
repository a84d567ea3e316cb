package engine

import (
	"context"
	"strings"
	"time"

	"streamedit/session"
	"streamedit/types"
)

// Editor is the engine's view of the editor hosting the inline edit.
// Implemented by buffer.NvimEditor for Neovim integration.
type Editor interface {
	// Sync snapshots the current buffer, cursor and, when useSelection is
	// set, the last visual selection.
	Sync(useSelection bool) error
	Document() session.Document
	Path() string
	Selection() types.Range // empty when there is no selection
	Cursor() (row, col int) // 1-indexed row, 0-indexed col
	CursorOffset() int
	NewRenderer() session.Renderer
	// Highlight replaces any current highlight
	Highlight(ranges []types.Range, state types.HighlightState)
	ClearHighlights()
	ShowHint(message string)
	Notify(n types.Notification)
}

// Provider streams the model's answer to an edit request. onChunk is called
// from the provider's goroutine for every received text delta.
// Implemented by provider.Provider.
type Provider interface {
	StreamEdit(ctx context.Context, req *types.EditRequest, onChunk func(string)) error
}

// Tracker records what happened to proposed hunks.
// Implemented by metrics.Tracker.
type Tracker interface {
	TrackShown(sessionID string, hunks int)
	TrackAccepted(sessionID string, hunks int)
	TrackRejected(sessionID string, hunks int)
}

type noopTracker struct{}

func (noopTracker) TrackShown(string, int)    {}
func (noopTracker) TrackAccepted(string, int) {}
func (noopTracker) TrackRejected(string, int) {}

type EngineConfig struct {
	CompletionTimeout time.Duration
	HighlightDebounce time.Duration // delay before highlighting a partial search
	WaitingHintDelay  time.Duration // delay before the "waiting" hint when no token arrived

	// LockWhileStreaming makes the document read-only until the stream ends.
	// Hunk actions still apply while locked.
	LockWhileStreaming bool
}

// Messages shown to the user
const (
	msgNoChanges       = "No changes"
	msgIdentical       = "No changes: search and replace content are identical"
	msgEmptySearch     = "Empty search pattern"
	msgStopped         = "Generation stopped"
	msgWaiting         = "Waiting for response..."
	msgPreparing       = "Preparing replacement..."
	msgAllResolved     = "All changes resolved"
	msgSearchingFormat = "Searching for: %s"
	msgIgnoredFormat   = "Ignored %d invalid block(s)"
)

// streamState holds everything that belongs to one submitted request
type streamState struct {
	requestID int64
	parser    types.Parser
	cancel    context.CancelFunc

	doc         session.Document
	path        string
	target      session.Marker // live target range
	targetRange types.Range    // target offsets in original
	baseText    string         // target text at submission
	original    string         // full document at submission

	response strings.Builder
	segments []types.Segment

	pattern     string        // search currently streaming in
	highlighted bool          // pattern has been located and lit
	lit         []types.Range // ranges currently highlighted
	gotToken    bool
	stopping    bool
	locked      bool // read-only lock taken by this stream
	accepted    int
}
