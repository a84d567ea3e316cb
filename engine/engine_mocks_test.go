package engine

import (
	"context"
	"sync"
	"time"

	"streamedit/buffer"
	"streamedit/session"
	"streamedit/types"
)

// mockEditor implements Editor over an in-memory document
type mockEditor struct {
	doc       *buffer.Memory
	path      string
	selection types.Range
	cursor    int
	syncErr   error

	renderers     []*mockRenderer
	highlights    [][]types.Range
	highlightHS   []types.HighlightState
	cleared       int
	hints         []string
	notifications []types.Notification
}

func newMockEditor(content string) *mockEditor {
	return &mockEditor{
		doc:  buffer.NewMemory(content),
		path: "src/main.go",
	}
}

func (m *mockEditor) Sync(useSelection bool) error {
	if !useSelection {
		m.selection = types.Range{}
	}
	return m.syncErr
}

func (m *mockEditor) Document() session.Document { return m.doc }

func (m *mockEditor) Path() string { return m.path }

func (m *mockEditor) Selection() types.Range { return m.selection }

func (m *mockEditor) Cursor() (int, int) { return 1, 0 }

func (m *mockEditor) CursorOffset() int { return m.cursor }

func (m *mockEditor) NewRenderer() session.Renderer {
	r := &mockRenderer{}
	m.renderers = append(m.renderers, r)
	return r
}

func (m *mockEditor) Highlight(ranges []types.Range, hs types.HighlightState) {
	m.highlights = append(m.highlights, ranges)
	m.highlightHS = append(m.highlightHS, hs)
}

func (m *mockEditor) ClearHighlights() { m.cleared++ }

func (m *mockEditor) ShowHint(message string) { m.hints = append(m.hints, message) }

func (m *mockEditor) Notify(n types.Notification) {
	m.notifications = append(m.notifications, n)
}

func (m *mockEditor) lastHint() string {
	if len(m.hints) == 0 {
		return ""
	}
	return m.hints[len(m.hints)-1]
}

func (m *mockEditor) notificationsAt(level string) []types.Notification {
	var out []types.Notification
	for _, n := range m.notifications {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

type mockRenderer struct {
	rendered    int
	replaced    int
	interactive bool
	disposed    bool
	last        []*session.Hunk
}

func (r *mockRenderer) RenderHunks(h []*session.Hunk) {
	r.rendered++
	r.last = h
}

func (r *mockRenderer) ReplaceHunks(h []*session.Hunk) {
	r.replaced++
	r.last = h
}

func (r *mockRenderer) SetInteractive(interactive bool) { r.interactive = interactive }

func (r *mockRenderer) Dispose() { r.disposed = true }

// mockProvider records requests and holds the stream open until canceled.
// Tests inject stream events directly.
type mockProvider struct {
	requests chan *types.EditRequest
}

func newMockProvider() *mockProvider {
	return &mockProvider{requests: make(chan *types.EditRequest, 10)}
}

func (p *mockProvider) StreamEdit(ctx context.Context, req *types.EditRequest, onChunk func(string)) error {
	p.requests <- req
	<-ctx.Done()
	return ctx.Err()
}

type mockTracker struct {
	shown, accepted, rejected int
}

func (t *mockTracker) TrackShown(_ string, n int)    { t.shown += n }
func (t *mockTracker) TrackAccepted(_ string, n int) { t.accepted += n }
func (t *mockTracker) TrackRejected(_ string, n int) { t.rejected += n }

// mockClock fires timers only when advanced
type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{fireTime: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every due timer
func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*mockTimer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.fireTime.After(c.now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

type mockTimer struct {
	fireTime time.Time
	f        func()
	stopped  bool
}

func (t *mockTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}
