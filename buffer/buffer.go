package buffer

import (
	"fmt"
	"path/filepath"
	"strings"

	"streamedit/logger"
	"streamedit/session"
	"streamedit/types"

	"github.com/neovim/go-client/nvim"
)

type Config struct {
	NsID int // namespace for range markers
}

// NvimBuffer is the editor side of an inline edit: the current buffer,
// cursor and selection, plus the plugin's highlight, hint and notification
// UI.
type NvimBuffer struct {
	client *nvim.Nvim // stored internally, set via SetClient

	lines     []string
	row       int // 1-indexed
	col       int // 0-indexed
	path      string
	id        nvim.Buffer
	selection types.Range

	config Config
}

func New(config Config) *NvimBuffer {
	return &NvimBuffer{
		lines:  []string{},
		row:    1,
		col:    0,
		id:     nvim.Buffer(0),
		config: config,
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

// SetNamespace sets the extmark namespace used for range markers
func (b *NvimBuffer) SetNamespace(nsID int) {
	b.config.NsID = nsID
}

// Accessor methods implementing engine.Editor

func (b *NvimBuffer) Path() string { return b.path }

func (b *NvimBuffer) Selection() types.Range { return b.selection }

func (b *NvimBuffer) Cursor() (int, int) { return b.row, b.col }

func (b *NvimBuffer) Document() session.Document { return b.document() }

func (b *NvimBuffer) document() *NvimDocument {
	return NewDocument(b.client, b.id, b.config.NsID)
}

func (b *NvimBuffer) NewRenderer() session.Renderer {
	return NewRenderer(b.client, b.document())
}

// Sync reads current state from the editor
func (b *NvimBuffer) Sync(useSelection bool) error {
	defer logger.Trace("buffer.Sync")()
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	// Use batch API to make all calls in a single round-trip
	batch := b.client.NewBatch()

	var currentBuf nvim.Buffer
	var path string
	var lines [][]byte
	var cursor [2]int
	var nvimCwd string
	var marks [4]int

	batch.CurrentBuffer(&currentBuf)
	batch.BufferName(nvim.Buffer(0), &path) // Use 0 for current buffer
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor) // Use 0 for current window
	batch.ExecLua(`return vim.fn.getcwd()`, &nvimCwd, nil)
	if useSelection {
		batch.ExecLua(`
			local s, e = vim.fn.getpos("'<"), vim.fn.getpos("'>")
			return {s[2], s[3], e[2], e[3]}
		`, &marks, nil)
	}

	if err := batch.Execute(); err != nil {
		logger.Error("error executing sync batch: %v", err)
		return err
	}

	b.lines = make([]string, len(lines))
	for i, line := range lines {
		b.lines[i] = string(line)
	}
	b.id = currentBuf
	b.row = cursor[0] // Line (vertical position, 1-based in nvim cursor)
	b.col = cursor[1] // Column (horizontal position, 0-based in nvim cursor)
	b.path = makeRelativeToWorkspace(path, nvimCwd)

	b.selection = types.Range{}
	if useSelection {
		b.selection = selectionRange(b.lines, marks)
	}
	return nil
}

// CursorOffset reads the live cursor as a byte offset into the document
func (b *NvimBuffer) CursorOffset() int {
	if b.client == nil {
		return 0
	}

	var cursor [2]int
	var raw [][]byte
	batch := b.client.NewBatch()
	batch.WindowCursor(nvim.Window(0), &cursor)
	batch.BufferLines(b.id, 0, -1, false, &raw)
	if err := batch.Execute(); err != nil {
		logger.Error("error reading cursor: %v", err)
		return 0
	}

	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return offsetOf(lines, cursor[0]-1, cursor[1])
}

func (b *NvimBuffer) Highlight(ranges []types.Range, state types.HighlightState) {
	if b.client == nil {
		return
	}
	text := b.document().Text()
	payload := make([]map[string]any, 0, len(ranges))
	for _, r := range ranges {
		sr, sc := position(text, r.Start)
		er, ec := position(text, r.End)
		payload = append(payload, map[string]any{
			"start_row": sr, "start_col": sc,
			"end_row": er, "end_col": ec,
		})
	}
	executeLuaFunction(b.client, "require('streamedit').highlight(...)", int(b.id), payload, state.String())
}

func (b *NvimBuffer) ClearHighlights() {
	executeLuaFunction(b.client, "require('streamedit').clear_highlights(...)", int(b.id))
}

func (b *NvimBuffer) ShowHint(message string) {
	executeLuaFunction(b.client, "require('streamedit').show_hint(...)", int(b.id), message)
}

func (b *NvimBuffer) Notify(n types.Notification) {
	executeLuaFunction(b.client, "require('streamedit').notify(...)", map[string]any{
		"level":   n.Level,
		"message": n.Message,
		"action":  n.Action,
		"payload": n.Payload,
	})
}

// Handlers receives the RPC requests the plugin sends
type Handlers struct {
	Submit func(instruction string, useSelection bool)
	Event  func(event string, data any) error
}

// RegisterHandlers registers the plugin's RPC notifications
func (b *NvimBuffer) RegisterHandlers(h Handlers) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	if err := b.client.RegisterHandler("streamedit_submit", func(_ *nvim.Nvim, instruction string, useSelection bool) {
		h.Submit(instruction, useSelection)
	}); err != nil {
		return err
	}
	if err := b.client.RegisterHandler("streamedit_event", func(_ *nvim.Nvim, event string) {
		if err := h.Event(event, nil); err != nil {
			logger.Warn("event %s: %v", event, err)
		}
	}); err != nil {
		return err
	}
	return b.client.RegisterHandler("streamedit_hunk", func(_ *nvim.Nvim, event string, id int) {
		if err := h.Event(event, id); err != nil {
			logger.Warn("event %s(%d): %v", event, id, err)
		}
	})
}

// Helper function to convert absolute path to relative workspace path
func makeRelativeToWorkspace(absolutePath, workspacePath string) string {
	if absolutePath == "" {
		return ""
	}
	absolutePath = filepath.Clean(absolutePath)
	workspacePath = filepath.Clean(workspacePath)

	// If the file is within the workspace, make it relative
	if relativePath, found := strings.CutPrefix(absolutePath, workspacePath); found {
		relativePath = strings.TrimPrefix(relativePath, string(filepath.Separator))
		return relativePath
	}

	return absolutePath
}

// selectionRange converts the '< and '> marks ({line, col, line, col}, all
// 1-indexed) to a byte range. Linewise selections report a huge end column
// and cover the whole last line.
func selectionRange(lines []string, marks [4]int) types.Range {
	if marks[0] <= 0 || marks[2] <= 0 {
		return types.Range{}
	}
	start := offsetOf(lines, marks[0]-1, marks[1]-1)
	// the end mark is inclusive
	end := offsetOf(lines, marks[2]-1, marks[3])
	if end < start {
		start, end = end, start
	}
	return types.Range{Start: start, End: end}
}

func executeLuaFunction(client *nvim.Nvim, luaCode string, args ...any) {
	if client == nil {
		return
	}
	batch := client.NewBatch()
	if len(args) > 0 {
		batch.ExecLua(luaCode, nil, args...)
	} else {
		batch.ExecLua(luaCode, nil, nil)
	}
	if err := batch.Execute(); err != nil {
		logger.Error("error executing lua function: %v", err)
	}
}
