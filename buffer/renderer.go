package buffer

import (
	"strings"

	"streamedit/logger"
	"streamedit/session"
	"streamedit/types"

	"github.com/neovim/go-client/nvim"
)

// NvimRenderer draws a session's hunks through the Lua side of the plugin
type NvimRenderer struct {
	client *nvim.Nvim
	doc    *NvimDocument
}

var _ session.Renderer = (*NvimRenderer)(nil)

func NewRenderer(client *nvim.Nvim, doc *NvimDocument) *NvimRenderer {
	return &NvimRenderer{client: client, doc: doc}
}

func (r *NvimRenderer) RenderHunks(hunks []*session.Hunk) {
	payload := hunksToLua(r.doc.Text(), viewsOf(hunks))
	logger.Debug("sending to lua render_hunks: %d hunks", len(payload))
	executeLuaFunction(r.client, "require('streamedit').render_hunks(...)", int(r.doc.buf), payload)
}

func (r *NvimRenderer) ReplaceHunks(hunks []*session.Hunk) {
	payload := hunksToLua(r.doc.Text(), viewsOf(hunks))
	executeLuaFunction(r.client, "require('streamedit').replace_hunks(...)", int(r.doc.buf), payload)
}

func (r *NvimRenderer) SetInteractive(interactive bool) {
	executeLuaFunction(r.client, "require('streamedit').set_interactive(...)", int(r.doc.buf), interactive)
}

func (r *NvimRenderer) Dispose() {
	executeLuaFunction(r.client, "require('streamedit').dispose_hunks(...)", int(r.doc.buf))
}

// hunkView is what the renderer needs from a hunk
type hunkView struct {
	ID       int
	Range    types.Range
	Original string
	Proposed string
	Status   types.HunkStatus
}

func viewsOf(hunks []*session.Hunk) []hunkView {
	views := make([]hunkView, 0, len(hunks))
	for _, h := range hunks {
		views = append(views, hunkView{
			ID:       h.ID,
			Range:    h.Range(),
			Original: h.Original,
			Proposed: h.ProposedSlice,
			Status:   h.Status,
		})
	}
	return views
}

// hunksToLua converts hunks to rows and columns for the Lua renderer
func hunksToLua(text string, hunks []hunkView) []map[string]any {
	out := make([]map[string]any, 0, len(hunks))
	for _, h := range hunks {
		sr, sc := position(text, h.Range.Start)
		er, ec := position(text, h.Range.End)
		out = append(out, map[string]any{
			"id":             h.ID,
			"start_row":      sr,
			"start_col":      sc,
			"end_row":        er,
			"end_col":        ec,
			"original_lines": splitLines(h.Original),
			"lines":          splitLines(h.Proposed),
			"status":         h.Status.String(),
		})
	}
	return out
}

// splitLines splits text into lines, dropping the empty line after a
// trailing newline
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
