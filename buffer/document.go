package buffer

import (
	"fmt"
	"strings"

	"streamedit/logger"
	"streamedit/session"

	"github.com/neovim/go-client/nvim"
)

// NvimDocument is a session.Document over a Neovim buffer. Offsets are byte
// offsets into the buffer lines joined with "\n". Markers are extmarks, so
// Neovim rebases them on every edit, including the user's own typing.
type NvimDocument struct {
	client *nvim.Nvim
	buf    nvim.Buffer
	nsID   int
}

var _ session.Document = (*NvimDocument)(nil)

func NewDocument(client *nvim.Nvim, buf nvim.Buffer, nsID int) *NvimDocument {
	return &NvimDocument{client: client, buf: buf, nsID: nsID}
}

func (d *NvimDocument) lines() ([]string, error) {
	var raw [][]byte
	batch := d.client.NewBatch()
	batch.BufferLines(d.buf, 0, -1, false, &raw)
	if err := batch.Execute(); err != nil {
		return nil, fmt.Errorf("read buffer %d: %w", d.buf, err)
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return lines, nil
}

func (d *NvimDocument) Text() string {
	lines, err := d.lines()
	if err != nil {
		logger.Error("%v", err)
		return ""
	}
	return strings.Join(lines, "\n")
}

func (d *NvimDocument) Len() int { return len(d.Text()) }

func (d *NvimDocument) Slice(start, end int) string {
	text := d.Text()
	start = max(0, min(start, len(text)))
	end = max(start, min(end, len(text)))
	return text[start:end]
}

func (d *NvimDocument) Replace(start, end int, text string) error {
	defer logger.Trace("buffer.Replace")()

	if d.ReadOnly() {
		return ErrReadOnly
	}
	cur := d.Text()
	if start < 0 || end < start || end > len(cur) {
		return fmt.Errorf("replace [%d,%d) out of bounds for length %d", start, end, len(cur))
	}

	sr, sc := position(cur, start)
	er, ec := position(cur, end)
	parts := strings.Split(text, "\n")
	replacement := make([][]byte, len(parts))
	for i, p := range parts {
		replacement[i] = []byte(p)
	}

	batch := d.client.NewBatch()
	batch.SetBufferText(d.buf, sr, sc, er, ec, replacement)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("set text [%d,%d): %w", start, end, err)
	}
	return nil
}

func (d *NvimDocument) CreateMarker(start, end int) (session.Marker, error) {
	cur := d.Text()
	if start < 0 || end < start || end > len(cur) {
		return nil, fmt.Errorf("marker [%d,%d) out of bounds for length %d", start, end, len(cur))
	}
	sr, sc := position(cur, start)
	er, ec := position(cur, end)

	var id int
	batch := d.client.NewBatch()
	batch.ExecLua(`
		local buf, ns, sr, sc, er, ec = ...
		return vim.api.nvim_buf_set_extmark(buf, ns, sr, sc, {
			end_row = er, end_col = ec,
			right_gravity = false, end_right_gravity = true,
		})
	`, &id, int(d.buf), d.nsID, sr, sc, er, ec)
	if err := batch.Execute(); err != nil {
		return nil, fmt.Errorf("create extmark: %w", err)
	}
	return &extmark{doc: d, id: id}, nil
}

func (d *NvimDocument) ReadOnly() bool {
	var modifiable bool
	batch := d.client.NewBatch()
	batch.ExecLua(`return vim.bo[...].modifiable`, &modifiable, int(d.buf))
	if err := batch.Execute(); err != nil {
		logger.Error("error reading modifiable: %v", err)
		return false
	}
	return !modifiable
}

func (d *NvimDocument) SetReadOnly(readOnly bool) error {
	batch := d.client.NewBatch()
	batch.ExecLua(`
		local buf, modifiable = ...
		vim.bo[buf].modifiable = modifiable
	`, nil, int(d.buf), !readOnly)
	return batch.Execute()
}

// extmark is a session.Marker backed by a Neovim extmark
type extmark struct {
	doc      *NvimDocument
	id       int
	released bool
}

// span returns the extmark's current byte range. A deleted extmark
// collapses to offset 0.
func (m *extmark) span() (int, int) {
	if m.released {
		return 0, 0
	}

	var pos [4]int
	var raw [][]byte
	batch := m.doc.client.NewBatch()
	batch.ExecLua(`
		local buf, ns, id = ...
		local m = vim.api.nvim_buf_get_extmark_by_id(buf, ns, id, {details = true})
		if #m == 0 then return {0, 0, 0, 0} end
		local d = m[3] or {}
		return {m[1], m[2], d.end_row or m[1], d.end_col or m[2]}
	`, &pos, int(m.doc.buf), m.doc.nsID, m.id)
	batch.BufferLines(m.doc.buf, 0, -1, false, &raw)
	if err := batch.Execute(); err != nil {
		logger.Error("error reading extmark %d: %v", m.id, err)
		return 0, 0
	}

	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	start := offsetOf(lines, pos[0], pos[1])
	end := max(start, offsetOf(lines, pos[2], pos[3]))
	return start, end
}

func (m *extmark) Start() int {
	start, _ := m.span()
	return start
}

func (m *extmark) End() int {
	_, end := m.span()
	return end
}

func (m *extmark) Release() {
	if m.released {
		return
	}
	m.released = true
	batch := m.doc.client.NewBatch()
	batch.ExecLua(`
		local buf, ns, id = ...
		pcall(vim.api.nvim_buf_del_extmark, buf, ns, id)
	`, nil, int(m.doc.buf), m.doc.nsID, m.id)
	if err := batch.Execute(); err != nil {
		logger.Warn("error deleting extmark %d: %v", m.id, err)
	}
}

// position converts a byte offset in text to a 0-indexed (row, col)
func position(text string, offset int) (row, col int) {
	offset = max(0, min(offset, len(text)))
	before := text[:offset]
	row = strings.Count(before, "\n")
	col = offset - (strings.LastIndex(before, "\n") + 1)
	return row, col
}

// offsetOf converts a 0-indexed (row, col) in lines to a byte offset. Rows
// and columns past the end are clamped.
func offsetOf(lines []string, row, col int) int {
	if len(lines) == 0 || row < 0 {
		return 0
	}
	if row >= len(lines) {
		return len(strings.Join(lines, "\n"))
	}

	off := 0
	for i := 0; i < row; i++ {
		off += len(lines[i]) + 1
	}
	return off + max(0, min(col, len(lines[row])))
}
