package buffer

import (
	"errors"
	"fmt"
	"sync"

	"streamedit/session"
)

var ErrReadOnly = errors.New("document is read-only")

// Memory is an in-process document whose markers are rebased on every
// Replace. It backs tests and headless use.
type Memory struct {
	mu       sync.Mutex
	text     string
	readOnly bool
	markers  map[*memoryMarker]struct{}
}

func NewMemory(text string) *Memory {
	return &Memory{
		text:    text,
		markers: make(map[*memoryMarker]struct{}),
	}
}

func (d *Memory) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *Memory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.text)
}

// Slice returns text[start:end] with both bounds clamped
func (d *Memory) Slice(start, end int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	start = max(0, min(start, len(d.text)))
	end = max(start, min(end, len(d.text)))
	return d.text[start:end]
}

func (d *Memory) ReadOnly() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readOnly
}

func (d *Memory) SetReadOnly(readOnly bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readOnly = readOnly
	return nil
}

// Replace swaps text[start:end] for text and rebases every live marker
func (d *Memory) Replace(start, end int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readOnly {
		return ErrReadOnly
	}
	if start < 0 || end < start || end > len(d.text) {
		return fmt.Errorf("replace [%d,%d) out of bounds for length %d", start, end, len(d.text))
	}

	d.text = d.text[:start] + text + d.text[end:]
	for m := range d.markers {
		m.rebase(start, end, len(text))
	}
	return nil
}

// CreateMarker tracks [start, end). The range grows when text is inserted
// at either boundary.
func (d *Memory) CreateMarker(start, end int) (session.Marker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if start < 0 || end < start || end > len(d.text) {
		return nil, fmt.Errorf("marker [%d,%d) out of bounds for length %d", start, end, len(d.text))
	}
	m := &memoryMarker{doc: d, start: start, end: end}
	d.markers[m] = struct{}{}
	return m, nil
}

// MarkerCount returns the number of live markers
func (d *Memory) MarkerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.markers)
}

type memoryMarker struct {
	doc   *Memory
	start int
	end   int
}

func (m *memoryMarker) Start() int {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	return m.start
}

func (m *memoryMarker) End() int {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	return m.end
}

func (m *memoryMarker) Release() {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	delete(m.doc.markers, m)
}

// rebase moves the marker across a replacement of [start, end) by n bytes.
// A boundary inside the replaced text snaps outward to cover the new text.
func (m *memoryMarker) rebase(start, end, n int) {
	delta := n - (end - start)

	switch {
	case m.start > end, m.start == end && start < end:
		m.start += delta
	case m.start <= start:
		// unchanged, an insertion at the start lands inside the marker
	default:
		m.start = start
	}

	switch {
	case m.end < start, m.end == start && start < end:
		// unchanged, the edit is entirely after the marker
	case m.end >= end:
		m.end += delta
	default:
		m.end = start + n
	}

	if m.end < m.start {
		m.end = m.start
	}
}
