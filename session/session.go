// Package session tracks the proposed changes of one inline edit as hunks
// that can be accepted or rejected one at a time while the proposal keeps
// changing underneath them.
//
// A Session is not safe for concurrent use. The engine drives every call
// from its event loop.
package session

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"streamedit/logger"
	"streamedit/text"
	"streamedit/types"

	"github.com/google/uuid"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrHunkNotFound  = errors.New("hunk not found")
)

// Marker is a live range in a Document. Its offsets follow every edit made
// to the document; insertions at either boundary grow the range.
type Marker interface {
	Start() int
	End() int
	Release()
}

// Document is the editable text a session works against
type Document interface {
	Text() string
	Len() int
	Slice(start, end int) string
	Replace(start, end int, text string) error
	CreateMarker(start, end int) (Marker, error)
	ReadOnly() bool
	SetReadOnly(readOnly bool) error
}

// Renderer shows hunks to the user. Calls arrive on the engine loop.
type Renderer interface {
	RenderHunks(hunks []*Hunk)
	ReplaceHunks(hunks []*Hunk)
	SetInteractive(interactive bool)
	Dispose()
}

// Hunk is one independently actionable change. IDs are unique within a
// session but a hunk only lives until the next recomputation.
type Hunk struct {
	ID            int
	ProposedSlice string
	Original      string
	Status        types.HunkStatus

	marker Marker
}

// Range returns the hunk's current position in the document
func (h *Hunk) Range() types.Range {
	return types.Range{Start: h.marker.Start(), End: h.marker.End()}
}

// Options configures a session
type Options struct {
	// OnNoPending is called after a single accept or reject leaves no
	// pending hunks.
	OnNoPending func()
}

// Session reconciles the live document against a proposed text
type Session struct {
	ID string

	doc      Document
	renderer Renderer
	opts     Options

	root     Marker
	baseText string
	proposed string

	hunks    []*Hunk
	locked   []Marker
	rejected []Marker
	retired  []Marker

	nextID      int
	bulk        bool
	interactive bool
	closed      bool
}

// Start creates a session over base in doc, diffs it against proposed and
// renders the initial hunks.
func Start(doc Document, r Renderer, base types.Range, proposed string, opts Options) (*Session, error) {
	base.Start = max(0, min(base.Start, doc.Len()))
	base.End = max(base.Start, min(base.End, doc.Len()))

	root, err := doc.CreateMarker(base.Start, base.End)
	if err != nil {
		return nil, fmt.Errorf("create root marker: %w", err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		doc:      doc,
		renderer: r,
		opts:     opts,
		root:     root,
		baseText: doc.Slice(base.Start, base.End),
		proposed: proposed,
	}

	s.recompute()
	s.renderer.RenderHunks(s.Hunks())
	logger.Debug("session %s: started over [%d,%d) with %d hunks", s.ID, base.Start, base.End, len(s.hunks))
	return s, nil
}

// BaseText is the snapshot of the base range taken at Start
func (s *Session) BaseText() string { return s.baseText }

// ProposedText is the latest full proposal for the base range
func (s *Session) ProposedText() string { return s.proposed }

// Closed reports whether the session has been disposed
func (s *Session) Closed() bool { return s.closed }

// Interactive reports whether hunk actions are currently offered
func (s *Session) Interactive() bool { return s.interactive }

// Hunks returns the current hunk list in ascending document order
func (s *Session) Hunks() []*Hunk {
	out := make([]*Hunk, len(s.hunks))
	copy(out, s.hunks)
	return out
}

// Hunk looks up a current hunk by ID
func (s *Session) Hunk(id int) (*Hunk, error) {
	for _, h := range s.hunks {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, fmt.Errorf("hunk %d: %w", id, ErrHunkNotFound)
}

// HasPendingHunks reports whether any hunk still awaits a decision
func (s *Session) HasPendingHunks() bool {
	for _, h := range s.hunks {
		if h.Status == types.HunkPending {
			return true
		}
	}
	return false
}

// SetInteractive toggles hunk actions in the renderer
func (s *Session) SetInteractive(interactive bool) {
	if s.closed {
		return
	}
	s.interactive = interactive
	s.renderer.SetInteractive(interactive)
}

// UpdateProposedText replaces the proposal and re-diffs it against the live
// document. Resolved regions stay excluded.
func (s *Session) UpdateProposedText(proposed string, interactive bool) {
	if s.closed {
		return
	}
	s.proposed = proposed
	s.recompute()
	s.SetInteractive(interactive)
	s.renderer.ReplaceHunks(s.Hunks())
}

// Accept applies the hunk with the given ID
func (s *Session) Accept(id int) error {
	if s.closed {
		return ErrSessionClosed
	}
	h, err := s.Hunk(id)
	if err != nil {
		return err
	}
	return s.AcceptHunk(h)
}

// Reject discards the hunk with the given ID
func (s *Session) Reject(id int) error {
	if s.closed {
		return ErrSessionClosed
	}
	h, err := s.Hunk(id)
	if err != nil {
		return err
	}
	return s.RejectHunk(h)
}

// AcceptHunk writes the hunk's proposed slice into the document and locks
// the written span against later proposals. Resolved hunks are ignored.
func (s *Session) AcceptHunk(h *Hunk) error {
	if s.closed {
		return ErrSessionClosed
	}
	if h.Status != types.HunkPending {
		return nil
	}
	if !s.bulk && !s.current(h) {
		return fmt.Errorf("hunk %d: %w", h.ID, ErrHunkNotFound)
	}

	r := h.Range()
	if err := s.doc.Replace(r.Start, r.End, h.ProposedSlice); err != nil {
		return fmt.Errorf("accept hunk %d: %w", h.ID, err)
	}
	h.Status = types.HunkAccepted

	lock, err := s.doc.CreateMarker(r.Start, r.Start+len(h.ProposedSlice))
	if err != nil {
		logger.Warn("session %s: could not lock accepted range: %v", s.ID, err)
	} else {
		s.locked = append(s.locked, lock)
	}

	s.afterResolve()
	return nil
}

// RejectHunk leaves the document untouched and keeps the hunk's span from
// being proposed again.
func (s *Session) RejectHunk(h *Hunk) error {
	if s.closed {
		return ErrSessionClosed
	}
	if h.Status != types.HunkPending {
		return nil
	}
	if !s.bulk && !s.current(h) {
		return fmt.Errorf("hunk %d: %w", h.ID, ErrHunkNotFound)
	}
	h.Status = types.HunkRejected

	r := h.Range()
	mark, err := s.doc.CreateMarker(r.Start, r.End)
	if err != nil {
		logger.Warn("session %s: could not record rejected range: %v", s.ID, err)
	} else {
		s.rejected = append(s.rejected, mark)
	}

	s.afterResolve()
	return nil
}

// AcceptAll accepts every pending hunk, last in the document first, then
// closes the session.
func (s *Session) AcceptAll() error {
	if s.closed {
		return ErrSessionClosed
	}

	pending := s.pending()
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Range().Start > pending[j].Range().Start
	})

	s.bulk = true
	var firstErr error
	for _, h := range pending {
		if err := s.AcceptHunk(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.bulk = false

	logger.Debug("session %s: accepted %d hunks", s.ID, len(pending))
	s.Dispose()
	return firstErr
}

// RejectAll rejects every pending hunk and closes the session
func (s *Session) RejectAll() error {
	if s.closed {
		return ErrSessionClosed
	}

	pending := s.pending()
	s.bulk = true
	for _, h := range pending {
		_ = s.RejectHunk(h)
	}
	s.bulk = false

	logger.Debug("session %s: rejected %d hunks", s.ID, len(pending))
	s.Dispose()
	return nil
}

// AcceptNearest accepts the pending hunk whose start is closest to offset.
// It reports whether a hunk was found.
func (s *Session) AcceptNearest(offset int) (bool, error) {
	h := s.nearest(offset)
	if h == nil {
		return false, nil
	}
	return true, s.AcceptHunk(h)
}

// RejectNearest rejects the pending hunk whose start is closest to offset
func (s *Session) RejectNearest(offset int) (bool, error) {
	h := s.nearest(offset)
	if h == nil {
		return false, nil
	}
	return true, s.RejectHunk(h)
}

// Dispose releases every marker and the renderer. Safe to call repeatedly.
func (s *Session) Dispose() {
	if s.closed {
		return
	}
	s.closed = true

	for _, h := range s.hunks {
		h.marker.Release()
	}
	for _, group := range [][]Marker{s.retired, s.locked, s.rejected} {
		for _, m := range group {
			m.Release()
		}
	}
	s.root.Release()
	s.hunks, s.retired, s.locked, s.rejected = nil, nil, nil, nil

	s.renderer.Dispose()
	logger.Debug("session %s: disposed", s.ID)
}

func (s *Session) afterResolve() {
	s.recompute()
	s.renderer.ReplaceHunks(s.Hunks())
	if !s.bulk && !s.HasPendingHunks() && s.opts.OnNoPending != nil {
		s.opts.OnNoPending()
	}
}

func (s *Session) current(h *Hunk) bool {
	for _, c := range s.hunks {
		if c == h {
			return true
		}
	}
	return false
}

func (s *Session) pending() []*Hunk {
	var out []*Hunk
	for _, h := range s.hunks {
		if h.Status == types.HunkPending {
			out = append(out, h)
		}
	}
	return out
}

func (s *Session) nearest(offset int) *Hunk {
	if s.closed {
		return nil
	}
	var best *Hunk
	bestDist := math.MaxInt
	for _, h := range s.pending() {
		d := h.Range().Start - offset
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

// recompute rebuilds the hunk list from the live root range and the
// proposal, dropping hunks that touch resolved regions.
func (s *Session) recompute() {
	defer logger.Trace("session.recompute")()

	docLen := s.doc.Len()
	rootStart := min(s.root.Start(), docLen)
	rootEnd := max(rootStart, min(s.root.End(), docLen))
	current := s.doc.Slice(rootStart, rootEnd)

	var hunks []*Hunk
	for _, hr := range text.ComputeHunkRanges(current, s.proposed) {
		r := types.Range{
			Start: min(rootStart+hr.BaseStart, docLen),
			End:   min(rootStart+hr.BaseEnd, docLen),
		}
		if s.overlapsResolved(r) {
			continue
		}

		m, err := s.doc.CreateMarker(r.Start, r.End)
		if err != nil {
			logger.Warn("session %s: could not track hunk at [%d,%d): %v", s.ID, r.Start, r.End, err)
			continue
		}
		s.nextID++
		hunks = append(hunks, &Hunk{
			ID:            s.nextID,
			ProposedSlice: hr.ProposedSlice,
			Original:      current[hr.BaseStart:hr.BaseEnd],
			Status:        types.HunkPending,
			marker:        m,
		})
	}

	// Markers of replaced hunks may still be held by a bulk operation
	for _, h := range s.hunks {
		if s.bulk {
			s.retired = append(s.retired, h.marker)
		} else {
			h.marker.Release()
		}
	}
	s.hunks = hunks
}

func (s *Session) overlapsResolved(r types.Range) bool {
	for _, group := range [][]Marker{s.locked, s.rejected} {
		for _, m := range group {
			if r.Overlaps(types.Range{Start: m.Start(), End: m.End()}) {
				return true
			}
		}
	}
	return false
}
