package engine

import (
	"streamedit/logger"
	"streamedit/session"
	"streamedit/types"
)

// writable runs op with the stream's read-only lock lifted
func (e *Engine) writable(op func() error) error {
	if e.stream == nil || !e.stream.locked {
		return op()
	}
	doc := e.stream.doc
	if err := doc.SetReadOnly(false); err != nil {
		return err
	}
	defer func() {
		if err := doc.SetReadOnly(true); err != nil {
			logger.Warn("error relocking document: %v", err)
		}
	}()
	return op()
}

func (e *Engine) doAccept(event Event) {
	id, ok := event.Data.(int)
	if !ok || e.session == nil {
		return
	}
	if err := e.writable(func() error { return e.session.Accept(id) }); err != nil {
		logger.Warn("accept hunk %d: %v", id, err)
		return
	}
	e.trackAccepted(1)
	e.afterHunkAction()
}

func (e *Engine) doReject(event Event) {
	id, ok := event.Data.(int)
	if !ok || e.session == nil {
		return
	}
	if err := e.session.Reject(id); err != nil {
		logger.Warn("reject hunk %d: %v", id, err)
		return
	}
	e.tracker.TrackRejected(e.session.ID, 1)
	e.afterHunkAction()
}

func (e *Engine) doAcceptNearest(event Event) {
	if e.session == nil || e.editor == nil {
		return
	}
	offset := e.editor.CursorOffset()
	var found bool
	err := e.writable(func() error {
		var err error
		found, err = e.session.AcceptNearest(offset)
		return err
	})
	if err != nil {
		logger.Warn("accept nearest hunk: %v", err)
		return
	}
	if found {
		e.trackAccepted(1)
		e.afterHunkAction()
	}
}

func (e *Engine) doRejectNearest(event Event) {
	if e.session == nil || e.editor == nil {
		return
	}
	found, err := e.session.RejectNearest(e.editor.CursorOffset())
	if err != nil {
		logger.Warn("reject nearest hunk: %v", err)
		return
	}
	if found {
		e.tracker.TrackRejected(e.session.ID, 1)
		e.afterHunkAction()
	}
}

// doAcceptAll applies every pending hunk and ends the request
func (e *Engine) doAcceptAll(event Event) {
	if e.session == nil {
		return
	}
	n := pendingCount(e.session)
	if err := e.writable(e.session.AcceptAll); err != nil {
		logger.Warn("accept all: %v", err)
	}
	e.trackAccepted(n)
	e.finishRequest()
}

// doRejectAll drops every pending hunk and ends the request
func (e *Engine) doRejectAll(event Event) {
	if e.session == nil {
		return
	}
	n := pendingCount(e.session)
	if err := e.session.RejectAll(); err != nil {
		logger.Warn("reject all: %v", err)
	}
	e.tracker.TrackRejected(e.session.ID, n)
	e.finishRequest()
}

// doDiscard throws the request away. The document goes back to its
// pre-submission text unless a hunk was already accepted.
func (e *Engine) doDiscard(event Event) {
	st := e.stream
	e.closeSession()

	if st != nil && st.accepted == 0 {
		e.unlockDocument()
		if cur := st.doc.Text(); cur != st.original {
			if err := st.doc.Replace(0, len(cur), st.original); err != nil {
				logger.Error("error reverting document: %v", err)
			}
		}
	}

	e.endStream()
	e.state = stateIdle
}

func (e *Engine) trackAccepted(n int) {
	if e.stream != nil {
		e.stream.accepted += n
	}
	e.tracker.TrackAccepted(e.session.ID, n)
}

// afterHunkAction ends the request once the stream is done and nothing is
// left to decide
func (e *Engine) afterHunkAction() {
	if e.session.HasPendingHunks() || e.state.streaming() {
		return
	}
	e.finishRequest()
}

func (e *Engine) finishRequest() {
	e.closeSession()
	e.endStream()
	e.state = stateIdle
}

func pendingCount(s *session.Session) int {
	n := 0
	for _, h := range s.Hunks() {
		if h.Status == types.HunkPending {
			n++
		}
	}
	return n
}
