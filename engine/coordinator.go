package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"streamedit/logger"
	"streamedit/session"
	"streamedit/text"
	"streamedit/types"
)

const maxHintPatternLen = 30

func (e *Engine) doToken(event Event) {
	st := e.stream
	chunk, _ := event.Data.(string)
	if st == nil || st.stopping || chunk == "" {
		return
	}

	st.response.WriteString(chunk)
	if !st.gotToken {
		st.gotToken = true
		if e.waitingTimer != nil {
			e.waitingTimer.Stop()
			e.waitingTimer = nil
		}
	}

	e.handleParseEvents(st.parser.Parse(chunk))
}

func (e *Engine) handleParseEvents(events []types.ParseEvent) {
	for _, pe := range events {
		switch pe.Kind {
		case types.ParseSearchWaiting:
			e.onSearchWaiting(pe.Search)
		case types.ParseReplaceWaiting:
			e.onReplaceWaiting(pe.Search)
		case types.ParseSegment:
			e.onSegment(pe.Segment)
		}
	}
}

// flushParser applies the segment closed by a reply that ends without a
// trailing newline
func (e *Engine) flushParser() {
	st := e.stream
	for _, pe := range st.parser.Flush() {
		if pe.Kind == types.ParseSegment {
			e.addSegment(pe.Segment)
		}
	}
}

// onSearchWaiting remembers the partial search and debounces its highlight
func (e *Engine) onSearchWaiting(search string) {
	st := e.stream
	if e.state == stateReplacing && st.lit != nil {
		e.clearHighlights()
	}
	if st.pattern == "" || e.state == stateReplacing || e.state == stateWaiting {
		st.highlighted = false
	}
	st.pattern = search
	e.state = stateSearching

	if strings.TrimSpace(search) == "" {
		return
	}
	if e.highlightTimer != nil {
		e.highlightTimer.Stop()
	}
	id := st.requestID
	e.highlightTimer = e.clock.AfterFunc(e.config.HighlightDebounce, func() {
		e.post(Event{Type: EventHighlightTimeout, RequestID: id})
	})
}

func (e *Engine) onReplaceWaiting(search string) {
	st := e.stream
	if search != "" {
		st.pattern = search
	}
	if e.highlightTimer != nil {
		e.highlightTimer.Stop()
		e.highlightTimer = nil
	}
	if st.pattern == "" {
		return
	}
	if st.highlighted {
		e.setHighlight(st.lit, types.HighlightFound)
	} else {
		e.highlightPattern(types.HighlightFound)
	}
	e.editor.ShowHint(msgPreparing)
	e.state = stateFound
}

func (e *Engine) onSegment(seg types.Segment) {
	st := e.stream
	e.state = stateReplacing
	st.pattern = ""
	st.highlighted = false
	if e.highlightTimer != nil {
		e.highlightTimer.Stop()
		e.highlightTimer = nil
	}
	e.highlightSegment(seg.Search)
	e.addSegment(seg)
	e.applySegments()
}

// addSegment records seg, warning about segments that cannot change anything
func (e *Engine) addSegment(seg types.Segment) {
	st := e.stream
	if msg := validateSegment(seg); msg != "" {
		logger.Warn("request %d: %s", st.requestID, msg)
		e.editor.Notify(types.Notification{Level: types.LevelWarning, Message: msg})
	}
	st.segments = append(st.segments, seg)
}

// highlightSegment marks the text a finished segment replaces
func (e *Engine) highlightSegment(search string) {
	st := e.stream
	start, end := st.target.Start(), st.target.End()
	var matches []types.Range
	if strings.TrimSpace(search) != "" {
		matches = text.LocatePattern(st.doc.Slice(start, end), search, true)
	}
	if len(matches) == 0 {
		e.clearHighlights()
		return
	}
	for i := range matches {
		matches[i].Start += start
		matches[i].End += start
	}
	e.setHighlight(matches, types.HighlightReplacing)
}

// validateSegment returns a warning for segments that cannot change anything.
// Such segments are still applied.
func validateSegment(seg types.Segment) string {
	if strings.TrimSpace(seg.Search) == "" {
		return msgEmptySearch
	}
	if strings.TrimSpace(seg.Search) == strings.TrimSpace(seg.Replace) {
		return msgIdentical
	}
	return ""
}

// patch filters every segment received so far and applies them to the base
// snapshot
func (e *Engine) patch() string {
	st := e.stream
	result := text.FilterSegments(st.path, filepath.Base(st.path), st.segments)
	if result.FilteredCount > 0 {
		logger.Debug("request %d: filtered segments %v", st.requestID, result.Stats)
		e.editor.ShowHint(fmt.Sprintf(msgIgnoredFormat, result.FilteredCount))
	}
	return text.ApplySearchReplace(st.baseText, result.Pairs)
}

// applySegments pushes the current proposal into the session, starting one
// on the first proposal that differs from the base
func (e *Engine) applySegments() {
	proposed := e.patch()
	if e.session != nil {
		e.session.UpdateProposedText(proposed, true)
		return
	}
	if proposed == e.stream.baseText {
		return
	}
	e.startSession(proposed)
}

func (e *Engine) startSession(proposed string) {
	st := e.stream
	base := types.Range{Start: st.target.Start(), End: st.target.End()}
	s, err := session.Start(st.doc, e.editor.NewRenderer(), base, proposed, session.Options{
		OnNoPending: func() { e.editor.ShowHint(msgAllResolved) },
	})
	if err != nil {
		logger.Error("request %d: error starting session: %v", st.requestID, err)
		return
	}
	s.SetInteractive(true)
	e.session = s
	e.tracker.TrackShown(s.ID, len(s.Hunks()))
}

func (e *Engine) doHighlight(event Event) {
	e.highlightTimer = nil
	if e.stream == nil || e.stream.pattern == "" {
		return
	}
	e.highlightPattern(types.HighlightSearching)
}

// highlightPattern locates the current pattern inside the live target range
func (e *Engine) highlightPattern(hs types.HighlightState) {
	st := e.stream
	start, end := st.target.Start(), st.target.End()
	matches := text.LocatePattern(st.doc.Slice(start, end), st.pattern, true)
	if len(matches) == 0 {
		e.editor.ShowHint(fmt.Sprintf(msgSearchingFormat, hintPattern(st.pattern)))
		return
	}

	for i := range matches {
		matches[i].Start += start
		matches[i].End += start
	}
	e.setHighlight(matches, hs)
	st.highlighted = true
}

// setHighlight shows ranges in the given state, replacing what was lit
func (e *Engine) setHighlight(ranges []types.Range, hs types.HighlightState) {
	e.editor.Highlight(ranges, hs)
	if e.stream != nil {
		e.stream.lit = ranges
	}
}

func (e *Engine) clearHighlights() {
	e.editor.ClearHighlights()
	if e.stream != nil {
		e.stream.lit = nil
	}
}

func hintPattern(pattern string) string {
	p := strings.Join(strings.Fields(pattern), " ")
	if len(p) > maxHintPatternLen {
		return p[:maxHintPatternLen] + "..."
	}
	return p
}

func (e *Engine) doWaitingHint(event Event) {
	e.waitingTimer = nil
	if e.stream != nil && !e.stream.gotToken {
		e.editor.ShowHint(msgWaiting)
	}
}

func (e *Engine) doComplete(event Event) {
	st := e.stream
	e.stopTimers()
	e.clearHighlights()
	e.unlockDocument()
	st.cancel()
	e.flushParser()

	logger.Info("request %d complete: %d segment(s)", st.requestID, len(st.segments))
	e.finalize()
	e.state = stateComplete
}

// finalize applies the full response and hands the hunks to the user
func (e *Engine) finalize() {
	st := e.stream
	proposed := st.baseText
	if len(st.segments) > 0 {
		proposed = e.patch()
	}

	switch {
	case e.session == nil && proposed == st.baseText:
		e.noChanges()
		return
	case e.session == nil:
		e.startSession(proposed)
		if e.session == nil {
			return
		}
	case proposed != st.baseText:
		e.session.UpdateProposedText(proposed, true)
	}

	e.session.SetInteractive(true)
	if !e.session.HasPendingHunks() {
		if st.accepted == 0 {
			e.noChanges()
		}
		e.closeSession()
	}
}

// noChanges tells the user nothing applied and offers the exchange for a chat
func (e *Engine) noChanges() {
	st := e.stream
	payload := strings.TrimSpace(st.response.String())
	if payload == "" {
		payload = text.FormatExchangeSummary(text.LanguageFromPath(st.path), st.path, st.segments)
	}
	e.editor.ShowHint(msgNoChanges)
	e.editor.Notify(types.Notification{
		Level:   types.LevelInfo,
		Message: msgNoChanges,
		Action:  types.ActionOpenExchange,
		Payload: payload,
	})
}

func (e *Engine) doError(event Event) {
	st := e.stream
	err, _ := event.Data.(error)
	if err == nil {
		err = fmt.Errorf("stream failed")
	}

	e.state = stateError
	e.stopTimers()
	if st.lit != nil {
		e.setHighlight(st.lit, types.HighlightError)
	} else {
		e.clearHighlights()
	}
	e.unlockDocument()
	st.cancel()

	logger.Error("request %d failed: %v", st.requestID, err)
	e.editor.Notify(types.Notification{Level: types.LevelError, Message: err.Error()})
}

func (e *Engine) doStop(event Event) {
	st := e.stream
	st.stopping = true
	st.cancel()
	e.stopTimers()
	e.clearHighlights()
	e.unlockDocument()
	e.flushParser()

	if len(st.segments) > 0 {
		e.finalize()
	}
	e.editor.ShowHint(msgStopped)
	e.state = stateStopped
}

// doOpenDiff hands the editor the whole document as it would read with every
// proposal applied, for a side-by-side diff against the submitted text
func (e *Engine) doOpenDiff(event Event) {
	st := e.stream
	if st == nil || e.editor == nil {
		logger.Debug("open diff ignored: no request")
		return
	}

	modified := st.baseText
	if len(st.segments) > 0 {
		modified = e.patch()
	}
	if modified == st.baseText {
		e.editor.ShowHint(msgNoChanges)
		return
	}

	e.editor.Notify(types.Notification{
		Level:   types.LevelInfo,
		Message: st.path,
		Action:  types.ActionOpenDiff,
		Payload: text.ComposeDocument(st.original, st.targetRange, modified),
	})
}
