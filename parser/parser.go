// Package parser turns a streamed model response into search/replace
// segments. It understands blocks of the form
//
//	```go:path/to/file.go
//	<<<<<<< SEARCH
//	old code
//	=======
//	new code
//	>>>>>>> REPLACE
//	```
//
// Markers are only recognised on whole lines; everything outside a block is
// reported as text.
package parser

import (
	"strings"

	"streamedit/types"
)

const (
	searchMarker  = "<<<<<<< SEARCH"
	dividerMarker = "======="
	replaceMarker = ">>>>>>> REPLACE"
	fence         = "```"
)

type mode int

const (
	modeText mode = iota
	modeSearch
	modeReplace
)

// SearchReplace is a line-buffered parser for search/replace blocks. Feed it
// chunks in arrival order; it is not safe for concurrent use.
type SearchReplace struct {
	mode    mode
	partial string // incomplete trailing line
	path    string // file of the enclosing code fence

	search  []string
	replace []string
}

var _ types.Parser = (*SearchReplace)(nil)

func New() *SearchReplace {
	return &SearchReplace{}
}

// Parse consumes chunk and returns what it completed. While a search is
// streaming in, one SearchWaiting event carries everything seen so far,
// including an unfinished last line.
func (p *SearchReplace) Parse(chunk string) []types.ParseEvent {
	var events []types.ParseEvent

	data := p.partial + chunk
	lines := strings.Split(data, "\n")
	p.partial = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	searchGrew := false
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		switch p.mode {
		case modeText:
			if isMarker(line, searchMarker) {
				p.mode = modeSearch
				p.search = p.search[:0]
				p.replace = p.replace[:0]
				searchGrew = true
				continue
			}
			if strings.HasPrefix(strings.TrimSpace(line), fence) {
				p.path = fencePath(line)
			}
			events = append(events, types.ParseEvent{Kind: types.ParseText, Text: line + "\n"})

		case modeSearch:
			if isMarker(line, dividerMarker) {
				p.mode = modeReplace
				searchGrew = false
				events = append(events, types.ParseEvent{Kind: types.ParseReplaceWaiting, Search: p.searchText()})
				continue
			}
			p.search = append(p.search, line)
			searchGrew = true

		case modeReplace:
			if isMarker(line, replaceMarker) {
				events = append(events, p.closeBlock())
				continue
			}
			p.replace = append(p.replace, line)
		}
	}

	if p.mode == modeSearch && (searchGrew || p.partial != "") {
		text := p.searchText()
		if p.partial != "" && !isMarkerPrefix(p.partial) {
			if text != "" {
				text += "\n"
			}
			text += p.partial
		}
		events = append(events, types.ParseEvent{Kind: types.ParseSearchWaiting, Search: text})
	}
	return events
}

// Flush ends the stream. A replace marker on the unfinished last line still
// closes its block; any other unterminated block is dropped. Trailing text is
// returned as a Text event.
func (p *SearchReplace) Flush() []types.ParseEvent {
	rest := strings.TrimSuffix(p.partial, "\r")
	p.partial = ""

	switch p.mode {
	case modeReplace:
		if isMarker(rest, replaceMarker) {
			return []types.ParseEvent{p.closeBlock()}
		}
		p.mode = modeText
		return nil
	case modeSearch:
		p.mode = modeText
		return nil
	}
	if rest == "" {
		return nil
	}
	return []types.ParseEvent{{Kind: types.ParseText, Text: rest}}
}

// closeBlock emits the segment of the block in progress and returns to text
func (p *SearchReplace) closeBlock() types.ParseEvent {
	p.mode = modeText
	search := p.searchText()
	return types.ParseEvent{
		Kind:   types.ParseSegment,
		Search: search,
		Segment: types.Segment{
			Search:   search,
			Replace:  strings.Join(p.replace, "\n"),
			FilePath: p.path,
		},
	}
}

func (p *SearchReplace) searchText() string {
	return strings.Join(p.search, "\n")
}

func isMarker(line, marker string) bool {
	return strings.TrimSpace(line) == marker
}

// isMarkerPrefix reports whether an unfinished line may still become the
// divider, so it is not shown as part of the search
func isMarkerPrefix(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && strings.HasPrefix(dividerMarker, t)
}

// fencePath extracts "path" from a "```lang:path" fence line
func fencePath(line string) string {
	info := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fence))
	if info == "" {
		return ""
	}
	if _, path, ok := strings.Cut(info, ":"); ok {
		return strings.TrimSpace(path)
	}
	return ""
}
