package text

import (
	"fmt"
	"strings"

	"streamedit/types"
)

// FormatExchangeSummary renders the segments of one response as a fenced
// "lang:path" block of SEARCH/REPLACE sections, for handing the exchange to
// a chat when the raw response is unavailable.
func FormatExchangeSummary(language, path string, segments []types.Segment) string {
	if len(segments) == 0 {
		return ""
	}
	if language == "" {
		language = "txt"
	}
	if path == "" {
		path = "untitled"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "```%s:%s\n", language, path)
	for _, seg := range segments {
		search := strings.TrimSpace(seg.Search)
		replace := strings.TrimSpace(seg.Replace)
		if search == "" && replace == "" {
			continue
		}
		sb.WriteString("SEARCH\n")
		sb.WriteString(search)
		sb.WriteString("\nREPLACE\n")
		sb.WriteString(replace)
		sb.WriteString("\n---\n")
	}
	sb.WriteString("```\n")
	return sb.String()
}

// ComposeDocument returns doc with the bytes in r replaced by modified.
// The range is clamped into doc.
func ComposeDocument(doc string, r types.Range, modified string) string {
	start := max(0, min(r.Start, len(doc)))
	end := max(start, min(r.End, len(doc)))
	if start == 0 && end == len(doc) {
		return modified
	}

	var sb strings.Builder
	sb.Grow(len(doc) - (end - start) + len(modified))
	sb.WriteString(doc[:start])
	sb.WriteString(modified)
	sb.WriteString(doc[end:])
	return sb.String()
}

// TargetRange is the selection when it is non-empty, otherwise the whole
// document of length docLen.
func TargetRange(selection types.Range, docLen int) types.Range {
	if selection.Start < selection.End {
		return types.Range{Start: max(0, selection.Start), End: min(selection.End, docLen)}
	}
	return types.Range{Start: 0, End: docLen}
}

// LanguageFromPath guesses a fence language from a file extension
func LanguageFromPath(path string) string {
	slash := strings.LastIndex(path, "/")
	name := path[slash+1:]
	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		return "txt"
	}
	return strings.ToLower(name[dot+1:])
}
