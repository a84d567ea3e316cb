package text

import (
	"regexp"
	"strings"

	"streamedit/logger"
	"streamedit/types"
)

// Ellipsis marks elided lines inside a search block
const Ellipsis = "..."

// DeduplicatePairs drops pairs that cannot contribute a distinct edit:
// repeated searches, no-op pairs whose trimmed search equals the trimmed
// replace, and pairs whose search contains or is contained in the search of
// an already kept pair. Order of the survivors is preserved.
func DeduplicatePairs(pairs []types.Pair) []types.Pair {
	kept := make([]types.Pair, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))

	for _, p := range pairs {
		search := strings.TrimSpace(p.Search)
		if seen[search] {
			continue
		}
		if search == strings.TrimSpace(p.Replace) {
			continue
		}

		subsumed := false
		for _, k := range kept {
			if strings.Contains(k.Search, search) || strings.Contains(search, strings.TrimSpace(k.Search)) {
				subsumed = true
				break
			}
		}
		if subsumed {
			continue
		}

		kept = append(kept, p)
		seen[search] = true
	}

	return kept
}

// DominantEOL returns "\r\n" when the text contains it and "\n" otherwise
func DominantEOL(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// normalizeEOL trims s and rewrites its line endings to eol
func normalizeEOL(s, eol string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	if eol == "\n" {
		return s
	}
	return strings.ReplaceAll(s, "\n", eol)
}

// ApplySearchReplace applies the pairs in order against base and returns the
// patched text. Each pair tries, in order: exact match (every occurrence),
// ellipsis block expansion, then a whitespace-insensitive match of the first
// occurrence. Pairs that match nothing are skipped.
func ApplySearchReplace(base string, pairs []types.Pair) string {
	defer logger.Trace("text.ApplySearchReplace")()

	deduped := DeduplicatePairs(pairs)
	eol := DominantEOL(base)
	current := base
	applied := 0

	for _, p := range deduped {
		search := normalizeEOL(p.Search, eol)
		replace := normalizeEOL(p.Replace, eol)

		if search == "" {
			continue
		}

		if n := strings.Count(current, search); n > 0 {
			current = strings.ReplaceAll(current, search, replace)
			applied += n
			continue
		}

		if strings.Contains(p.Search, Ellipsis) {
			if next, ok := replaceEllipsisBlock(current, search, replace, eol); ok {
				current = next
				applied++
				continue
			}
		}

		if next, ok := replaceWhitespaceInsensitive(current, search, replace); ok {
			current = next
			applied++
			continue
		}

		logger.Debug("search/replace: no match for %q", truncate(search, 60))
	}

	logger.Debug("search/replace: %d pairs, %d replacements", len(deduped), applied)
	return current
}

// replaceEllipsisBlock anchors on the first search line and replaces the
// window of the same number of lines starting at the anchor's line.
func replaceEllipsisBlock(content, search, replace, eol string) (string, bool) {
	anchor, _, _ := strings.Cut(search, "\n")
	anchor = strings.TrimSpace(anchor)
	if anchor == "" {
		return content, false
	}

	start := strings.Index(content, anchor)
	if start < 0 {
		return content, false
	}

	lines := strings.Split(content, eol)
	startLine := strings.Count(content[:start], eol)
	endLine := min(startLine+len(strings.Split(search, eol)), len(lines))
	window := strings.Join(lines[startLine:endLine], eol)

	if window == "" || !strings.Contains(content, window) {
		return content, false
	}
	return strings.ReplaceAll(content, window, replace), true
}

// replaceWhitespaceInsensitive matches the search tokens separated by any
// run of whitespace and replaces the first match only.
func replaceWhitespaceInsensitive(content, search, replace string) (string, bool) {
	tokens := strings.Fields(search)
	if len(tokens) == 0 {
		return content, false
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	re, err := regexp.Compile(`(?s)` + strings.Join(quoted, `\s+`))
	if err != nil {
		logger.Debug("search/replace: bad whitespace pattern: %v", err)
		return content, false
	}

	loc := re.FindStringIndex(content)
	if loc == nil {
		return content, false
	}
	return content[:loc[0]] + replace + content[loc[1]:], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + Ellipsis
}
